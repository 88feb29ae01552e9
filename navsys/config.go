package navsys

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/volume"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Generator string             `yaml:"generator" validate:"required"`
	Build     volume.BuildConfig `yaml:"build"`
	// Query is applied to requests that carry no settings.
	Query     pathfind.QuerySettings `yaml:"query"`
	Workers   int                    `yaml:"workers" validate:"gte=1"`
	QueueSize int                    `yaml:"queue_size" validate:"gte=1"`
	// CancelInFlightOnRebuild cancels running searches when a new volume is
	// installed. Their requesters get nothing and may retry.
	CancelInFlightOnRebuild bool          `yaml:"cancel_in_flight_on_rebuild"`
	RequestTimeout          time.Duration `yaml:"request_timeout" validate:"gte=0"`
	// RebuildInterval is the minimum time between watch-triggered rebuilds.
	RebuildInterval time.Duration `yaml:"rebuild_interval" validate:"gte=0"`
	CacheDir        string        `yaml:"cache_dir"`
}

func DefaultConfig() Config {
	return Config{
		Generator:       DefaultGenerator,
		Build:           volume.DefaultBuildConfig(),
		Workers:         runtime.GOMAXPROCS(0),
		QueueSize:       256,
		RequestTimeout:  5 * time.Second,
		RebuildInterval: 500 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("navsys: config: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config. Keys that are absent keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("navsys: load config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("navsys: unmarshal config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
