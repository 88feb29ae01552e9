package volume

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BuildConfig controls how a scene is voxelised.
type BuildConfig struct {
	// CellSize is the edge length of a leaf cell.
	CellSize float64 `yaml:"cell_size" json:"cell_size" validate:"gt=0"`
	// AgentRadius is the clearance every free cell keeps from geometry. Agents
	// with a larger radius cannot use the volume.
	AgentRadius float64 `yaml:"agent_radius" json:"agent_radius" validate:"gte=0"`
	// MaxMergeLevel caps octree merging; a node at level k spans 2^k leaves per axis.
	MaxMergeLevel int `yaml:"max_merge_level" json:"max_merge_level" validate:"gte=0,lte=10"`
	// TransitionPenalty is added to the cost of every edge that crosses
	// between gravity regions.
	TransitionPenalty float64 `yaml:"transition_penalty" json:"transition_penalty" validate:"gte=0"`
	MaxCells          int     `yaml:"max_cells" json:"max_cells" validate:"gt=0"`
	// Workers bounds leaf classification parallelism. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		CellSize:          1,
		AgentRadius:       0,
		MaxMergeLevel:     4,
		TransitionPenalty: 5,
		MaxCells:          4_000_000,
	}
}

func (c BuildConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("volume: build config: %w", err)
	}
	return nil
}
