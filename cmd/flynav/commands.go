package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/milk9111/gravnav/navcache"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/scene"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cacheDir   string

	outPath    string
	fromFlag   []float64
	toFlag     []float64
	algorithm  string
	allowPart  bool
	agentRad   float64
	maxAngle   float64
	jsonOutput bool
	listenAddr string
	watchPath  string
	traceExp   string

	rootCmd = &cobra.Command{
		Use:           "flynav",
		Short:         "Build navigation volumes and find paths through gravity fields",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	buildCmd = &cobra.Command{
		Use:   "build <scene>",
		Short: "Voxelise a scene and print volume statistics",
		Long: `Builds the navigation volume for a scene file or a bundled scene name
and prints its statistics. With --out the encoded volume is written to a file.`,
		Args: cobra.ExactArgs(1),
		RunE: runBuild,
	}

	pathCmd = &cobra.Command{
		Use:   "path <scene>",
		Short: "Find a path between two points",
		Args:  cobra.ExactArgs(1),
		RunE:  runPath,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	watchCmd = &cobra.Command{
		Use:   "watch <scene file>",
		Short: "Rebuild a scene whenever it or its scripts change",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "navsys config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "badger directory for built volumes, overrides the config")

	buildCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the encoded volume to this file")

	pathCmd.Flags().Float64SliceVar(&fromFlag, "from", nil, "start point x,y,z")
	pathCmd.Flags().Float64SliceVar(&toFlag, "to", nil, "goal point x,y,z")
	pathCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "lazy_theta, theta or astar")
	pathCmd.Flags().BoolVar(&allowPart, "partial", false, "return a partial path when the goal is unreachable")
	pathCmd.Flags().Float64Var(&agentRad, "radius", 0, "agent radius")
	pathCmd.Flags().Float64Var(&maxAngle, "max-angle", 0, "largest accepted gravity change in degrees, 0 for any")
	pathCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of YAML")
	_ = pathCmd.MarkFlagRequired("from")
	_ = pathCmd.MarkFlagRequired("to")

	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&watchPath, "watch", "", "scene file to build and keep rebuilt")
	serveCmd.Flags().StringVar(&traceExp, "trace-exporter", "", "stdout or none, defaults to $OTEL_TRACES_EXPORTER")

	rootCmd.AddCommand(buildCmd, pathCmd, serveCmd, watchCmd)
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (navsys.Config, error) {
	cfg := navsys.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = navsys.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	return cfg, nil
}

// openSystem starts a navigation system. The returned func closes it and
// its cache.
func openSystem(logger *slog.Logger, extra ...navsys.Option) (*navsys.System, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := append([]navsys.Option{navsys.WithLogger(logger)}, extra...)
	var store *navcache.Store
	if cfg.CacheDir != "" {
		ccfg := navcache.DefaultConfig(cfg.CacheDir)
		ccfg.Logger = logger
		if store, err = navcache.Open(ccfg); err != nil {
			return nil, nil, err
		}
		opts = append(opts, navsys.WithCache(store))
	}

	sys, err := navsys.New(cfg, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	closeFn := func() {
		_ = sys.Close()
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("flynav: close cache", "err", err)
			}
		}
	}
	return sys, closeFn, nil
}

// loadScene reads a scene file, or a bundled scene when no such file exists.
func loadScene(arg string) (*scene.Scene, error) {
	if _, err := os.Stat(arg); err == nil {
		return scene.Load(arg)
	}
	sc, err := scene.LoadEmbedded(arg)
	if err != nil {
		return nil, fmt.Errorf("no scene file or bundled scene named %q: %w", arg, err)
	}
	return sc, nil
}
