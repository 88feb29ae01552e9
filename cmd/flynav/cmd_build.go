package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type buildReport struct {
	Scene       string `yaml:"scene"`
	Fingerprint string `yaml:"fingerprint"`
	Leaves      int    `yaml:"leaves"`
	FreeLeaves  int    `yaml:"free_leaves"`
	Nodes       int    `yaml:"nodes"`
	Edges       int    `yaml:"edges"`
	Transitions int    `yaml:"transition_edges"`
	Regions     int    `yaml:"regions"`
	MaxLevel    int    `yaml:"max_level"`
	Out         string `yaml:"out,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	sc, err := loadScene(args[0])
	if err != nil {
		return err
	}
	sys, closeFn, err := openSystem(logger)
	if err != nil {
		return err
	}
	defer closeFn()

	vol, err := sys.Build(cmd.Context(), sc)
	if err != nil {
		return err
	}

	st := vol.Stats()
	report := buildReport{
		Scene:       sc.Name,
		Fingerprint: vol.Fingerprint(),
		Leaves:      st.Leaves,
		FreeLeaves:  st.FreeLeaves,
		Nodes:       st.Nodes,
		Edges:       st.Edges,
		Transitions: st.TransitionEdges,
		Regions:     st.Regions,
		MaxLevel:    st.MaxLevel,
	}
	if outPath != "" {
		data, err := vol.Encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		report.Out = outPath
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(report)
}
