package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type waypointReport struct {
	Position   [3]float64 `yaml:"position,flow" json:"position"`
	Region     int        `yaml:"region" json:"region"`
	Transition bool       `yaml:"transition,omitempty" json:"transition,omitempty"`
}

type pathReport struct {
	ID         string           `yaml:"id" json:"id"`
	Algorithm  string           `yaml:"algorithm" json:"algorithm"`
	Cost       float64          `yaml:"cost" json:"cost"`
	Length     float64          `yaml:"length" json:"length"`
	Penalty    float64          `yaml:"penalty" json:"penalty"`
	Partial    bool             `yaml:"partial,omitempty" json:"partial,omitempty"`
	Iterations int              `yaml:"iterations" json:"iterations"`
	Waypoints  []waypointReport `yaml:"waypoints" json:"waypoints"`
}

func parseVec(name string, v []float64) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("--%s needs x,y,z, got %d values", name, len(v))
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}

func pathRequest() (pathfind.Request, error) {
	from, err := parseVec("from", fromFlag)
	if err != nil {
		return pathfind.Request{}, err
	}
	to, err := parseVec("to", toFlag)
	if err != nil {
		return pathfind.Request{}, err
	}
	req := pathfind.Request{
		ID:    uuid.NewString(),
		Start: from,
		Goal:  to,
		Agent: pathfind.Agent{
			Radius:             agentRad,
			MaxTransitionAngle: maxAngle * math.Pi / 180,
		},
	}
	if algorithm == "" && !allowPart {
		return req, nil
	}
	settings := &pathfind.QuerySettings{AllowPartial: allowPart}
	if algorithm != "" {
		if err := settings.Algorithm.UnmarshalText([]byte(algorithm)); err != nil {
			return req, err
		}
	}
	req.Settings = settings
	return req, nil
}

func runPath(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	req, err := pathRequest()
	if err != nil {
		return err
	}
	sc, err := loadScene(args[0])
	if err != nil {
		return err
	}
	sys, closeFn, err := openSystem(logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := sys.Build(cmd.Context(), sc); err != nil {
		return err
	}
	res, err := sys.FindPath(cmd.Context(), req)
	if err != nil {
		return err
	}

	report := pathReport{
		ID:         res.RequestID,
		Algorithm:  res.Algorithm.String(),
		Cost:       res.Cost,
		Length:     res.Length,
		Penalty:    res.Penalty,
		Partial:    res.Partial,
		Iterations: res.Iterations,
	}
	for _, wp := range res.Waypoints {
		report.Waypoints = append(report.Waypoints, waypointReport{
			Position:   [3]float64(wp.Position),
			Region:     wp.Region,
			Transition: wp.Transition,
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(report)
}
