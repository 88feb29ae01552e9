package gravity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

const (
	KindUniform = "uniform"
	KindPoint   = "point"
	KindRegions = "regions"
	KindScript  = "script"
)

var ErrInvalidSpec = errors.New("gravity: invalid spec")

// ScriptLoader resolves a script name to its source.
type ScriptLoader func(name string) ([]byte, error)

// Spec is the YAML form of a Field.
type Spec struct {
	Kind     string     `yaml:"kind" json:"kind"`
	Down     [3]float64 `yaml:"down,omitempty" json:"down,omitempty"`
	Origin   [3]float64 `yaml:"origin,omitempty" json:"origin,omitempty"`
	Strength float64    `yaml:"strength,omitempty" json:"strength,omitempty"`
	Default  *Spec      `yaml:"default,omitempty" json:"default,omitempty"`
	Zones    []ZoneSpec `yaml:"zones,omitempty" json:"zones,omitempty"`
	// Script names a file resolved through the ScriptLoader. Source, when
	// set, is used instead.
	Script string `yaml:"script,omitempty" json:"script,omitempty"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

type ZoneSpec struct {
	Name  string     `yaml:"name" json:"name"`
	Min   [3]float64 `yaml:"min" json:"min"`
	Max   [3]float64 `yaml:"max" json:"max"`
	Field Spec       `yaml:"field" json:"field"`
}

// Build turns the spec into a Field. An empty kind means uniform world down.
func (s Spec) Build(load ScriptLoader) (Field, error) {
	return s.build(load, false)
}

func (s Spec) build(load ScriptLoader, nested bool) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "", KindUniform:
		down := mgl64.Vec3(s.Down)
		if common.IsZero(down) {
			down = common.WorldDown
		}
		if common.IsZero(common.SafeNormal(down)) {
			return nil, fmt.Errorf("%w: uniform down %v", ErrInvalidSpec, s.Down)
		}
		return Uniform{Down: down, Strength: s.Strength}, nil
	case KindPoint:
		return Point{Origin: mgl64.Vec3(s.Origin), Strength: s.Strength}, nil
	case KindRegions:
		if nested {
			return nil, fmt.Errorf("%w: regions cannot be nested", ErrInvalidSpec)
		}
		out := Regions{Default: Uniform{}}
		if s.Default != nil {
			def, err := s.Default.build(load, true)
			if err != nil {
				return nil, fmt.Errorf("default: %w", err)
			}
			out.Default = def
		}
		for i, z := range s.Zones {
			b := common.AABB{Min: mgl64.Vec3(z.Min), Max: mgl64.Vec3(z.Max)}
			if !b.Valid() {
				return nil, fmt.Errorf("%w: zone %d (%s) has empty bounds", ErrInvalidSpec, i, z.Name)
			}
			f, err := z.Field.build(load, true)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", z.Name, err)
			}
			out.Zones = append(out.Zones, Zone{Name: z.Name, Bounds: b, Field: f})
		}
		return out, nil
	case KindScript:
		src := []byte(s.Source)
		name := s.Script
		if len(src) == 0 {
			if name == "" {
				return nil, fmt.Errorf("%w: script kind needs script or source", ErrInvalidSpec)
			}
			if load == nil {
				return nil, fmt.Errorf("%w: no loader for script %s", ErrInvalidSpec, name)
			}
			data, err := load(name)
			if err != nil {
				return nil, fmt.Errorf("gravity: load script %s: %w", name, err)
			}
			src = data
		}
		if name == "" {
			name = "inline"
		}
		return CompileScript(name, src)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
}
