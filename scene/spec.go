package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/scenes"
	"gopkg.in/yaml.v3"
)

type Spec struct {
	Name      string         `yaml:"name" json:"name"`
	Bounds    BoundsSpec     `yaml:"bounds" json:"bounds"`
	Obstacles []ObstacleSpec `yaml:"obstacles,omitempty" json:"obstacles,omitempty"`
	Gravity   gravity.Spec   `yaml:"gravity" json:"gravity"`
}

type BoundsSpec struct {
	Min mgl64.Vec3 `yaml:"min,flow" json:"min"`
	Max mgl64.Vec3 `yaml:"max,flow" json:"max"`
}

// ObstacleSpec holds exactly one shape.
type ObstacleSpec struct {
	Box    *BoxSpec    `yaml:"box,omitempty" json:"box,omitempty"`
	Sphere *SphereSpec `yaml:"sphere,omitempty" json:"sphere,omitempty"`
}

type BoxSpec struct {
	Min mgl64.Vec3 `yaml:"min,flow" json:"min"`
	Max mgl64.Vec3 `yaml:"max,flow" json:"max"`
}

type SphereSpec struct {
	Center mgl64.Vec3 `yaml:"center,flow" json:"center"`
	Radius float64    `yaml:"radius" json:"radius"`
}

// Parse decodes a YAML scene. Script references are resolved through load.
func Parse(data []byte, load gravity.ScriptLoader) (*Scene, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("scene: unmarshal: %w", err)
	}
	return FromSpec(spec, load)
}

// Load reads a scene file from disk. Scripts are looked up next to the file
// first, then in the embedded scripts.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: load %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	load := func(name string) ([]byte, error) {
		if !scenes.IsLocal(name) {
			return nil, fmt.Errorf("%w: %q", scenes.ErrInvalidName, name)
		}
		for _, p := range []string{filepath.Join(dir, name), filepath.Join(dir, "scripts", name)} {
			if b, err := os.ReadFile(p); err == nil {
				return b, nil
			}
		}
		return scenes.LoadScript(name)
	}
	sc, err := Parse(data, load)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", path, err)
	}
	return sc, nil
}

// LoadEmbedded loads one of the bundled scenes by name, e.g. "two_regions".
func LoadEmbedded(name string) (*Scene, error) {
	data, err := scenes.Load(name)
	if err != nil {
		return nil, err
	}
	return Parse(data, scenes.LoadScript)
}

// FromSpec validates spec and builds the scene and its gravity field.
func FromSpec(spec Spec, load gravity.ScriptLoader) (*Scene, error) {
	resolved, err := inlineScripts(spec.Gravity, load)
	if err != nil {
		return nil, err
	}
	spec.Gravity = resolved

	field, err := spec.Gravity.Build(nil)
	if err != nil {
		return nil, fmt.Errorf("scene: gravity: %w", err)
	}

	sc := &Scene{
		Name:   spec.Name,
		Bounds: common.AABB{Min: spec.Bounds.Min, Max: spec.Bounds.Max},
		Field:  field,
		Spec:   spec,
	}
	for i, o := range spec.Obstacles {
		switch {
		case o.Box != nil && o.Sphere == nil:
			sc.Obstacles = append(sc.Obstacles, Box{Min: o.Box.Min, Max: o.Box.Max})
		case o.Sphere != nil && o.Box == nil:
			sc.Obstacles = append(sc.Obstacles, Sphere{Center: o.Sphere.Center, Radius: o.Sphere.Radius})
		default:
			return nil, fmt.Errorf("%w: obstacle %d must have exactly one shape", ErrInvalidScene, i)
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sc.fingerprint = fingerprintSpec(spec)
	return sc, nil
}

// inlineScripts copies the source of every referenced script into the spec so
// that the resolved spec is self-contained.
func inlineScripts(g gravity.Spec, load gravity.ScriptLoader) (gravity.Spec, error) {
	if g.Kind == gravity.KindScript && g.Source == "" && g.Script != "" {
		if load == nil {
			return g, fmt.Errorf("%w: no loader for script %s", gravity.ErrInvalidSpec, g.Script)
		}
		data, err := load(g.Script)
		if err != nil {
			return g, fmt.Errorf("scene: script %s: %w", g.Script, err)
		}
		g.Source = string(data)
	}
	if g.Default != nil {
		def, err := inlineScripts(*g.Default, load)
		if err != nil {
			return g, err
		}
		g.Default = &def
	}
	if len(g.Zones) > 0 {
		zones := make([]gravity.ZoneSpec, len(g.Zones))
		copy(zones, g.Zones)
		for i := range zones {
			f, err := inlineScripts(zones[i].Field, load)
			if err != nil {
				return g, err
			}
			zones[i].Field = f
		}
		g.Zones = zones
	}
	return g, nil
}
