package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/gravity"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScene = errors.New("scene: invalid scene")

// Scene is the static world a volume is built from. It is immutable once
// created.
type Scene struct {
	Name      string
	Bounds    common.AABB
	Obstacles []Obstacle
	Field     gravity.Field
	// Spec is the resolved source of the scene, with script sources inlined.
	Spec Spec

	fingerprint string
}

// New builds a scene in code. The field is not part of the fingerprint, so
// callers building different fields over the same geometry should use
// distinct names.
func New(name string, bounds common.AABB, field gravity.Field, obstacles ...Obstacle) (*Scene, error) {
	spec := Spec{Name: name, Bounds: BoundsSpec{Min: bounds.Min, Max: bounds.Max}}
	for _, o := range obstacles {
		switch ob := o.(type) {
		case Box:
			spec.Obstacles = append(spec.Obstacles, ObstacleSpec{Box: &BoxSpec{Min: ob.Min, Max: ob.Max}})
		case Sphere:
			spec.Obstacles = append(spec.Obstacles, ObstacleSpec{Sphere: &SphereSpec{Center: ob.Center, Radius: ob.Radius}})
		}
	}
	sc := &Scene{Name: name, Bounds: bounds, Obstacles: obstacles, Field: field, Spec: spec}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sc.fingerprint = fingerprintSpec(spec)
	return sc, nil
}

// Distance returns the signed distance to the nearest obstacle, or +Inf for an
// empty scene.
func (s *Scene) Distance(p mgl64.Vec3) float64 {
	d := math.Inf(1)
	for _, o := range s.Obstacles {
		if od := o.Distance(p); od < d {
			d = od
		}
	}
	return d
}

func (s *Scene) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil scene", ErrInvalidScene)
	}
	if !s.Bounds.Valid() {
		return fmt.Errorf("%w: bounds %v..%v are empty or not finite", ErrInvalidScene, s.Bounds.Min, s.Bounds.Max)
	}
	if s.Field == nil {
		return fmt.Errorf("%w: no gravity field", ErrInvalidScene)
	}
	for i, o := range s.Obstacles {
		switch ob := o.(type) {
		case Sphere:
			if !(ob.Radius > 0) || !common.IsFinite(ob.Center) {
				return fmt.Errorf("%w: obstacle %d: sphere radius must be positive", ErrInvalidScene, i)
			}
		case Box:
			if !ob.Bounds().Valid() {
				return fmt.Errorf("%w: obstacle %d: box is empty", ErrInvalidScene, i)
			}
		case nil:
			return fmt.Errorf("%w: obstacle %d is nil", ErrInvalidScene, i)
		}
	}
	return nil
}

// Fingerprint identifies the scene's content. Equal specs give equal
// fingerprints.
func (s *Scene) Fingerprint() string {
	return s.fingerprint
}

func fingerprintSpec(spec Spec) string {
	data, err := yaml.Marshal(spec)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", spec))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
