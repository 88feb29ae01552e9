package gravity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

// Sample is the gravity observed at a single point.
type Sample struct {
	// Down is a unit vector. It is never zero.
	Down     mgl64.Vec3
	Strength float64
	// Region identifies the gravity zone the point belongs to. Points with
	// different region ids are separated by a gravity transition.
	Region int
}

// Up is the opposite of Down.
func (s Sample) Up() mgl64.Vec3 {
	return s.Down.Mul(-1)
}

// Vector returns Down scaled by Strength.
func (s Sample) Vector() mgl64.Vec3 {
	return s.Down.Mul(s.Strength)
}

// Field samples gravity at arbitrary points. Implementations must be safe for
// concurrent use.
type Field interface {
	Sample(p mgl64.Vec3) Sample
}

// Uniform is constant gravity everywhere.
type Uniform struct {
	Down     mgl64.Vec3
	Strength float64
}

func (u Uniform) Sample(mgl64.Vec3) Sample {
	return Sample{Down: normalOr(u.Down, common.WorldDown), Strength: strengthOr(u.Strength), Region: 0}
}

// Point pulls toward Origin, like a planet.
type Point struct {
	Origin   mgl64.Vec3
	Strength float64
}

func (pt Point) Sample(p mgl64.Vec3) Sample {
	return Sample{Down: normalOr(pt.Origin.Sub(p), common.WorldDown), Strength: strengthOr(pt.Strength), Region: 0}
}

// Zone is an axis-aligned region with its own field.
type Zone struct {
	Name   string
	Bounds common.AABB
	Field  Field
}

// Regions selects the first zone containing the point. Zone i reports region
// i+1; points outside every zone fall through to Default with region 0. The
// region reported by a zone's inner field is ignored.
type Regions struct {
	Default Field
	Zones   []Zone
}

func (r Regions) Sample(p mgl64.Vec3) Sample {
	for i, z := range r.Zones {
		if !z.Bounds.Contains(p) {
			continue
		}
		s := sampleOr(z.Field, p)
		s.Region = i + 1
		return s
	}
	s := sampleOr(r.Default, p)
	s.Region = 0
	return s
}

func sampleOr(f Field, p mgl64.Vec3) Sample {
	if f == nil {
		return Uniform{}.Sample(p)
	}
	return f.Sample(p)
}

func normalOr(v, fallback mgl64.Vec3) mgl64.Vec3 {
	n := common.SafeNormal(v)
	if common.IsZero(n) {
		return fallback
	}
	return n
}

func strengthOr(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return common.DefaultGravityStrength
	}
	return s
}
