package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// KindaSmall is the length below which a vector is treated as zero.
	KindaSmall = 1e-4
	// DefaultGravityStrength is used when a gravity spec leaves strength unset.
	DefaultGravityStrength = 9.81
)

var (
	WorldUp   = mgl64.Vec3{0, 0, 1}
	WorldDown = mgl64.Vec3{0, 0, -1}
)

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SafeNormal returns v with unit length, or the zero vector when v is too
// short to normalise.
func SafeNormal(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < KindaSmall || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}

func IsZero(v mgl64.Vec3) bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// ProjectOnPlane removes the component of v along normal.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	n := SafeNormal(normal)
	if IsZero(n) {
		return v
	}
	return v.Sub(n.Mul(v.Dot(n)))
}

// ClampLen scales v down so that its length does not exceed max.
func ClampLen(v mgl64.Vec3, max float64) mgl64.Vec3 {
	if max <= 0 {
		return mgl64.Vec3{}
	}
	l := v.Len()
	if l <= max {
		return v
	}
	return v.Mul(max / l)
}

// AngleBetween returns the angle in radians between two directions.
func AngleBetween(a, b mgl64.Vec3) float64 {
	na := SafeNormal(a)
	nb := SafeNormal(b)
	if IsZero(na) || IsZero(nb) {
		return 0
	}
	return math.Acos(Clamp(na.Dot(nb), -1, 1))
}

// Floor3 returns the component-wise floor of v as integers.
func Floor3(v mgl64.Vec3) [3]int {
	return [3]int{int(math.Floor(v[0])), int(math.Floor(v[1])), int(math.Floor(v[2]))}
}
