package common

import "github.com/go-gl/mathgl/mgl64"

// AABB is an axis-aligned box given by its minimum and maximum corners.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Valid reports whether the box is finite and has positive extent on every axis.
func (b AABB) Valid() bool {
	if !IsFinite(b.Min) || !IsFinite(b.Max) {
		return false
	}
	for i := 0; i < 3; i++ {
		if b.Max[i] <= b.Min[i] {
			return false
		}
	}
	return true
}

func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains is inclusive on both faces.
func (b AABB) Contains(p mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b AABB) Intersects(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// ClosestPoint clamps p into the box.
func (b AABB) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := 0; i < 3; i++ {
		out[i] = Clamp(p[i], b.Min[i], b.Max[i])
	}
	return out
}
