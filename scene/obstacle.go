package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

// Obstacle is solid geometry queried by signed distance.
type Obstacle interface {
	// Distance is negative inside the obstacle.
	Distance(p mgl64.Vec3) float64
	Bounds() common.AABB
}

type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (b Box) Distance(p mgl64.Vec3) float64 {
	c := b.Min.Add(b.Max).Mul(0.5)
	h := b.Max.Sub(b.Min).Mul(0.5)
	var q, outside mgl64.Vec3
	for i := 0; i < 3; i++ {
		q[i] = math.Abs(p[i]-c[i]) - h[i]
		outside[i] = math.Max(q[i], 0)
	}
	inside := math.Min(math.Max(q[0], math.Max(q[1], q[2])), 0)
	return outside.Len() + inside
}

func (b Box) Bounds() common.AABB {
	return common.AABB{Min: b.Min, Max: b.Max}
}

type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func (s Sphere) Distance(p mgl64.Vec3) float64 {
	return p.Sub(s.Center).Len() - s.Radius
}

func (s Sphere) Bounds() common.AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return common.AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}
