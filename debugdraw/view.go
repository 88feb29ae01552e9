// Package debugdraw renders axis-aligned slices of a navigation volume,
// paths and movers with ebiten.
package debugdraw

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

// Axis is the axis the slice plane is perpendicular to.
type Axis int

const (
	AxisZ Axis = iota
	AxisY
	AxisX
)

func (a Axis) String() string {
	switch a {
	case AxisZ:
		return "z"
	case AxisY:
		return "y"
	case AxisX:
		return "x"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "z", "Z", "":
		return AxisZ, nil
	case "y", "Y":
		return AxisY, nil
	case "x", "X":
		return AxisX, nil
	}
	return AxisZ, fmt.Errorf("debugdraw: unknown axis %q", s)
}

// index of the depth component, then the screen x and y components.
func (a Axis) components() (depth, u, v int) {
	switch a {
	case AxisY:
		return 1, 0, 2
	case AxisX:
		return 0, 1, 2
	}
	return 2, 0, 1
}

// View maps world coordinates on a slice plane to screen pixels. World v
// grows up the screen.
type View struct {
	Axis  Axis
	Depth float64
	Scale float64
	// Origin is the world (u, v) shown at the bottom left corner.
	Origin [2]float64
	Height float64
}

// Fit returns a view that shows bounds inside a w×h pixel screen with a
// small margin, slicing through the middle of the depth axis.
func Fit(bounds common.AABB, axis Axis, w, h int) View {
	d, u, v := axis.components()
	size := bounds.Size()
	const margin = 16.0
	scale := 1.0
	if size[u] > 0 && size[v] > 0 {
		scale = min((float64(w)-2*margin)/size[u], (float64(h)-2*margin)/size[v])
	}
	return View{
		Axis:   axis,
		Depth:  bounds.Min[d] + size[d]/2,
		Scale:  scale,
		Origin: [2]float64{bounds.Min[u] - margin/scale, bounds.Min[v] - margin/scale},
		Height: float64(h),
	}
}

// Project returns the screen position of p, ignoring its depth.
func (vw View) Project(p mgl64.Vec3) (float64, float64) {
	_, u, v := vw.Axis.components()
	x := (p[u] - vw.Origin[0]) * vw.Scale
	y := vw.Height - (p[v]-vw.Origin[1])*vw.Scale
	return x, y
}

// Unproject returns the world point on the slice plane under a screen pixel.
func (vw View) Unproject(x, y float64) mgl64.Vec3 {
	d, u, v := vw.Axis.components()
	var p mgl64.Vec3
	p[d] = vw.Depth
	p[u] = x/vw.Scale + vw.Origin[0]
	p[v] = (vw.Height-y)/vw.Scale + vw.Origin[1]
	return p
}

// Cuts reports whether the slice plane passes through b.
func (vw View) Cuts(b common.AABB) bool {
	d, _, _ := vw.Axis.components()
	return vw.Depth >= b.Min[d] && vw.Depth < b.Max[d]
}

// Rect is the screen rectangle of b's footprint on the slice plane.
func (vw View) Rect(b common.AABB) (x, y, w, h float64) {
	_, u, v := vw.Axis.components()
	x0, y0 := vw.Project(b.Min)
	w = (b.Max[u] - b.Min[u]) * vw.Scale
	h = (b.Max[v] - b.Min[v]) * vw.Scale
	return x0, y0 - h, w, h
}

// Step moves the slice by n cells of size along the depth axis.
func (vw View) Step(n int, size float64) View {
	vw.Depth += float64(n) * size
	return vw
}
