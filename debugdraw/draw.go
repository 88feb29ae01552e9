package debugdraw

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/milk9111/gravnav/movement"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
	"golang.org/x/image/colornames"
)

const (
	circleSegments = 24
	dotSize        = 4
)

var regionColors = []color.RGBA{
	colornames.Darkslategray,
	colornames.Darkolivegreen,
	colornames.Midnightblue,
	colornames.Indigo,
	colornames.Saddlebrown,
	colornames.Teal,
}

// RegionColor is the fill used for nodes of a gravity region.
func RegionColor(region int) color.RGBA {
	if region < 0 {
		region = -region
	}
	c := regionColors[region%len(regionColors)]
	c.A = 0xa0
	return c
}

// Drawer draws onto one screen image through a view.
type Drawer struct {
	Screen *ebiten.Image
	View   View
}

// Volume fills every node cut by the slice plane and outlines it. Transition
// edges between cut nodes are drawn between their centres.
func (d Drawer) Volume(v *volume.Volume) int {
	if v == nil || d.Screen == nil {
		return 0
	}
	drawn := 0
	for _, n := range v.Nodes() {
		b := n.Bounds()
		if !d.View.Cuts(b) {
			continue
		}
		x, y, w, h := d.View.Rect(b)
		vector.FillRect(d.Screen, float32(x), float32(y), float32(w), float32(h), RegionColor(n.Region), false)
		vector.StrokeRect(d.Screen, float32(x), float32(y), float32(w), float32(h), 1, colornames.Dimgray, false)
		d.upArrow(n.Center, n.Up, n.Size*0.3)
		drawn++

		for _, e := range v.Neighbors(n.ID) {
			if !e.Transition || e.To < n.ID {
				continue
			}
			to, ok := v.Node(e.To)
			if !ok || !d.View.Cuts(to.Bounds()) {
				continue
			}
			d.line(n.Center, to.Center, colornames.Orange, 1)
		}
	}
	return drawn
}

// Obstacles outlines the footprint of every obstacle the plane cuts.
func (d Drawer) Obstacles(sc *scene.Scene) {
	if sc == nil || d.Screen == nil {
		return
	}
	for _, o := range sc.Obstacles {
		b := o.Bounds()
		if !d.View.Cuts(b) {
			continue
		}
		switch o := o.(type) {
		case scene.Sphere:
			di, _, _ := d.View.Axis.components()
			off := d.View.Depth - o.Center[di]
			r := math.Sqrt(math.Max(0, o.Radius*o.Radius-off*off))
			d.circle(o.Center, r, colornames.Firebrick)
		default:
			x, y, w, h := d.View.Rect(b)
			vector.StrokeRect(d.Screen, float32(x), float32(y), float32(w), float32(h), 2, colornames.Firebrick, false)
		}
	}
}

// Path draws the waypoint polyline. Transition waypoints are marked larger.
func (d Drawer) Path(res *pathfind.Result) {
	if res == nil || d.Screen == nil || len(res.Waypoints) == 0 {
		return
	}
	lineColor := color.RGBA{R: 0x24, G: 0xe7, B: 0xff, A: 0xff}
	nodeColor := color.RGBA{R: 0xff, G: 0xaa, B: 0x00, A: 0xff}
	for i, wp := range res.Waypoints {
		if i > 0 {
			d.line(res.Waypoints[i-1].Position, wp.Position, lineColor, 2)
		}
		size := 3.0
		c := nodeColor
		if wp.Transition {
			size = 7
			c = colornames.Magenta
		}
		sx, sy := d.View.Project(wp.Position)
		vector.FillRect(d.Screen, float32(sx-size/2), float32(sy-size/2), float32(size), float32(size), c, false)
	}
}

// Mover draws the agent, its velocity and its up vector.
func (d Drawer) Mover(m movement.Mover, radius float64) {
	if d.Screen == nil {
		return
	}
	pos := m.Position()
	c := colornames.Lime
	switch m.Mode() {
	case movement.Blocked:
		c = colornames.Red
	case movement.Arrived:
		c = colornames.Gold
	}
	if radius <= 0 {
		radius = dotSize / d.View.Scale
	}
	d.circle(pos, radius, c)
	d.line(pos, pos.Add(m.Velocity().Mul(0.25)), colornames.White, 1)
	d.upArrow(pos, m.Orientation().Up, radius*2)
}

// HUD prints a few lines of text at the top left.
func (d Drawer) HUD(lines ...string) {
	if d.Screen == nil {
		return
	}
	text := fmt.Sprintf("slice %s=%.2f", d.View.Axis, d.View.Depth)
	for _, l := range lines {
		text += "\n" + l
	}
	ebitenutil.DebugPrintAt(d.Screen, text, 10, 10)
}

func (d Drawer) line(a, b mgl64.Vec3, c color.Color, width float32) {
	x1, y1 := d.View.Project(a)
	x2, y2 := d.View.Project(b)
	vector.StrokeLine(d.Screen, float32(x1), float32(y1), float32(x2), float32(y2), width, c, true)
}

func (d Drawer) upArrow(at, up mgl64.Vec3, length float64) {
	d.line(at, at.Add(up.Mul(length)), colornames.Lightgrey, 1)
}

func (d Drawer) circle(center mgl64.Vec3, radius float64, c color.Color) {
	if radius <= 0 {
		return
	}
	_, u, v := d.View.Axis.components()
	prev := center
	for i := 0; i <= circleSegments; i++ {
		t := 2 * math.Pi * float64(i) / circleSegments
		p := center
		p[u] += math.Cos(t) * radius
		p[v] += math.Sin(t) * radius
		if i > 0 {
			d.line(prev, p, c, 1)
		}
		prev = p
	}
}
