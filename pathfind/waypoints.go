package pathfind

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/volume"
)

// assemble turns a node chain into waypoints: the start position, the node
// centres and the goal position, with a transition waypoint wherever
// consecutive nodes are in different regions. Centres that coincide with the
// start or goal are dropped.
func assemble(v *volume.Volume, start mgl64.Vec3, agent Agent, settings QuerySettings, chain []int32, goalPos mgl64.Vec3) *Result {
	nodeOf := func(id int32) volume.Node {
		n, _ := v.Node(id)
		return n
	}
	at := func(id int32, p mgl64.Vec3) Waypoint {
		n := nodeOf(id)
		return Waypoint{Position: p, Up: n.Up, Node: id, Region: n.Region}
	}

	pts := []Waypoint{at(chain[0], start)}
	if len(chain) > 1 {
		for i, id := range chain {
			cur := nodeOf(id)
			if i > 0 {
				prev := nodeOf(chain[i-1])
				if prev.Region != cur.Region {
					pts = append(pts, transitionWaypoint(v, prev.ID, cur.ID, pts[len(pts)-1].Position, cur.Center))
				}
			}
			pts = append(pts, at(id, cur.Center))
		}
	}
	pts = append(pts, at(chain[len(chain)-1], goalPos))
	pts = dropDuplicates(pts)

	if settings.Algorithm.AnyAngle() && !settings.DisableSmoothing {
		pts = smooth(v, pts)
	}
	if off := agent.CentreOffset; off > 0 {
		for i := 1; i < len(pts)-1; i++ {
			pts[i].Position = pts[i].Position.Add(pts[i].Up.Mul(off))
		}
	}

	res := &Result{Waypoints: pts, Nodes: chain}
	for i, w := range pts {
		if i > 0 {
			res.Length += w.Position.Sub(pts[i-1].Position).Len()
		}
		res.Penalty += w.Penalty
	}
	res.Cost = res.Length + res.Penalty
	return res
}

// transitionWaypoint places the crossing between two adjacent nodes where the
// segment from prev to next meets their shared face, clamped onto the face.
func transitionWaypoint(v *volume.Volume, from, to int32, prev, next mgl64.Vec3) Waypoint {
	n, _ := v.Node(to)
	w := Waypoint{Up: n.Up, Node: to, Region: n.Region, Transition: true}
	if e, ok := v.EdgeBetween(from, to); ok {
		w.Penalty = e.Penalty
	}

	face, ok := v.SharedFace(from, to)
	if !ok {
		m, _ := v.Node(from)
		w.Position = m.Center.Add(n.Center).Mul(0.5)
		return w
	}
	axis := 0
	size := face.Size()
	for i := 1; i < 3; i++ {
		if size[i] < size[axis] {
			axis = i
		}
	}

	p := prev
	d := next.Sub(prev)
	if math.Abs(d[axis]) > common.KindaSmall {
		t := common.Clamp((face.Min[axis]-prev[axis])/d[axis], 0, 1)
		p = prev.Add(d.Mul(t))
	}
	w.Position = face.ClosestPoint(p)
	return w
}

// smooth string-pulls each run of waypoints between transitions. Transition
// waypoints and the endpoints are kept; a point is dropped only when its
// neighbours can see each other within the run's region.
func smooth(v *volume.Volume, pts []Waypoint) []Waypoint {
	anchors := []int{0}
	for i := 1; i < len(pts)-1; i++ {
		if pts[i].Transition {
			anchors = append(anchors, i)
		}
	}
	anchors = append(anchors, len(pts)-1)

	out := []Waypoint{pts[0]}
	for k := 0; k+1 < len(anchors); k++ {
		a, b := anchors[k], anchors[k+1]
		region := pts[a].Region
		i := a
		for i < b {
			j := b
			for j > i+1 && !v.LineOfSight(pts[i].Position, pts[j].Position, region) {
				j--
			}
			out = append(out, pts[j])
			i = j
		}
	}
	return out
}

func dropDuplicates(pts []Waypoint) []Waypoint {
	out := pts[:0:0]
	for i, w := range pts {
		interior := i > 0 && i < len(pts)-1
		if interior && !w.Transition && (samePoint(w, pts[i-1]) || samePoint(w, pts[i+1])) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func samePoint(a, b Waypoint) bool {
	return a.Position.Sub(b.Position).Len() <= 1e-9
}
