package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

// AnyRegion disables the region check in LineOfSight.
const AnyRegion = -1

// LineOfSight reports whether the segment a-b stays inside free leaves that
// all belong to region. It walks the leaf grid with a 3D DDA; where the
// segment passes exactly through an edge or corner every touching leaf must
// be free.
func (v *Volume) LineOfSight(a, b mgl64.Vec3, region int) bool {
	if v.Empty() || !common.IsFinite(a) || !common.IsFinite(b) {
		return false
	}
	d := b.Sub(a)
	length := d.Len()
	if length > common.KindaSmall {
		// keep endpoints on a node face inside that node
		eps := math.Min(1e-6*v.cfg.CellSize, length/4)
		dir := d.Mul(1 / length)
		a = a.Add(dir.Mul(eps))
		b = b.Sub(dir.Mul(eps))
	}

	start, ok := v.cellOf(a)
	if !ok || !v.passable(start, region) {
		return false
	}
	end, ok := v.cellOf(b)
	if !ok {
		return false
	}
	if start == end {
		return true
	}

	ga := a.Sub(v.origin).Mul(1 / v.cfg.CellSize)
	gb := b.Sub(v.origin).Mul(1 / v.cfg.CellSize)
	dg := gb.Sub(ga)

	cell := start
	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		switch {
		case dg[i] > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - ga[i]) / dg[i]
			tDelta[i] = 1 / dg[i]
		case dg[i] < 0:
			step[i] = -1
			tMax[i] = (ga[i] - float64(cell[i])) / -dg[i]
			tDelta[i] = -1 / dg[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	limit := 3
	for i := 0; i < 3; i++ {
		limit += abs(end[i] - start[i])
	}
	for n := 0; n < limit && cell != end; n++ {
		t := math.Min(tMax[0], math.Min(tMax[1], tMax[2]))
		if t > 1 {
			break
		}
		var tied []int
		for i := 0; i < 3; i++ {
			if tMax[i] <= t+1e-9 {
				tied = append(tied, i)
			}
		}
		if len(tied) > 1 {
			// corner crossing: every leaf around the shared edge or vertex
			for mask := 1; mask < 1<<len(tied)-1; mask++ {
				c := cell
				for k, axis := range tied {
					if mask&(1<<k) != 0 {
						c[axis] += step[axis]
					}
				}
				if !v.passable(c, region) {
					return false
				}
			}
		}
		for _, axis := range tied {
			cell[axis] += step[axis]
			tMax[axis] += tDelta[axis]
		}
		if !v.passable(cell, region) {
			return false
		}
	}
	return true
}

func (v *Volume) passable(c [3]int, region int) bool {
	if !v.inGrid(c) {
		return false
	}
	owner := v.leafOwner[v.index(c)]
	if owner < 0 {
		return false
	}
	return region == AnyRegion || v.nodes[owner].Region == region
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
