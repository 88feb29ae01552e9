package volume

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/scene"
	"golang.org/x/sync/errgroup"
)

type leaf struct {
	free   bool
	region int
}

// Build voxelises sc and links the resulting nodes. field overrides the
// scene's own gravity field when non-nil. On failure the returned volume is
// empty, never nil, and the error wraps ErrBuildFailed.
func Build(ctx context.Context, sc *scene.Scene, field gravity.Field, cfg BuildConfig) (*Volume, error) {
	if sc == nil {
		return Empty(), fmt.Errorf("%w: nil scene", ErrBuildFailed)
	}
	if field == nil {
		field = sc.Field
	}
	if field == nil {
		return Empty(), fmt.Errorf("%w: scene %s has no gravity field", ErrBuildFailed, sc.Name)
	}
	if err := cfg.Validate(); err != nil {
		return Empty(), fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	if !sc.Bounds.Valid() {
		return Empty(), fmt.Errorf("%w: scene %s has invalid bounds", ErrBuildFailed, sc.Name)
	}

	size := sc.Bounds.Size()
	var dims [3]int
	total := 1.0
	for i := 0; i < 3; i++ {
		n := math.Ceil(size[i]/cfg.CellSize - 1e-9)
		if n < 1 {
			n = 1
		}
		total *= n
		dims[i] = int(n)
	}
	if total > float64(cfg.MaxCells) {
		return Empty(), fmt.Errorf("%w: scene %s needs %.0f cells, limit is %d", ErrBuildFailed, sc.Name, total, cfg.MaxCells)
	}

	v := &Volume{
		cfg:        cfg,
		sceneName:  sc.Name,
		scenePrint: sc.Fingerprint(),
		origin:     sc.Bounds.Min,
		dims:       dims,
	}

	leaves, err := v.classify(ctx, sc, field)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return Empty(), fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	v.merge(leaves, field)
	v.link()
	v.fingerprint = v.digest()
	return v, nil
}

// classify marks every leaf free or blocked. Work is split into z slabs that
// write disjoint ranges, so the result does not depend on scheduling.
func (v *Volume) classify(ctx context.Context, sc *scene.Scene, field gravity.Field) ([]leaf, error) {
	nx, ny, nz := v.dims[0], v.dims[1], v.dims[2]
	leaves := make([]leaf, nx*ny*nz)
	clearance := v.cfg.AgentRadius + v.cfg.CellSize*math.Sqrt(3)/2

	workers := v.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for z := 0; z < nz; z++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					c := [3]int{x, y, z}
					p := v.leafCenter(c)
					l := &leaves[v.index(c)]
					if sc.Distance(p) < clearance {
						continue
					}
					l.free = true
					l.region = field.Sample(p).Region
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return leaves, nil
}

// merge groups leaves into the largest cubes that are entirely free and in
// one region. Blocks are visited in z, y, x order so node ids are stable.
func (v *Volume) merge(leaves []leaf, field gravity.Field) {
	v.leafOwner = make([]int32, len(leaves))
	for i := range v.leafOwner {
		v.leafOwner[i] = -1
	}
	for _, l := range leaves {
		if l.free {
			v.freeLeaves++
		}
	}

	top := v.cfg.MaxMergeLevel
	span := 1 << top
	for z := 0; z < v.dims[2]; z += span {
		for y := 0; y < v.dims[1]; y += span {
			for x := 0; x < v.dims[0]; x += span {
				v.emit(leaves, field, [3]int{x, y, z}, top)
			}
		}
	}
}

func (v *Volume) emit(leaves []leaf, field gravity.Field, c [3]int, level int) {
	if region, ok := v.uniform(leaves, c, level); ok {
		v.addNode(field, c, level, region)
		return
	}
	if level == 0 {
		return
	}
	half := 1 << (level - 1)
	for dz := 0; dz < 2; dz++ {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				child := [3]int{c[0] + dx*half, c[1] + dy*half, c[2] + dz*half}
				if !v.inGrid(child) {
					continue
				}
				v.emit(leaves, field, child, level-1)
			}
		}
	}
}

// uniform reports whether the cube of 2^level leaves at c is fully inside the
// grid, free and in a single region.
func (v *Volume) uniform(leaves []leaf, c [3]int, level int) (int, bool) {
	span := 1 << level
	for i := 0; i < 3; i++ {
		if c[i]+span > v.dims[i] {
			return 0, false
		}
	}
	region := 0
	for z := c[2]; z < c[2]+span; z++ {
		for y := c[1]; y < c[1]+span; y++ {
			for x := c[0]; x < c[0]+span; x++ {
				l := leaves[v.index([3]int{x, y, z})]
				if !l.free {
					return 0, false
				}
				if x == c[0] && y == c[1] && z == c[2] {
					region = l.region
				} else if l.region != region {
					return 0, false
				}
			}
		}
	}
	return region, true
}

func (v *Volume) addNode(field gravity.Field, c [3]int, level, region int) {
	id := int32(len(v.nodes))
	size := v.cfg.CellSize * float64(int(1)<<level)
	minCorner := v.origin.Add(mgl64.Vec3{float64(c[0]), float64(c[1]), float64(c[2])}.Mul(v.cfg.CellSize))
	center := minCorner.Add(mgl64.Vec3{size, size, size}.Mul(0.5))
	v.nodes = append(v.nodes, Node{
		ID:     id,
		Level:  uint8(level),
		Cell:   c,
		Min:    minCorner,
		Size:   size,
		Center: center,
		Up:     field.Sample(center).Up(),
		Region: region,
	})
	span := 1 << level
	for z := c[2]; z < c[2]+span; z++ {
		for y := c[1]; y < c[1]+span; y++ {
			for x := c[0]; x < c[0]+span; x++ {
				v.leafOwner[v.index([3]int{x, y, z})] = id
			}
		}
	}
	if level > v.maxLevel {
		v.maxLevel = level
	}
}

// link connects every pair of nodes that share a face.
func (v *Volume) link() {
	for i := range v.nodes {
		n := &v.nodes[i]
		n.EdgeStart = int32(len(v.edges))
		for _, to := range v.faceNeighbors(*n) {
			m := v.nodes[to]
			e := Edge{
				To:    to,
				Cost:  n.Center.Sub(m.Center).Len(),
				Angle: common.AngleBetween(n.Up, m.Up),
			}
			if n.Region != m.Region {
				e.Transition = true
				e.Penalty = v.cfg.TransitionPenalty
				e.Cost += e.Penalty
			}
			v.edges = append(v.edges, e)
		}
		n.EdgeEnd = int32(len(v.edges))
	}
}

func (v *Volume) faceNeighbors(n Node) []int32 {
	span := 1 << n.Level
	seen := map[int32]struct{}{}
	var out []int32
	for axis := 0; axis < 3; axis++ {
		u, w := (axis+1)%3, (axis+2)%3
		for _, side := range []int{-1, span} {
			for a := 0; a < span; a++ {
				for b := 0; b < span; b++ {
					var c [3]int
					c[axis] = n.Cell[axis] + side
					c[u] = n.Cell[u] + a
					c[w] = n.Cell[w] + b
					if !v.inGrid(c) {
						continue
					}
					owner := v.leafOwner[v.index(c)]
					if owner < 0 || owner == n.ID {
						continue
					}
					if _, ok := seen[owner]; ok {
						continue
					}
					seen[owner] = struct{}{}
					out = append(out, owner)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (v *Volume) leafCenter(c [3]int) mgl64.Vec3 {
	return v.origin.Add(mgl64.Vec3{float64(c[0]) + 0.5, float64(c[1]) + 0.5, float64(c[2]) + 0.5}.Mul(v.cfg.CellSize))
}
