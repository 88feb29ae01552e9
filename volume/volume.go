package volume

import (
	"errors"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

var ErrBuildFailed = errors.New("volume: build failed")

// Node is a free, gravity-uniform cube of the octree.
type Node struct {
	ID    int32
	Level uint8
	// Cell is the leaf coordinate of the node's minimum corner.
	Cell   [3]int
	Min    mgl64.Vec3
	Size   float64
	Center mgl64.Vec3
	Up     mgl64.Vec3
	Region int
	// EdgeStart and EdgeEnd delimit the node's edges in the edge arena.
	EdgeStart int32
	EdgeEnd   int32
}

func (n Node) Bounds() common.AABB {
	return common.AABB{Min: n.Min, Max: n.Min.Add(mgl64.Vec3{n.Size, n.Size, n.Size})}
}

// Edge connects two face-adjacent nodes. Edges are stored in both directions
// with equal cost.
type Edge struct {
	To   int32
	Cost float64
	// Transition is set when the two nodes are in different gravity regions.
	Transition bool
	Penalty    float64
	// Angle is the angle in radians between the two nodes' up vectors.
	Angle float64
}

type Stats struct {
	Leaves          int `json:"leaves"`
	FreeLeaves      int `json:"free_leaves"`
	Nodes           int `json:"nodes"`
	Edges           int `json:"edges"`
	TransitionEdges int `json:"transition_edges"`
	Regions         int `json:"regions"`
	MaxLevel        int `json:"max_level"`
}

// Volume is the navigation graph built from one scene. It is never mutated
// after Build returns and is safe for concurrent readers.
type Volume struct {
	cfg         BuildConfig
	sceneName   string
	scenePrint  string
	origin      mgl64.Vec3
	dims        [3]int
	nodes       []Node
	edges       []Edge
	leafOwner   []int32
	maxLevel    int
	freeLeaves  int
	fingerprint string
}

// Empty returns a volume with no nodes. Every query on it fails.
func Empty() *Volume {
	return &Volume{}
}

func (v *Volume) Empty() bool {
	return v == nil || len(v.nodes) == 0
}

func (v *Volume) Config() BuildConfig { return v.cfg }
func (v *Volume) SceneName() string { return v.sceneName }

// SceneFingerprint is the fingerprint of the scene the volume was built from.
func (v *Volume) SceneFingerprint() string { return v.scenePrint }

func (v *Volume) AgentRadius() float64 { return v.cfg.AgentRadius }
func (v *Volume) CellSize() float64 { return v.cfg.CellSize }
func (v *Volume) MaxLevel() int { return v.maxLevel }
func (v *Volume) NodeCount() int { return len(v.nodes) }
func (v *Volume) Dims() [3]int { return v.dims }

// Bounds covers the whole leaf grid, which may extend past the scene bounds
// by less than one cell.
func (v *Volume) Bounds() common.AABB {
	if v.Empty() {
		return common.AABB{}
	}
	ext := mgl64.Vec3{float64(v.dims[0]), float64(v.dims[1]), float64(v.dims[2])}.Mul(v.cfg.CellSize)
	return common.AABB{Min: v.origin, Max: v.origin.Add(ext)}
}

func (v *Volume) Node(id int32) (Node, bool) {
	if v == nil || id < 0 || int(id) >= len(v.nodes) {
		return Node{}, false
	}
	return v.nodes[id], true
}

// Nodes returns the node arena. Callers must not modify it.
func (v *Volume) Nodes() []Node {
	if v == nil {
		return nil
	}
	return v.nodes
}

// Neighbors returns the edges leaving id, sorted by target. Callers must not
// modify the returned slice.
func (v *Volume) Neighbors(id int32) []Edge {
	n, ok := v.Node(id)
	if !ok {
		return nil
	}
	return v.edges[n.EdgeStart:n.EdgeEnd]
}

func (v *Volume) EdgeBetween(from, to int32) (Edge, bool) {
	es := v.Neighbors(from)
	i := sort.Search(len(es), func(i int) bool { return es[i].To >= to })
	if i < len(es) && es[i].To == to {
		return es[i], true
	}
	return Edge{}, false
}

// Locate returns the node containing p.
func (v *Volume) Locate(p mgl64.Vec3) (int32, bool) {
	c, ok := v.cellOf(p)
	if !ok {
		return -1, false
	}
	owner := v.leafOwner[v.index(c)]
	return owner, owner >= 0
}

// Free reports whether p lies in navigable space.
func (v *Volume) Free(p mgl64.Vec3) bool {
	_, ok := v.Locate(p)
	return ok
}

// SharedFace returns the rectangle where two adjacent nodes touch. The box is
// flat along the axis the nodes are stacked on.
func (v *Volume) SharedFace(a, b int32) (common.AABB, bool) {
	na, ok := v.Node(a)
	if !ok {
		return common.AABB{}, false
	}
	nb, ok := v.Node(b)
	if !ok {
		return common.AABB{}, false
	}
	ba, bb := na.Bounds(), nb.Bounds()
	var out common.AABB
	flat := 0
	for i := 0; i < 3; i++ {
		out.Min[i] = max(ba.Min[i], bb.Min[i])
		out.Max[i] = min(ba.Max[i], bb.Max[i])
		if out.Max[i] < out.Min[i]-common.KindaSmall {
			return common.AABB{}, false
		}
		if out.Max[i]-out.Min[i] <= common.KindaSmall {
			flat++
		}
	}
	return out, flat == 1
}

func (v *Volume) Stats() Stats {
	if v.Empty() {
		return Stats{}
	}
	s := Stats{
		Leaves:     v.dims[0] * v.dims[1] * v.dims[2],
		FreeLeaves: v.freeLeaves,
		Nodes:      len(v.nodes),
		Edges:      len(v.edges),
		MaxLevel:   v.maxLevel,
	}
	regions := map[int]struct{}{}
	for _, n := range v.nodes {
		regions[n.Region] = struct{}{}
	}
	s.Regions = len(regions)
	for _, e := range v.edges {
		if e.Transition {
			s.TransitionEdges++
		}
	}
	return s
}

// Fingerprint is a digest of the graph. Rebuilding the same scene with the
// same config yields the same fingerprint.
func (v *Volume) Fingerprint() string {
	if v == nil {
		return ""
	}
	return v.fingerprint
}

func (v *Volume) cellOf(p mgl64.Vec3) ([3]int, bool) {
	if v.Empty() || !common.IsFinite(p) {
		return [3]int{}, false
	}
	g := p.Sub(v.origin).Mul(1 / v.cfg.CellSize)
	c := common.Floor3(g)
	for i := 0; i < 3; i++ {
		// points on the far face belong to the last cell
		if c[i] == v.dims[i] && g[i] <= float64(v.dims[i])+common.KindaSmall {
			c[i] = v.dims[i] - 1
		}
		if c[i] < 0 || c[i] >= v.dims[i] {
			return c, false
		}
	}
	return c, true
}

func (v *Volume) inGrid(c [3]int) bool {
	return c[0] >= 0 && c[1] >= 0 && c[2] >= 0 && c[0] < v.dims[0] && c[1] < v.dims[1] && c[2] < v.dims[2]
}

func (v *Volume) index(c [3]int) int {
	return (c[2]*v.dims[1]+c[1])*v.dims[0] + c[0]
}
