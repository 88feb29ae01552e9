package pathfind

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/volume"
)

const cancelCheckInterval = 256

type searchNode struct {
	g      float64
	parent int32
	closed bool
	// unverified is set when parent was taken on trust by Lazy Theta* and
	// line of sight still has to be checked.
	unverified bool
}

type search struct {
	v        *volume.Volume
	req      Request
	settings QuerySettings
	goal     int32
	goalPos  mgl64.Vec3
	nodes    map[int32]*searchNode
	open     openSet
	seq      uint64
	maxLevel int

	iterations int
	best       int32
	bestH      float64
}

// Find searches v for a path from req.Start to req.Goal. It does not modify
// v and may run concurrently with other searches on the same volume.
func Find(ctx context.Context, v *volume.Volume, req Request) (*Result, error) {
	if v == nil || v.Empty() {
		return nil, fmt.Errorf("%w: volume is empty", ErrNotFound)
	}
	start, goal, err := validateRequest(v, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	s := newSearch(v, req, goal)
	found, err := s.run(ctx, start)
	if err != nil {
		return nil, err
	}

	end := goal
	partial := false
	if !found {
		if !s.settings.AllowPartial {
			return nil, fmt.Errorf("%w: from %v to %v after %d iterations", ErrNotFound, req.Start, req.Goal, s.iterations)
		}
		end = s.best
		partial = true
	}

	chain := s.chain(start, end)
	if chain == nil {
		return nil, fmt.Errorf("%w: broken parent chain", ErrNotFound)
	}
	goalPos := req.Goal
	if partial {
		n, _ := v.Node(end)
		goalPos = n.Center
	}
	res := assemble(v, req.Start, req.Agent, s.settings, chain, goalPos)
	res.RequestID = req.ID
	res.Algorithm = s.settings.Algorithm
	res.SearchCost = s.nodes[end].g
	res.Partial = partial
	res.Iterations = s.iterations
	return res, nil
}

func validateRequest(v *volume.Volume, req Request) (int32, int32, error) {
	if !common.IsFinite(req.Start) {
		return 0, 0, &RequestError{Field: "start", Reason: "not finite"}
	}
	if !common.IsFinite(req.Goal) {
		return 0, 0, &RequestError{Field: "goal", Reason: "not finite"}
	}
	if err := validateFields(req); err != nil {
		return 0, 0, err
	}
	if req.Agent.Radius > v.AgentRadius()+1e-9 {
		return 0, 0, &RequestError{Field: "agent.radius", Reason: fmt.Sprintf("%.3f exceeds the volume's build radius %.3f", req.Agent.Radius, v.AgentRadius())}
	}
	bounds := v.Bounds()
	if !bounds.Contains(req.Start) {
		return 0, 0, &RequestError{Field: "start", Reason: "outside the volume"}
	}
	if !bounds.Contains(req.Goal) {
		return 0, 0, &RequestError{Field: "goal", Reason: "outside the volume"}
	}
	start, ok := v.Locate(req.Start)
	if !ok {
		return 0, 0, &RequestError{Field: "start", Reason: "not in free space"}
	}
	goal, ok := v.Locate(req.Goal)
	if !ok {
		return 0, 0, &RequestError{Field: "goal", Reason: "not in free space"}
	}
	return start, goal, nil
}

func newSearch(v *volume.Volume, req Request, goal int32) *search {
	settings := req.EffectiveSettings()
	if settings.HeuristicScale == 0 {
		settings.HeuristicScale = 1
	}
	if settings.MaxIterations == 0 {
		settings.MaxIterations = DefaultMaxIterations
	}
	gn, _ := v.Node(goal)
	return &search{
		v:        v,
		req:      req,
		settings: settings,
		goal:     goal,
		goalPos:  gn.Center,
		nodes:    make(map[int32]*searchNode),
		maxLevel: v.MaxLevel(),
		best:     -1,
		bestH:    math.Inf(1),
	}
}

func (s *search) run(ctx context.Context, start int32) (bool, error) {
	s.nodes[start] = &searchNode{g: 0, parent: start}
	s.push(start, 0)

	for s.open.Len() > 0 {
		item := heap.Pop(&s.open).(openItem)
		cur := s.nodes[item.node]
		if cur.closed || item.g > cur.g {
			continue
		}

		s.iterations++
		if s.iterations%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return false, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
		}
		if s.iterations > s.settings.MaxIterations {
			return false, nil
		}

		if cur.unverified {
			s.verifyParent(item.node, cur)
		}
		cur.closed = true

		if h := s.distanceToGoal(item.node); h < s.bestH || (h == s.bestH && item.node < s.best) {
			s.best = item.node
			s.bestH = h
		}
		if item.node == s.goal {
			return true, nil
		}

		for _, e := range s.v.Neighbors(item.node) {
			if !s.traversable(e) {
				continue
			}
			next := s.nodes[e.To]
			if next != nil && next.closed {
				continue
			}
			s.relax(item.node, cur, e, next)
		}
	}
	return false, nil
}

func (s *search) relax(from int32, cur *searchNode, e volume.Edge, next *searchNode) {
	g, parent, unverified := cur.g+s.edgeCost(e), from, false

	p := cur.parent
	if s.settings.Algorithm.AnyAngle() && p != from && !e.Transition && s.sameRegion(p, from, e.To) {
		switch s.settings.Algorithm {
		case LazyThetaStar:
			g, parent, unverified = s.nodes[p].g+s.segmentCost(p, e.To), p, true
		case ThetaStar:
			if s.lineOfSight(p, e.To) {
				g, parent = s.nodes[p].g+s.segmentCost(p, e.To), p
			}
		}
	}

	if next == nil {
		next = &searchNode{g: math.Inf(1), parent: -1}
		s.nodes[e.To] = next
	}
	if g >= next.g {
		return
	}
	next.g = g
	next.parent = parent
	next.unverified = unverified
	s.push(e.To, g)
}

// verifyParent checks the trusted parent of a Lazy Theta* node and falls back
// to the best closed neighbour when it is not visible.
func (s *search) verifyParent(id int32, n *searchNode) {
	n.unverified = false
	if s.lineOfSight(n.parent, id) {
		return
	}
	n.g = math.Inf(1)
	for _, e := range s.v.Neighbors(id) {
		if !s.traversable(e) {
			continue
		}
		nb := s.nodes[e.To]
		if nb == nil || !nb.closed {
			continue
		}
		back, ok := s.v.EdgeBetween(e.To, id)
		if !ok {
			continue
		}
		if g := nb.g + s.edgeCost(back); g < n.g {
			n.g = g
			n.parent = e.To
		}
	}
}

func (s *search) push(id int32, g float64) {
	s.seq++
	heap.Push(&s.open, openItem{
		node: id,
		f:    g + s.distanceToGoal(id)*s.settings.HeuristicScale,
		g:    g,
		seq:  s.seq,
	})
}

func (s *search) distanceToGoal(id int32) float64 {
	n, _ := s.v.Node(id)
	return n.Center.Sub(s.goalPos).Len()
}

func (s *search) traversable(e volume.Edge) bool {
	limit := s.req.Agent.MaxTransitionAngle
	return !e.Transition || limit <= 0 || e.Angle <= limit+1e-9
}

func (s *search) edgeCost(e volume.Edge) float64 {
	if s.settings.UnitCost {
		return 1 + e.Penalty
	}
	return (e.Cost-e.Penalty)*s.compensation(e.To) + e.Penalty
}

func (s *search) segmentCost(from, to int32) float64 {
	if s.settings.UnitCost {
		return 1
	}
	a, _ := s.v.Node(from)
	b, _ := s.v.Node(to)
	return a.Center.Sub(b.Center).Len() * s.compensation(to)
}

// compensation scales cost down for large nodes: leaves pay full cost and the
// largest nodes pay 1-MaxNodeCompensation.
func (s *search) compensation(id int32) float64 {
	if !s.settings.NodeCompensation || s.maxLevel == 0 {
		return 1
	}
	n, _ := s.v.Node(id)
	return 1 - MaxNodeCompensation*float64(n.Level)/float64(s.maxLevel)
}

func (s *search) sameRegion(a, b, c int32) bool {
	na, _ := s.v.Node(a)
	nb, _ := s.v.Node(b)
	nc, _ := s.v.Node(c)
	return na.Region == nb.Region && nb.Region == nc.Region
}

func (s *search) lineOfSight(a, b int32) bool {
	na, _ := s.v.Node(a)
	nb, _ := s.v.Node(b)
	if na.Region != nb.Region {
		return false
	}
	return s.v.LineOfSight(na.Center, nb.Center, na.Region)
}

// chain walks parents back from end and returns the node sequence from start.
func (s *search) chain(start, end int32) []int32 {
	var out []int32
	cur := end
	for i := 0; i <= len(s.nodes); i++ {
		out = append(out, cur)
		if cur == start {
			for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
				out[l], out[r] = out[r], out[l]
			}
			return out
		}
		n := s.nodes[cur]
		if n == nil || n.parent < 0 {
			return nil
		}
		cur = n.parent
	}
	return nil
}
