package pathfind

type openItem struct {
	node int32
	f    float64
	g    float64
	seq  uint64
}

// openSet is a binary heap ordered by f, then g, then insertion order.
// Stale entries are skipped when popped rather than removed.
type openSet []openItem

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].g != o[j].g {
		return o[i].g < o[j].g
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any) {
	*o = append(*o, x.(openItem))
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}
