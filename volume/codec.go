package volume

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const codecVersion = 1

type snapshot struct {
	Version     int
	Config      BuildConfig
	SceneName   string
	ScenePrint  string
	Origin      mgl64.Vec3
	Dims        [3]int
	Nodes       []Node
	Edges       []Edge
	LeafOwner   []int32
	MaxLevel    int
	FreeLeaves  int
	Fingerprint string
}

// Encode serialises the volume for the graph cache.
func (v *Volume) Encode() ([]byte, error) {
	if v.Empty() {
		return nil, fmt.Errorf("volume: encode: empty volume")
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Version:     codecVersion,
		Config:      v.cfg,
		SceneName:   v.sceneName,
		ScenePrint:  v.scenePrint,
		Origin:      v.origin,
		Dims:        v.dims,
		Nodes:       v.nodes,
		Edges:       v.edges,
		LeafOwner:   v.leafOwner,
		MaxLevel:    v.maxLevel,
		FreeLeaves:  v.freeLeaves,
		Fingerprint: v.fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("volume: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a volume written by Encode and checks its fingerprint.
func Decode(data []byte) (*Volume, error) {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("volume: decode: %w", err)
	}
	if s.Version != codecVersion {
		return nil, fmt.Errorf("volume: decode: unsupported version %d", s.Version)
	}
	if err := s.check(); err != nil {
		return nil, fmt.Errorf("volume: decode: %w", err)
	}
	v := &Volume{
		cfg:        s.Config,
		sceneName:  s.SceneName,
		scenePrint: s.ScenePrint,
		origin:     s.Origin,
		dims:       s.Dims,
		nodes:      s.Nodes,
		edges:      s.Edges,
		leafOwner:  s.LeafOwner,
		maxLevel:   s.MaxLevel,
		freeLeaves: s.FreeLeaves,
	}
	v.fingerprint = v.digest()
	if v.fingerprint != s.Fingerprint {
		return nil, fmt.Errorf("volume: decode: fingerprint mismatch")
	}
	return v, nil
}

// check rejects snapshots whose indices would fall outside their tables.
func (s *snapshot) check() error {
	cells := 1
	for _, d := range s.Dims {
		if d < 0 || (d > 0 && cells > math.MaxInt32/d) {
			return fmt.Errorf("bad dims %v", s.Dims)
		}
		cells *= d
	}
	if len(s.LeafOwner) != cells {
		return fmt.Errorf("leaf table has %d entries for dims %v", len(s.LeafOwner), s.Dims)
	}
	nodes := int32(len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID != int32(i) {
			return fmt.Errorf("node %d has id %d", i, n.ID)
		}
		if n.EdgeStart < 0 || n.EdgeStart > n.EdgeEnd || int(n.EdgeEnd) > len(s.Edges) {
			return fmt.Errorf("node %d edge range [%d, %d) outside %d edges", i, n.EdgeStart, n.EdgeEnd, len(s.Edges))
		}
	}
	for i, e := range s.Edges {
		if e.To < 0 || e.To >= nodes {
			return fmt.Errorf("edge %d targets node %d of %d", i, e.To, nodes)
		}
	}
	for i, owner := range s.LeafOwner {
		if owner < -1 || owner >= nodes {
			return fmt.Errorf("leaf %d owned by node %d of %d", i, owner, nodes)
		}
	}
	return nil
}

func (v *Volume) digest() string {
	h := sha256.New()
	w := func(data any) {
		_ = binary.Write(h, binary.LittleEndian, data)
	}
	f := func(x float64) {
		w(math.Float64bits(x))
	}
	vec := func(p mgl64.Vec3) {
		f(p[0])
		f(p[1])
		f(p[2])
	}

	vec(v.origin)
	f(v.cfg.CellSize)
	f(v.cfg.AgentRadius)
	for _, d := range v.dims {
		w(int64(d))
	}
	w(int64(len(v.nodes)))
	for _, n := range v.nodes {
		w(n.ID)
		w(n.Level)
		for _, c := range n.Cell {
			w(int64(c))
		}
		vec(n.Min)
		f(n.Size)
		vec(n.Center)
		w(int64(n.Region))
		vec(n.Up)
		w(n.EdgeStart)
		w(n.EdgeEnd)
	}
	for _, e := range v.edges {
		w(e.To)
		f(e.Cost)
		w(e.Transition)
		f(e.Penalty)
		f(e.Angle)
	}
	w(v.leafOwner)
	return hex.EncodeToString(h.Sum(nil))
}
