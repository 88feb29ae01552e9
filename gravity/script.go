package gravity

import (
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

// Script evaluates a tengo program per sample. The program sees the sample
// position as x, y and z and must assign a three element array to down. It
// may also assign region (int) and strength (float).
//
//	if z > 50 {
//		down = [0, 0, 1]
//		region = 1
//	}
type Script struct {
	Name string

	mu       sync.Mutex
	compiled *tengo.Compiled
	lastErr  error
}

// CompileScript compiles src once. Only the math module may be imported.
func CompileScript(name string, src []byte) (*Script, error) {
	s := tengo.NewScript(src)
	_ = s.Add("x", 0.0)
	_ = s.Add("y", 0.0)
	_ = s.Add("z", 0.0)
	_ = s.Add("down", []any{0.0, 0.0, -1.0})
	_ = s.Add("region", 0)
	_ = s.Add("strength", 0.0)
	s.SetImports(stdlib.GetModuleMap("math"))

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("gravity: compile script %s: %w", name, err)
	}
	return &Script{Name: name, compiled: compiled}, nil
}

// Sample runs the program. A failing run falls back to world down and the
// error is kept for Err.
func (sc *Script) Sample(p mgl64.Vec3) Sample {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out, err := sc.run(p)
	if err != nil {
		sc.lastErr = err
		return Sample{Down: common.WorldDown, Strength: common.DefaultGravityStrength}
	}
	return out
}

// Err returns the most recent evaluation error, if any.
func (sc *Script) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastErr
}

func (sc *Script) run(p mgl64.Vec3) (Sample, error) {
	c := sc.compiled
	if err := c.Set("x", p[0]); err != nil {
		return Sample{}, err
	}
	if err := c.Set("y", p[1]); err != nil {
		return Sample{}, err
	}
	if err := c.Set("z", p[2]); err != nil {
		return Sample{}, err
	}
	if err := c.Set("down", []any{0.0, 0.0, -1.0}); err != nil {
		return Sample{}, err
	}
	if err := c.Set("region", 0); err != nil {
		return Sample{}, err
	}
	if err := c.Set("strength", 0.0); err != nil {
		return Sample{}, err
	}
	if err := c.Run(); err != nil {
		return Sample{}, fmt.Errorf("gravity: run script %s: %w", sc.Name, err)
	}

	raw := c.Get("down").Array()
	if len(raw) != 3 {
		return Sample{}, fmt.Errorf("gravity: script %s: down must have 3 components, got %d", sc.Name, len(raw))
	}
	var down mgl64.Vec3
	for i, v := range raw {
		f, ok := toFloat(v)
		if !ok {
			return Sample{}, fmt.Errorf("gravity: script %s: down[%d] is not a number", sc.Name, i)
		}
		down[i] = f
	}
	n := common.SafeNormal(down)
	if common.IsZero(n) {
		return Sample{}, fmt.Errorf("gravity: script %s: down is zero", sc.Name)
	}

	return Sample{
		Down:     n,
		Strength: strengthOr(c.Get("strength").Float()),
		Region:   c.Get("region").Int(),
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
