package navsys

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
)

// DefaultGenerator is the sparse voxel octree builder.
const DefaultGenerator = "svo"

// Generator turns a scene into a navigation volume. A nil field means the
// scene's own field.
type Generator func(ctx context.Context, sc *scene.Scene, field gravity.Field, cfg volume.BuildConfig) (*volume.Volume, error)

var (
	generatorsMu sync.RWMutex
	generators   = map[string]Generator{
		DefaultGenerator: volume.Build,
	}
)

// RegisterGenerator makes a generator available to Config.Generator.
func RegisterGenerator(name string, g Generator) error {
	if name == "" || g == nil {
		return fmt.Errorf("navsys: register generator: empty name or nil generator")
	}
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	if _, ok := generators[name]; ok {
		return fmt.Errorf("navsys: register generator %q: already registered", name)
	}
	generators[name] = g
	return nil
}

func LookupGenerator(name string) (Generator, error) {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	g, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}
	return g, nil
}

func Generators() []string {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	out := make([]string, 0, len(generators))
	for name := range generators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
