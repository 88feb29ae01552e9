package scenes

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

//go:embed scripts/*.tengo
var ScriptsFS embed.FS

//go:embed *.yaml
var ScenesFS embed.FS

// ErrInvalidName is returned for names that would leave the scenes
// directory, such as absolute paths or paths containing "..".
var ErrInvalidName = errors.New("scenes: invalid name")

// Dir is the on-disk directory checked before the embedded copies, so that
// edited scenes are picked up without a rebuild of the binary.
var Dir = "scenes"

// Load returns a scene file, preferring the on-disk copy under Dir.
func Load(name string) ([]byte, error) {
	clean := cleanScenePath(name)
	if err := checkLocal(name, clean); err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	data, err := ScenesFS.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("scenes: load %s: %w", name, err)
	}
	return data, nil
}

// LoadScript returns a gravity script, preferring the on-disk copy.
func LoadScript(name string) ([]byte, error) {
	clean := cleanScriptPath(name)
	if err := checkLocal(name, clean); err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	data, err := ScriptsFS.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("scenes: load script %s: %w", name, err)
	}
	return data, nil
}

// Names lists the embedded scenes without their extension.
func Names() []string {
	entries, err := fs.ReadDir(ScenesFS, ".")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSpecFile(e.Name()) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(out)
	return out
}

func ModTime(name string) (time.Time, bool) {
	clean := cleanScenePath(name)
	if checkLocal(name, clean) != nil {
		return time.Time{}, false
	}
	info, err := os.Stat(diskPath(clean))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func cleanScenePath(path string) string {
	if path == "" {
		return ""
	}
	s := filepath.ToSlash(path)
	s = strings.TrimPrefix(s, "scenes/")
	if filepath.Ext(s) == "" {
		s += ".yaml"
	}
	return s
}

func cleanScriptPath(path string) string {
	if path == "" {
		return ""
	}
	s := filepath.ToSlash(path)
	if after, ok := strings.CutPrefix(s, "scenes/scripts/"); ok {
		s = after
	}
	if after, ok := strings.CutPrefix(s, "scenes/"); ok {
		s = after
	}
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	return fmt.Sprintf("scripts/%s", s)
}

// IsLocal reports whether name stays inside the directory it is joined to.
func IsLocal(name string) bool {
	return name != "" && filepath.IsLocal(filepath.FromSlash(name))
}

func checkLocal(name, clean string) error {
	if !IsLocal(name) || !IsLocal(clean) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func diskPath(clean string) string {
	return filepath.Join(Dir, filepath.FromSlash(clean))
}
