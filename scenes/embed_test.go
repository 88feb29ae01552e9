package scenes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "open")
	assert.Contains(t, names, "two_regions")
}

func TestLoadCleansPaths(t *testing.T) {
	for _, name := range []string{"open", "open.yaml", "scenes/open.yaml"} {
		data, err := Load(name)
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "name: open")
	}

	for _, name := range []string{"swirl.tengo", "scripts/swirl.tengo", "scenes/scripts/swirl.tengo"} {
		data, err := LoadScript(name)
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "down")
	}

	_, err := Load("missing")
	assert.Error(t, err)
}

func TestLoadPrefersDisk(t *testing.T) {
	dir := t.TempDir()
	old := Dir
	Dir = dir
	t.Cleanup(func() { Dir = old })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "open.yaml"), []byte("name: edited\n"), 0o644))
	data, err := Load("open")
	require.NoError(t, err)
	assert.Equal(t, "name: edited\n", string(data))

	_, ok := ModTime("open")
	assert.True(t, ok)
}

func TestLoadRejectsNamesOutsideDir(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "secret.tengo")
	require.NoError(t, os.WriteFile(outside, []byte("down = [0, 0, 1]\n"), 0o644))

	old := Dir
	Dir = filepath.Join(dir, "scenes")
	t.Cleanup(func() { Dir = old })

	for _, name := range []string{"../secret.tengo", "../../secret.tengo", "scripts/../../secret.tengo", outside} {
		_, err := LoadScript(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	for _, name := range []string{"../open", "/etc/passwd"} {
		_, err := Load(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, ok := ModTime("../open")
	assert.False(t, ok)
}

func nextChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.Changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event")
	}
	return Change{}
}

func TestWatcherReportsSettledChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	room := filepath.Join(dir, "room.yaml")
	script := filepath.Join(dir, "swirl.tengo")
	require.NoError(t, os.WriteFile(room, []byte("name: room\n"), 0o644))
	require.NoError(t, os.WriteFile(script, []byte("down = [0, -1, 0]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Equal(t, Change{Path: room, Kind: SceneFile}, nextChange(t, w))
	assert.Equal(t, Change{Path: script, Kind: ScriptFile}, nextChange(t, w))
	select {
	case c := <-w.Changes:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(3 * Settle):
	}
}

func TestWatcherReportsRecreatedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "room.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: room\n"), 0o644))
	assert.Equal(t, Change{Path: path, Kind: SceneFile}, nextChange(t, w))

	// delete and recreate before the file settles
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, []byte("name: room2\n"), 0o644))
	assert.Equal(t, Change{Path: path, Kind: SceneFile}, nextChange(t, w))

	require.NoError(t, os.Remove(path))
	assert.Equal(t, Change{Path: path, Kind: SceneFile, Removed: true}, nextChange(t, w))
}
