package navcache

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ navsys.Cache = (*Store)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func buildVolume(t *testing.T, name string) *volume.Volume {
	t.Helper()
	sc, err := scene.LoadEmbedded(name)
	require.NoError(t, err)
	v, err := volume.Build(context.Background(), sc, nil, volume.DefaultBuildConfig())
	require.NoError(t, err)
	return v
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	v := buildVolume(t, "two_regions")

	_, ok, err := s.Get(ctx, "two_regions")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "two_regions", v))
	got, ok, err := s.Get(ctx, "two_regions")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v.Fingerprint(), got.Fingerprint())
	assert.Equal(t, v.Stats(), got.Stats())
	assert.Equal(t, v.SceneFingerprint(), got.SceneFingerprint())

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"two_regions"}, keys)

	require.NoError(t, s.Delete(ctx, "two_regions"))
	_, ok, err = s.Get(ctx, "two_regions")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"bad"), []byte("not a volume"))
	}))

	_, ok, err := s.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPutRejectsEmptyVolume(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Put(context.Background(), "empty", volume.Empty()))
}

func TestCancelledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersistentRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestPersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := buildVolume(t, "open")

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "open", v))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.Get(ctx, "open")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v.Fingerprint(), got.Fingerprint())
}

func TestSystemLoadsFromStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	sc, err := scene.LoadEmbedded("open")
	require.NoError(t, err)

	cfg := navsys.DefaultConfig()
	cfg.Workers = 1
	sys, err := navsys.New(cfg, navsys.WithCache(s))
	require.NoError(t, err)
	defer sys.Close()

	built, err := sys.Build(ctx, sc)
	require.NoError(t, err)
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	cached, ok, err := s.Get(ctx, keys[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, built.Fingerprint(), cached.Fingerprint())
}
