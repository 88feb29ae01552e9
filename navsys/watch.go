package navsys

import (
	"context"
	"os"
	"path/filepath"

	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/scenes"
	"golang.org/x/time/rate"
)

// WatchScene builds the scene at path and rebuilds it whenever the file or a
// script next to it changes, at most once per RebuildInterval. It returns
// when ctx ends. Reload and build errors are logged and the previous volume
// stays installed unless the build itself failed.
func (s *System) WatchScene(ctx context.Context, path string) error {
	sc, err := scene.Load(path)
	if err != nil {
		return err
	}
	if _, err := s.Build(ctx, sc); err != nil {
		s.logger.Warn("navsys: initial build failed", "path", path, "err", err)
	}

	dir := filepath.Dir(path)
	dirs := []string{dir}
	if scripts := filepath.Join(dir, "scripts"); isDir(scripts) {
		dirs = append(dirs, scripts)
	}
	w, err := scenes.NewWatcher(dirs...)
	if err != nil {
		return err
	}
	defer w.Close()

	limit := rate.Inf
	if s.cfg.RebuildInterval > 0 {
		limit = rate.Every(s.cfg.RebuildInterval)
	}
	limiter := rate.NewLimiter(limit, 1)
	target, _ := filepath.Abs(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("navsys: watch error", "err", err)
		case c, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if c.Kind == scenes.SceneFile {
				if abs, _ := filepath.Abs(c.Path); abs != target {
					continue
				}
				if c.Removed {
					s.logger.Warn("navsys: scene file removed, keeping current volume", "path", path)
					continue
				}
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			s.reload(ctx, path, c.Path)
		}
	}
}

func (s *System) reload(ctx context.Context, path, changed string) {
	sc, err := scene.Load(path)
	if err != nil {
		s.logger.Warn("navsys: reload failed", "path", path, "changed", changed, "err", err)
		return
	}
	if prev := s.current.Load(); prev != nil && prev.Scene != nil && prev.Scene.Fingerprint() == sc.Fingerprint() {
		s.logger.Debug("navsys: scene unchanged", "path", path)
		return
	}
	s.logger.Info("navsys: rebuilding", "path", path, "changed", changed)
	if _, err := s.Build(ctx, sc); err != nil {
		s.logger.Warn("navsys: rebuild failed", "path", path, "err", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
