// Package navcache keeps built volumes in a badger database so that a
// restart does not have to voxelise unchanged scenes again.
package navcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/milk9111/gravnav/volume"
)

const keyPrefix = "volume/"

type Config struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
	// TTL expires entries. Zero keeps them forever.
	TTL time.Duration
	// GCInterval runs value log GC periodically. Zero disables it.
	GCInterval time.Duration
}

func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		TTL:        7 * 24 * time.Hour,
		GCInterval: 10 * time.Minute,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a volume cache keyed by the caller's build key.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("navcache: path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("navcache: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("navcache: open: %w", err)
	}

	s := &Store{
		db:     db,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC(cfg.GCInterval)
	} else {
		close(s.doneCh)
	}
	return s, nil
}

func (s *Store) Close() error {
	select {
	case <-s.stopCh:
		return nil
	default:
	}
	close(s.stopCh)
	<-s.doneCh
	return s.db.Close()
}

// Get returns the volume stored under key. A corrupt entry is deleted and
// reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (*volume.Volume, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("navcache: get %s: %w", key, err)
	}

	v, err := volume.Decode(data)
	if err != nil {
		s.logger.Warn("navcache: dropping unreadable entry", "key", key, "err", err)
		if derr := s.Delete(ctx, key); derr != nil {
			return nil, false, derr
		}
		return nil, false, nil
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, v *volume.Volume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := v.Encode()
	if err != nil {
		return fmt.Errorf("navcache: put %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("navcache: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("navcache: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored build keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("navcache: keys: %w", err)
	}
	return keys, nil
}

func (s *Store) runGC(interval time.Duration) {
	defer close(s.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("navcache: value log gc", "err", err)
			}
		}
	}
}
