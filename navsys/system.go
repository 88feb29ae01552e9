package navsys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	ErrClosed           = errors.New("navsys: system closed")
	ErrNoVolume         = errors.New("navsys: no volume built")
	ErrUnknownRequest   = errors.New("navsys: unknown request")
	ErrUnknownGenerator = errors.New("navsys: unknown generator")
	ErrQueueFull        = errors.New("navsys: request queue full")
	// ErrSuperseded is returned by a build that finished after a newer build
	// had been requested. Its volume is not installed.
	ErrSuperseded = errors.New("navsys: build superseded")
)

// Cache stores built volumes between runs.
type Cache interface {
	Get(ctx context.Context, key string) (*volume.Volume, bool, error)
	Put(ctx context.Context, key string, v *volume.Volume) error
}

type Option func(*System)

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCache(c Cache) Option {
	return func(s *System) {
		s.cache = c
	}
}

// WithTracerProvider records build and search spans on tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *System) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// Snapshot is an installed volume together with the scene it came from.
// Snapshots are never modified after install.
type Snapshot struct {
	Volume  *volume.Volume
	Scene   *scene.Scene
	Version uint64
	BuiltAt time.Time
}

type Stats struct {
	Scene       string       `json:"scene"`
	Fingerprint string       `json:"fingerprint"`
	Version     uint64       `json:"version"`
	BuiltAt     time.Time    `json:"built_at"`
	Volume      volume.Stats `json:"volume"`
	Tickets     int          `json:"tickets"`
	Queued      int          `json:"queued"`
}

// System owns the current volume snapshot and a pool of path workers.
// All methods are safe for concurrent use.
type System struct {
	cfg    Config
	gen    Generator
	logger *slog.Logger
	cache  Cache
	tracer trace.Tracer

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	flight  singleflight.Group

	// buildSeq orders builds by request time. buildMu is held for a whole
	// generation; installedSeq is only written under it.
	buildSeq     atomic.Uint64
	buildMu      sync.Mutex
	installedSeq atomic.Uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	jobs       chan *Ticket
	wg         sync.WaitGroup

	mu      sync.Mutex
	tickets map[string]*Ticket
	closed  bool
}

func New(cfg Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := LookupGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		cfg:        cfg,
		gen:        gen,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		baseCtx:    ctx,
		baseCancel: cancel,
		jobs:       make(chan *Ticket, cfg.QueueSize),
		tickets:    make(map[string]*Ticket),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

func (s *System) Config() Config {
	return s.cfg
}

// Snapshot returns the installed snapshot, or nil before the first build.
func (s *System) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *System) Volume() *volume.Volume {
	if snap := s.current.Load(); snap != nil {
		return snap.Volume
	}
	return nil
}

// Build generates a volume for sc and installs it. Identical concurrent
// builds share one generation, which keeps running when a caller gives up and
// stops only on Close. Builds are serialised and a build requested earlier
// never replaces one requested later. When generation fails on the scene an
// empty volume is installed so queries report no path until the next
// successful build; a cancelled generation installs nothing.
func (s *System) Build(ctx context.Context, sc *scene.Scene) (*volume.Volume, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if sc == nil {
		return nil, fmt.Errorf("navsys: build: %w: nil scene", volume.ErrBuildFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("navsys: build %s: %w: %w", sc.Name, pathfind.ErrCancelled, err)
	}

	seq := s.buildSeq.Add(1)
	key := s.cacheKey(sc)
	genCtx := trace.ContextWithSpan(s.baseCtx, trace.SpanFromContext(ctx))
	for {
		ch := s.flight.DoChan(key, func() (any, error) {
			return s.build(genCtx, sc, key, seq)
		})
		select {
		case r := <-ch:
			if r.Shared {
				s.logger.Debug("navsys: build shared", "scene", sc.Name, "key", key)
			}
			// A shared generation requested before ours can be superseded by a
			// build that ours should still replace.
			if r.Shared && errors.Is(r.Err, ErrSuperseded) && seq > s.installedSeq.Load() {
				continue
			}
			vol, _ := r.Val.(*volume.Volume)
			return vol, r.Err
		case <-ctx.Done():
			return nil, fmt.Errorf("navsys: build %s: %w: %w", sc.Name, pathfind.ErrCancelled, ctx.Err())
		}
	}
}

func (s *System) build(ctx context.Context, sc *scene.Scene, key string, seq uint64) (*volume.Volume, error) {
	ctx, span := s.tracer.Start(ctx, "System.Build", trace.WithAttributes(
		attribute.String("scene", sc.Name),
		attribute.String("generator", s.cfg.Generator),
		attribute.Int64("seq", int64(seq)),
	))
	defer span.End()

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if seq < s.installedSeq.Load() {
		return nil, s.superseded(span, sc, seq)
	}

	if s.cache != nil {
		vol, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("navsys: cache read failed", "scene", sc.Name, "err", err)
		case ok && vol.SceneFingerprint() == sc.Fingerprint():
			buildsTotal.WithLabelValues("cached").Inc()
			snap := s.install(vol, sc, seq)
			span.SetAttributes(attribute.Bool("cached", true), attribute.Int("nodes", vol.NodeCount()))
			s.logger.Info("navsys: volume loaded from cache", "scene", sc.Name, "nodes", vol.NodeCount(), "version", snap.Version)
			return vol, nil
		}
	}

	start := time.Now()
	vol, err := s.gen(ctx, sc, nil, s.cfg.Build)
	buildDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		buildsTotal.WithLabelValues("cancelled").Inc()
		span.SetStatus(codes.Error, "build cancelled")
		s.logger.Info("navsys: build cancelled", "scene", sc.Name, "err", err)
		return nil, fmt.Errorf("navsys: build %s: %w: %w", sc.Name, pathfind.ErrCancelled, err)
	case err != nil:
		buildsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		s.logger.Warn("navsys: build failed", "scene", sc.Name, "err", err)
		if vol == nil {
			vol = volume.Empty()
		}
		s.install(vol, sc, seq)
		return vol, fmt.Errorf("navsys: build %s: %w", sc.Name, err)
	}

	buildsTotal.WithLabelValues("ok").Inc()
	snap := s.install(vol, sc, seq)
	span.SetAttributes(attribute.Int("nodes", vol.NodeCount()))
	s.logger.Info("navsys: volume built",
		"scene", sc.Name,
		"nodes", vol.NodeCount(),
		"version", snap.Version,
		"duration", time.Since(start),
	)

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, vol); err != nil {
			s.logger.Warn("navsys: cache write failed", "scene", sc.Name, "err", err)
		}
	}
	return vol, nil
}

func (s *System) superseded(span trace.Span, sc *scene.Scene, seq uint64) error {
	buildsTotal.WithLabelValues("superseded").Inc()
	span.SetAttributes(attribute.Bool("superseded", true))
	s.logger.Info("navsys: build superseded", "scene", sc.Name, "seq", seq, "installed", s.installedSeq.Load())
	return fmt.Errorf("navsys: build %s: %w", sc.Name, ErrSuperseded)
}

// install swaps in a new snapshot. The caller holds buildMu.
func (s *System) install(vol *volume.Volume, sc *scene.Scene, seq uint64) *Snapshot {
	snap := &Snapshot{
		Volume:  vol,
		Scene:   sc,
		Version: s.version.Add(1),
		BuiltAt: time.Now(),
	}
	old := s.current.Swap(snap)
	s.installedSeq.Store(seq)

	volumeNodes.Set(float64(vol.NodeCount()))
	if old != nil && s.cfg.CancelInFlightOnRebuild {
		if n := s.cancelRunning(); n > 0 {
			s.logger.Info("navsys: cancelled in-flight requests", "count", n, "version", snap.Version)
		}
	}
	return snap
}

func (s *System) cacheKey(sc *scene.Scene) string {
	b := s.cfg.Build
	return fmt.Sprintf("%s/%s/%g/%g/%d/%g", s.cfg.Generator, sc.Fingerprint(), b.CellSize, b.AgentRadius, b.MaxMergeLevel, b.TransitionPenalty)
}

// FindPath searches the current snapshot synchronously.
func (s *System) FindPath(ctx context.Context, req pathfind.Request) (*pathfind.Result, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoVolume
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return s.find(ctx, snap, s.withDefaults(req))
}

func (s *System) find(ctx context.Context, snap *Snapshot, req pathfind.Request) (*pathfind.Result, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	ctx, span := s.tracer.Start(ctx, "System.FindPath", trace.WithAttributes(
		attribute.String("request_id", req.ID),
		attribute.String("algorithm", req.EffectiveSettings().Algorithm.String()),
		attribute.Int64("version", int64(snap.Version)),
	))
	defer span.End()

	start := time.Now()
	res, err := pathfind.Find(ctx, snap.Volume, req)
	pathSearchDuration.WithLabelValues(req.EffectiveSettings().Algorithm.String()).Observe(time.Since(start).Seconds())
	pathRequestsTotal.WithLabelValues(resultLabel(res, err)).Inc()
	if err != nil {
		span.RecordError(err)
		s.logger.Debug("navsys: path failed", "request", req.ID, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("iterations", res.Iterations), attribute.Float64("cost", res.Cost))
	return res, nil
}

// withDefaults fills in the configured query settings when req has none and
// copies them otherwise, so later edits by the caller do not reach a worker.
func (s *System) withDefaults(req pathfind.Request) pathfind.Request {
	settings := s.cfg.Query
	if req.Settings != nil {
		settings = *req.Settings
	}
	req.Settings = &settings
	return req
}

// RequestPath queues req for a worker. The returned ticket delivers the
// outcome unless it is cancelled first.
func (s *System) RequestPath(req pathfind.Request) (*Ticket, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req = s.withDefaults(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tickets[req.ID]; ok {
		return nil, &pathfind.RequestError{Field: "id", Reason: "already in use"}
	}
	// Sends happen only under s.mu, so a free slot seen here stays free.
	if len(s.jobs) == cap(s.jobs) {
		pathRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrQueueFull
	}
	t := newTicket(s.baseCtx, req)
	select {
	case s.jobs <- t:
	default:
		t.cancel()
		pathRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrQueueFull
	}
	s.tickets[req.ID] = t
	queueDepth.Inc()
	return t, nil
}

// Ticket looks up a request that has not been released.
func (s *System) Ticket(id string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	return t, nil
}

// Cancel cancels and forgets request id. No outcome is delivered for it
// afterwards.
func (s *System) Cancel(id string) error {
	s.mu.Lock()
	t, ok := s.tickets[id]
	delete(s.tickets, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if t.Cancel() {
		pathRequestsTotal.WithLabelValues("cancelled").Inc()
	}
	return nil
}

// Release forgets a finished ticket.
func (s *System) Release(id string) {
	s.mu.Lock()
	delete(s.tickets, id)
	s.mu.Unlock()
}

func (s *System) Stats() Stats {
	s.mu.Lock()
	st := Stats{Tickets: len(s.tickets), Queued: len(s.jobs)}
	s.mu.Unlock()
	if snap := s.current.Load(); snap != nil {
		st.Scene = snap.Volume.SceneName()
		st.Fingerprint = snap.Volume.Fingerprint()
		st.Version = snap.Version
		st.BuiltAt = snap.BuiltAt
		st.Volume = snap.Volume.Stats()
	}
	return st
}

// Close stops accepting requests, cancels everything not yet delivered and
// waits for the workers.
func (s *System) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, t := range s.tickets {
		t.Cancel()
		delete(s.tickets, id)
	}
	close(s.jobs)
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
	queueDepth.Set(0)
	return nil
}

func (s *System) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *System) worker() {
	defer s.wg.Done()
	for t := range s.jobs {
		queueDepth.Dec()
		s.process(t)
	}
}

func (s *System) process(t *Ticket) {
	if !t.start() {
		return
	}
	snap := s.current.Load()
	if snap == nil {
		t.deliver(Outcome{Err: ErrNoVolume})
		return
	}
	res, err := s.find(t.ctx, snap, t.req)
	if !t.deliver(Outcome{Result: res, Err: err}) {
		s.logger.Debug("navsys: dropped outcome of cancelled request", "request", t.ID)
	}
}

func (s *System) cancelRunning() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tickets {
		if t.State() != Running {
			continue
		}
		if t.Cancel() {
			delete(s.tickets, id)
			n++
		}
	}
	return n
}

func resultLabel(res *pathfind.Result, err error) string {
	switch {
	case err == nil && res.Partial:
		return "partial"
	case err == nil:
		return "ok"
	case errors.Is(err, pathfind.ErrNotFound):
		return "not_found"
	case errors.Is(err, pathfind.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, pathfind.ErrCancelled):
		return "cancelled"
	}
	return "error"
}
