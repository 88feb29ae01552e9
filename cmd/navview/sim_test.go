package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/movement"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim(t *testing.T, name string, start mgl64.Vec3) *sim {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := navsys.DefaultConfig()
	cfg.Workers = 1
	sys, err := navsys.New(cfg, navsys.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	sc, err := loadScene(name)
	require.NoError(t, err)
	_, err = sys.Build(context.Background(), sc)
	require.NoError(t, err)

	m, err := movement.New(movement.DefaultConfig(), start, sc.Field)
	require.NoError(t, err)
	return newSim(sys, m, logger)
}

func waitPlan(t *testing.T, s *sim) {
	t.Helper()
	require.NotNil(t, s.ticket, s.status)
	<-s.ticket.Done()
}

func runUntil(s *sim, steps int, done func() bool) bool {
	for i := 0; i < steps; i++ {
		s.tick(1.0/60, false)
		if done() {
			return true
		}
	}
	return false
}

func TestSimFliesToGoal(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	s.plan(mgl64.Vec3{10, 0, 0})
	waitPlan(t, s)

	ok := runUntil(s, 60*30, func() bool { return s.mover.Mode() == movement.Arrived })
	require.True(t, ok, s.status)
	assert.Equal(t, "arrived", s.status)
	assert.InDelta(t, 10.0, s.mover.Position()[0], s.mover.Config().GoalTolerance)
	assert.Nil(t, s.ticket)
	require.NotNil(t, s.path)
}

func TestSimReplanCancelsPrevious(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	s.plan(mgl64.Vec3{10, 0, 0})
	first := s.ticket
	s.plan(mgl64.Vec3{-2, 0, 0})
	require.NotNil(t, s.ticket)
	assert.NotEqual(t, first.ID, s.ticket.ID)
	<-first.Done()
	state := first.State()
	assert.True(t, state == navsys.Cancelled || state == navsys.Done)
	waitPlan(t, s)

	ok := runUntil(s, 60*30, func() bool { return s.mover.Mode() == movement.Arrived })
	require.True(t, ok, s.status)
	assert.InDelta(t, -2.0, s.mover.Position()[0], s.mover.Config().GoalTolerance)
}

func TestSimReportsUnreachableGoal(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	s.plan(mgl64.Vec3{100, 0, 0})
	waitPlan(t, s)
	ok := runUntil(s, 600, func() bool { return s.ticket == nil })
	require.True(t, ok)
	assert.Contains(t, s.status, "goal")
	assert.Equal(t, movement.Idle, s.mover.Mode())
}

func TestParseVec(t *testing.T) {
	v, err := parseVec("1, 2,3")
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, v)
	_, err = parseVec("1,2")
	assert.Error(t, err)
}

func TestSimSettingsReplan(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	s.plan(mgl64.Vec3{10, 0, 0})
	first := s.ticket

	s.setAlgorithm(pathfind.LazyThetaStar)
	assert.Same(t, first, s.ticket, "unchanged algorithm should not replan")

	s.setAlgorithm(pathfind.AStar)
	require.NotSame(t, first, s.ticket)
	assert.Equal(t, pathfind.AStar, s.ticket.Request().Settings.Algorithm)
	waitPlan(t, s)
	ok := runUntil(s, 600, func() bool { return s.path != nil })
	require.True(t, ok, s.status)
	assert.Equal(t, pathfind.AStar, s.path.Algorithm)

	s.togglePartial()
	assert.False(t, s.settings.AllowPartial)
	assert.False(t, s.ticket.Request().Settings.AllowPartial)

	s.toggleSmoothing()
	assert.True(t, s.settings.DisableSmoothing)
	assert.True(t, s.ticket.Request().Settings.DisableSmoothing)
}

func TestSimHeuristicScaleClamps(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	assert.Equal(t, 1.0, s.heuristicScale())
	s.stepHeuristic(-1)
	assert.Equal(t, 1.0, s.heuristicScale())

	for i := 0; i < 20; i++ {
		s.stepHeuristic(1)
	}
	assert.Equal(t, 3.0, s.heuristicScale())
	s.stepHeuristic(-1)
	assert.Equal(t, 2.75, s.heuristicScale())
}

func TestSimRebuildRunsInBackground(t *testing.T) {
	s := newTestSim(t, "open", mgl64.Vec3{0, 0, 0})
	before := s.sys.Snapshot()
	sc, err := loadScene("pillars")
	require.NoError(t, err)

	s.rebuild(sc)
	assert.Equal(t, "rebuilding", s.status)
	building := s.building
	s.rebuild(sc)
	assert.Equal(t, building, s.building, "second rebuild should not start")

	ok := runUntil(s, 60*30, func() bool { return s.building == nil })
	require.True(t, ok)
	assert.Equal(t, "rebuilt", s.status)
	snap := s.sys.Snapshot()
	assert.Equal(t, "pillars", snap.Scene.Name)
	assert.Greater(t, snap.Version, before.Version)
}
