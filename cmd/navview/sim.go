package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/movement"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
)

const (
	heuristicStep     = 0.25
	maxHeuristicScale = 3
)

// sim drives one mover through a navigation system: it plans asynchronously,
// hands finished paths to the mover and replans when the mover asks.
type sim struct {
	sys      *navsys.System
	mover    movement.Mover
	settings pathfind.QuerySettings
	logger   *slog.Logger

	goal    mgl64.Vec3
	hasGoal bool
	ticket  *navsys.Ticket
	path    *pathfind.Result
	status  string

	// building receives the result of a rebuild running off the frame loop.
	building chan error
}

func newSim(sys *navsys.System, mover movement.Mover, logger *slog.Logger) *sim {
	return &sim{
		sys:      sys,
		mover:    mover.WithLogger(logger),
		settings: pathfind.QuerySettings{AllowPartial: true},
		logger:   logger,
		status:   "click to set a goal",
	}
}

// plan drops any outstanding request and asks for a path to goal.
func (s *sim) plan(goal mgl64.Vec3) {
	s.goal = goal
	s.hasGoal = true
	if s.ticket != nil {
		s.ticket.Cancel()
		s.sys.Release(s.ticket.ID)
		s.ticket = nil
	}
	settings := s.settings
	t, err := s.sys.RequestPath(pathfind.Request{
		Start:    s.mover.Position(),
		Goal:     goal,
		Settings: &settings,
	})
	if err != nil {
		s.status = err.Error()
		return
	}
	s.ticket = t
	s.status = "planning"
}

func (s *sim) replan() {
	if s.hasGoal {
		s.plan(s.goal)
	}
}

func (s *sim) setAlgorithm(a pathfind.Algorithm) {
	if s.settings.Algorithm == a {
		return
	}
	s.settings.Algorithm = a
	s.replan()
}

func (s *sim) togglePartial() {
	s.settings.AllowPartial = !s.settings.AllowPartial
	s.replan()
}

func (s *sim) toggleSmoothing() {
	s.settings.DisableSmoothing = !s.settings.DisableSmoothing
	s.replan()
}

func (s *sim) heuristicScale() float64 {
	if s.settings.HeuristicScale == 0 {
		return 1
	}
	return s.settings.HeuristicScale
}

// stepHeuristic moves the heuristic scale by dir steps within [1, 3].
func (s *sim) stepHeuristic(dir int) {
	scale := common.Clamp(s.heuristicScale()+float64(dir)*heuristicStep, 1, maxHeuristicScale)
	if scale == s.heuristicScale() {
		return
	}
	s.settings.HeuristicScale = scale
	s.replan()
}

// rebuild builds sc in the background. tick picks up the result and
// replans. A rebuild already running is not restarted.
func (s *sim) rebuild(sc *scene.Scene) {
	if s.building != nil || sc == nil {
		return
	}
	done := make(chan error, 1)
	s.building = done
	s.status = "rebuilding"
	go func() {
		_, err := s.sys.Build(context.Background(), sc)
		done <- err
	}()
}

// tick collects a finished rebuild or plan and advances the mover by dt
// seconds.
func (s *sim) tick(dt float64, obstructed bool) movement.Output {
	if s.building != nil {
		select {
		case err := <-s.building:
			s.building = nil
			if err != nil {
				s.logger.Warn("navview: rebuild failed", "err", err)
				s.status = "rebuild failed: " + err.Error()
			} else {
				s.status = "rebuilt"
				s.replan()
			}
		default:
		}
	}
	if s.ticket != nil {
		select {
		case out := <-s.ticket.Result():
			s.sys.Release(s.ticket.ID)
			s.ticket = nil
			s.accept(out)
		default:
		}
	}

	var out movement.Output
	s.mover, out = s.mover.Step(movement.Input{DeltaTime: dt, Obstructed: obstructed})
	for _, ev := range out.Events {
		switch ev {
		case movement.EventArrived:
			s.status = "arrived"
		case movement.EventReplanRequested:
			s.logger.Debug("navview: replanning", "position", s.mover.Position())
			s.replan()
		}
	}
	return out
}

func (s *sim) accept(out navsys.Outcome) {
	if out.Err != nil {
		s.path = nil
		s.status = out.Err.Error()
		return
	}
	m, err := s.mover.Accept(out.Result)
	if err != nil {
		s.status = err.Error()
		return
	}
	s.mover = m
	s.path = out.Result
	s.status = fmt.Sprintf("following %d waypoints, cost %.2f", len(out.Result.Waypoints), out.Result.Cost)
	if out.Result.Partial {
		s.status += " (partial)"
	}
}
