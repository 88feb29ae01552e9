package movement

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 60

func straightPath(points ...mgl64.Vec3) *pathfind.Result {
	res := &pathfind.Result{RequestID: "test"}
	for _, p := range points {
		res.Waypoints = append(res.Waypoints, pathfind.Waypoint{Position: p, Up: common.WorldUp})
	}
	return res
}

func newMover(t *testing.T, cfg Config, pos mgl64.Vec3, field gravity.Field) Mover {
	t.Helper()
	m, err := New(cfg, pos, field)
	require.NoError(t, err)
	return m
}

// run steps until the mover leaves Following or the time runs out.
func run(m Mover, seconds float64, in Input, each func(Output)) (Mover, []Event) {
	var events []Event
	in.DeltaTime = dt
	for i := 0; i < int(seconds/dt); i++ {
		var out Output
		m, out = m.Step(in)
		events = append(events, out.Events...)
		if each != nil {
			each(out)
		}
		if out.Mode != Following {
			break
		}
	}
	return m, events
}

func count(events []Event, want Event) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

func TestFollowToArrival(t *testing.T) {
	cfg := DefaultConfig()
	m := newMover(t, cfg, mgl64.Vec3{}, gravity.Uniform{})
	assert.Equal(t, Idle, m.Mode())

	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{10, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, Following, m.Mode())
	assert.Equal(t, "test", m.RequestID())

	maxX := 0.0
	m, events := run(m, 10, Input{}, func(out Output) {
		maxX = max(maxX, out.Position[0])
		assert.LessOrEqual(t, out.Velocity.Len(), cfg.MaxSpeed+1e-9)
	})

	assert.Equal(t, Arrived, m.Mode())
	assert.Equal(t, 1, count(events, EventArrived))
	assert.Equal(t, 2, count(events, EventWaypointReached))
	assert.LessOrEqual(t, maxX, 10+1e-9)
	assert.InDelta(t, 10, m.Position()[0], cfg.GoalTolerance)
	assert.Equal(t, mgl64.Vec3{}, m.Velocity())

	// arrived movers stay put
	m2, out := m.Step(Input{DeltaTime: dt})
	assert.Equal(t, Arrived, out.Mode)
	assert.Equal(t, m.Position(), m2.Position())
}

func TestStepIsPure(t *testing.T) {
	m := newMover(t, DefaultConfig(), mgl64.Vec3{}, nil)
	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}))
	require.NoError(t, err)

	next, _ := m.Step(Input{DeltaTime: dt})
	assert.Equal(t, mgl64.Vec3{}, m.Position())
	assert.NotEqual(t, m.Position(), next.Position())

	again, _ := m.Step(Input{DeltaTime: dt})
	assert.Equal(t, next.Position(), again.Position())
}

func TestAcceptCopiesWaypoints(t *testing.T) {
	res := straightPath(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0})
	m := newMover(t, DefaultConfig(), mgl64.Vec3{}, nil)
	m, err := m.Accept(res)
	require.NoError(t, err)

	res.Waypoints[1].Position = mgl64.Vec3{-50, 0, 0}
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, m.Path()[1].Position)

	_, err = m.Accept(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = m.Accept(&pathfind.Result{})
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestObstructionBlocksThenReplanResumes(t *testing.T) {
	cfg := DefaultConfig()
	m := newMover(t, cfg, mgl64.Vec3{}, nil)
	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}))
	require.NoError(t, err)

	m, _ = run(m, 0.5, Input{}, nil)
	require.Equal(t, Following, m.Mode())
	held := m.Position()

	m, events := run(m, 2, Input{Obstructed: true}, func(out Output) {
		assert.Equal(t, held, out.Position)
	})
	assert.Equal(t, Blocked, m.Mode())
	assert.Equal(t, 1, count(events, EventBlocked))
	assert.Equal(t, 1, count(events, EventReplanRequested))
	assert.Equal(t, mgl64.Vec3{}, m.Velocity())

	m, err = m.Accept(straightPath(m.Position(), mgl64.Vec3{10, 5, 0}))
	require.NoError(t, err)
	assert.Equal(t, Following, m.Mode())

	m, _ = run(m, 10, Input{}, nil)
	assert.Equal(t, Arrived, m.Mode())
}

func TestStallBlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgressEpsilon = 1000
	m := newMover(t, cfg, mgl64.Vec3{}, nil)
	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{100, 0, 0}))
	require.NoError(t, err)

	var steps int
	m, events := run(m, 5, Input{}, func(Output) { steps++ })
	assert.Equal(t, Blocked, m.Mode())
	assert.Equal(t, 1, count(events, EventReplanRequested))
	assert.InDelta(t, cfg.BlockedAfter/dt, float64(steps), 2)
}

func TestOrientationFollowsGravity(t *testing.T) {
	m := newMover(t, DefaultConfig(), mgl64.Vec3{}, gravity.Uniform{Down: mgl64.Vec3{1, 0, 0}})
	assert.True(t, m.Orientation().Up.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-9))

	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{0, 10, 0}))
	require.NoError(t, err)
	m, out := m.Step(Input{DeltaTime: dt})

	b := out.Orientation
	assert.True(t, b.Up.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-9))
	assert.True(t, b.Forward.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
	assert.InDelta(t, 0, b.Forward.Dot(b.Up), 1e-9)
	assert.InDelta(t, 0, b.Right.Dot(b.Up), 1e-9)

	_, out = m.Step(Input{DeltaTime: dt, Gravity: mgl64.Vec3{0, 0, 3}})
	assert.True(t, out.Orientation.Up.ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-9))
}

func TestStopAndJump(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GravityScale = 1
	m := newMover(t, cfg, mgl64.Vec3{}, gravity.Uniform{})
	m, err := m.Accept(straightPath(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}))
	require.NoError(t, err)
	m, _ = run(m, 0.2, Input{}, nil)

	m = m.Stop()
	assert.Equal(t, Idle, m.Mode())
	assert.Empty(t, m.Path())
	assert.Equal(t, mgl64.Vec3{}, m.Velocity())

	m = m.Jump()
	assert.InDelta(t, cfg.JumpSpeed, m.Velocity()[2], 1e-9)

	var peak float64
	for i := 0; i < 120; i++ {
		m, _ = m.Step(Input{DeltaTime: dt})
		peak = max(peak, m.Position()[2])
	}
	assert.Greater(t, peak, 0.0)
	assert.Less(t, m.Position()[2], peak)
}

func TestTeleport(t *testing.T) {
	m := newMover(t, DefaultConfig(), mgl64.Vec3{}, nil)
	m = m.Teleport(mgl64.Vec3{1, 2, 3})
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, m.Position())
	assert.Equal(t, Idle, m.Mode())
}

func TestIsWalkable(t *testing.T) {
	up := mgl64.Vec3{0, 0, 1}
	assert.True(t, IsWalkable(mgl64.Vec3{0, 0, 1}, up, 0.7))
	assert.False(t, IsWalkable(mgl64.Vec3{1, 0, 0}, up, 0.7))
	assert.True(t, IsWalkable(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, 0.7))
	assert.False(t, IsWalkable(mgl64.Vec3{}, up, 0.7))
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.MaxSpeed = 0
	_, err := New(cfg, mgl64.Vec3{}, nil)
	assert.Error(t, err)
}

func TestFollowsPathAcrossGravityRegions(t *testing.T) {
	sc, err := scene.LoadEmbedded("two_regions")
	require.NoError(t, err)
	v, err := volume.Build(context.Background(), sc, nil, volume.DefaultBuildConfig())
	require.NoError(t, err)
	res, err := pathfind.Find(context.Background(), v, pathfind.Request{
		ID:    "cross",
		Start: mgl64.Vec3{4, 4, 4},
		Goal:  mgl64.Vec3{12, 4, 4},
	})
	require.NoError(t, err)

	m := newMover(t, DefaultConfig(), mgl64.Vec3{4, 4, 4}, sc.Field)
	m, err = m.Accept(res)
	require.NoError(t, err)
	assert.True(t, m.Orientation().Up.ApproxEqualThreshold(common.WorldUp, 1e-9))

	m, events := run(m, 10, Input{}, nil)
	assert.Equal(t, Arrived, m.Mode())
	assert.Equal(t, 1, count(events, EventArrived))
	assert.True(t, m.Orientation().Up.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-9))
}
