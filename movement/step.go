package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
)

type moverState interface {
	Name() string
	Step(m *Mover, in Input, out *Output)
}

type idleState struct{}

type followingState struct{}

type arrivedState struct{}

type blockedState struct{}

var states = map[Mode]moverState{
	Idle:      idleState{},
	Following: followingState{},
	Arrived:   arrivedState{},
	Blocked:   blockedState{},
}

func (idleState) Name() string { return "idle" }
func (idleState) Step(m *Mover, in Input, out *Output) {
	m.coast(in.DeltaTime)
}

func (arrivedState) Name() string { return "arrived" }
func (arrivedState) Step(m *Mover, in Input, out *Output) {
	m.coast(in.DeltaTime)
}

// Blocked holds position until a new path is accepted.
func (blockedState) Name() string { return "blocked" }
func (blockedState) Step(m *Mover, in Input, out *Output) {
	m.coast(in.DeltaTime)
}

func (followingState) Name() string { return "following" }
func (followingState) Step(m *Mover, in Input, out *Output) {
	dt := in.DeltaTime
	if in.Obstructed {
		m.velocity = mgl64.Vec3{}
		m.stall(dt, out)
		return
	}

	if m.consume(out) {
		return
	}
	target, ok := m.target()
	if !ok {
		*m = m.setMode(Idle)
		return
	}

	before := m.remaining()
	speed := math.Min(m.cfg.MaxSpeed, math.Sqrt(2*m.cfg.BrakingDeceleration*before))
	desired := common.SafeNormal(target.Sub(m.position)).Mul(speed)
	out.DesiredVelocity = desired

	m.velocity = calcVelocity(m.velocity, desired, dt, m.cfg)
	m.velocity = m.velocity.Add(m.gravity.Mul(m.cfg.GravityScale * dt))

	step := m.velocity.Mul(dt)
	if toTarget := target.Sub(m.position); m.onFinalWaypoint() && step.Len() >= toTarget.Len() {
		step = toTarget
	}
	m.position = m.position.Add(step)

	if closing := (before - m.remaining()) / dt; closing < m.cfg.ProgressEpsilon {
		if m.stall(dt, out) {
			return
		}
	} else {
		m.stalledFor = 0
	}
	m.consume(out)
}

// Step advances the mover by in.DeltaTime. A non-positive or non-finite
// delta only refreshes the output.
func (m Mover) Step(in Input) (Mover, Output) {
	var out Output
	if finite(in.DeltaTime) {
		m.gravity = m.sampleGravity(in.Gravity)
		states[m.mode].Step(&m, in, &out)
	}
	m.orientation = m.orient()

	out.Mode = m.mode
	out.Position = m.position
	out.Velocity = m.velocity
	out.Orientation = m.orientation
	return m, out
}

// consume advances past waypoints within tolerance and reports whether the
// mover arrived.
func (m *Mover) consume(out *Output) bool {
	for m.next < len(m.path) {
		d := m.path[m.next].Position.Sub(m.position).Len()
		if m.onFinalWaypoint() {
			if d > m.cfg.GoalTolerance {
				return false
			}
			m.velocity = mgl64.Vec3{}
			m.stalledFor = 0
			*m = m.setMode(Arrived)
			out.Events = append(out.Events, EventArrived)
			return true
		}
		if d > m.cfg.WaypointTolerance {
			return false
		}
		m.next++
		out.Events = append(out.Events, EventWaypointReached)
	}
	return false
}

// stall accumulates time without progress and blocks the mover once it
// passes BlockedAfter.
func (m *Mover) stall(dt float64, out *Output) bool {
	m.stalledFor += dt
	if m.stalledFor < m.cfg.BlockedAfter {
		return false
	}
	m.velocity = mgl64.Vec3{}
	*m = m.setMode(Blocked)
	out.Events = append(out.Events, EventBlocked, EventReplanRequested)
	return true
}

// coast brakes to a halt. Falling movers only brake across gravity.
func (m *Mover) coast(dt float64) {
	if m.cfg.GravityScale > 0 {
		lateral := common.ProjectOnPlane(m.velocity, m.gravity)
		fall := m.velocity.Sub(lateral)
		lateral = common.ClampLen(lateral, math.Max(0, lateral.Len()-m.cfg.BrakingDeceleration*dt))
		m.velocity = lateral.Add(fall).Add(m.gravity.Mul(m.cfg.GravityScale * dt))
	} else {
		m.velocity = common.ClampLen(m.velocity, math.Max(0, m.velocity.Len()-m.cfg.BrakingDeceleration*dt))
	}
	m.position = m.position.Add(m.velocity.Mul(dt))
}

// calcVelocity turns vel toward desired using friction, then accelerates
// toward it and clamps to MaxSpeed.
func calcVelocity(vel, desired mgl64.Vec3, dt float64, cfg Config) mgl64.Vec3 {
	dir := common.SafeNormal(desired)
	if speed := vel.Len(); !common.IsZero(dir) && speed > 0 {
		vel = vel.Sub(vel.Sub(dir.Mul(speed)).Mul(math.Min(dt*cfg.Friction, 1)))
	}
	limit := cfg.MaxAcceleration
	if desired.Len() < vel.Len() {
		limit = math.Max(limit, cfg.BrakingDeceleration)
	}
	vel = vel.Add(common.ClampLen(desired.Sub(vel), limit*dt))
	return common.ClampLen(vel, cfg.MaxSpeed)
}

// orient rebuilds the basis with up against gravity and forward along the
// velocity, keeping the previous axes when either is degenerate.
func (m Mover) orient() common.Basis {
	up := common.SafeNormal(m.gravity.Mul(-1))
	if common.IsZero(up) {
		up = m.orientation.Up
	}
	fwd := common.ProjectOnPlane(m.velocity, up)
	if fwd.Len() < common.KindaSmall {
		fwd = m.orientation.Forward
	}
	return common.BasisFromZX(up, fwd)
}
