package movement

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/gravnav/common"
	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/pathfind"
)

var ErrEmptyPath = errors.New("movement: path has no waypoints")

type Mode int

const (
	Idle Mode = iota
	Following
	Arrived
	Blocked
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Following:
		return "following"
	case Arrived:
		return "arrived"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

type Event int

const (
	EventWaypointReached Event = iota
	EventArrived
	EventBlocked
	// EventReplanRequested asks the host for a new path from the current
	// position.
	EventReplanRequested
)

func (e Event) String() string {
	switch e {
	case EventWaypointReached:
		return "waypoint_reached"
	case EventArrived:
		return "arrived"
	case EventBlocked:
		return "blocked"
	case EventReplanRequested:
		return "replan_requested"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Input is what the host supplies each tick.
type Input struct {
	DeltaTime float64
	// Gravity overrides the mover's field when non-zero.
	Gravity mgl64.Vec3
	// Obstructed is set by the host when something it knows about, and the
	// volume does not, is in the way.
	Obstructed bool
}

type Output struct {
	Mode            Mode
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	DesiredVelocity mgl64.Vec3
	Orientation     common.Basis
	Events          []Event
}

// Mover flies an agent along a path. It is a value: every method returns the
// updated copy and leaves the receiver untouched.
type Mover struct {
	cfg    Config
	field  gravity.Field
	logger *slog.Logger

	mode        Mode
	position    mgl64.Vec3
	velocity    mgl64.Vec3
	gravity     mgl64.Vec3
	orientation common.Basis

	requestID  string
	path       []pathfind.Waypoint
	next       int
	stalledFor float64
}

// New places an idle mover at position. field may be nil, in which case the
// host must pass gravity in every Input or world down is used.
func New(cfg Config, position mgl64.Vec3, field gravity.Field) (Mover, error) {
	if err := cfg.Validate(); err != nil {
		return Mover{}, err
	}
	m := Mover{
		cfg:         cfg,
		field:       field,
		logger:      slog.Default(),
		position:    position,
		orientation: common.IdentityBasis,
	}
	m.gravity = m.sampleGravity(mgl64.Vec3{})
	m.orientation = common.BasisFromZX(m.gravity.Mul(-1), m.orientation.Forward)
	return m, nil
}

func (m Mover) WithLogger(l *slog.Logger) Mover {
	if l != nil {
		m.logger = l
	}
	return m
}

func (m Mover) Mode() Mode { return m.mode }
func (m Mover) Position() mgl64.Vec3 { return m.position }
func (m Mover) Velocity() mgl64.Vec3 { return m.velocity }
func (m Mover) Orientation() common.Basis { return m.orientation }
func (m Mover) RequestID() string { return m.requestID }
func (m Mover) Config() Config { return m.cfg }
func (m Mover) NextWaypoint() int { return m.next }
func (m Mover) Path() []pathfind.Waypoint { return m.path }

// Accept starts following res. The waypoints are copied. Accepting while
// Blocked is how a replanned path resumes the mover.
func (m Mover) Accept(res *pathfind.Result) (Mover, error) {
	if res == nil || len(res.Waypoints) == 0 {
		return m, ErrEmptyPath
	}
	m.path = append([]pathfind.Waypoint(nil), res.Waypoints...)
	m.requestID = res.RequestID
	m.next = 0
	m.stalledFor = 0
	m = m.setMode(Following)
	return m, nil
}

// Stop drops the path and halts.
func (m Mover) Stop() Mover {
	m.path = nil
	m.next = 0
	m.velocity = mgl64.Vec3{}
	m.stalledFor = 0
	return m.setMode(Idle)
}

// Teleport moves the mover without changing its mode.
func (m Mover) Teleport(p mgl64.Vec3) Mover {
	m.position = p
	m.stalledFor = 0
	return m
}

// Jump adds JumpSpeed along the current up vector.
func (m Mover) Jump() Mover {
	m.velocity = m.velocity.Add(m.orientation.Up.Mul(m.cfg.JumpSpeed))
	return m
}

// IsWalkable reports whether a surface with the given normal can be stood on
// under gravity whose up is up. walkableZ is the cosine of the steepest
// walkable slope.
func IsWalkable(normal, up mgl64.Vec3, walkableZ float64) bool {
	n := common.SafeNormal(normal)
	u := common.SafeNormal(up)
	if common.IsZero(n) || common.IsZero(u) {
		return false
	}
	return n.Dot(u) >= walkableZ
}

func (m Mover) setMode(mode Mode) Mover {
	if m.mode != mode {
		m.logger.Debug("movement: mode change", "from", m.mode, "to", mode, "request", m.requestID)
	}
	m.mode = mode
	return m
}

func (m Mover) sampleGravity(override mgl64.Vec3) mgl64.Vec3 {
	if !common.IsZero(override) && common.IsFinite(override) {
		return override
	}
	if m.field != nil {
		return m.field.Sample(m.position).Vector()
	}
	return common.WorldDown.Mul(common.DefaultGravityStrength)
}

func (m Mover) remaining() float64 {
	if m.next >= len(m.path) {
		return 0
	}
	d := m.path[m.next].Position.Sub(m.position).Len()
	for i := m.next + 1; i < len(m.path); i++ {
		d += m.path[i].Position.Sub(m.path[i-1].Position).Len()
	}
	return d
}

func (m Mover) target() (mgl64.Vec3, bool) {
	if m.next >= len(m.path) {
		return mgl64.Vec3{}, false
	}
	return m.path[m.next].Position, true
}

func (m Mover) onFinalWaypoint() bool {
	return m.next == len(m.path)-1
}

func finite(dt float64) bool {
	return dt > 0 && !math.IsInf(dt, 0) && !math.IsNaN(dt)
}
