package movement

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	MaxSpeed        float64 `yaml:"max_speed" json:"max_speed" validate:"gt=0"`
	MaxAcceleration float64 `yaml:"max_acceleration" json:"max_acceleration" validate:"gt=0"`
	// BrakingDeceleration limits speed near the goal to sqrt(2*b*d).
	BrakingDeceleration float64 `yaml:"braking_deceleration" json:"braking_deceleration" validate:"gt=0"`
	// Friction controls how quickly velocity turns toward the desired
	// direction, per second.
	Friction          float64 `yaml:"friction" json:"friction" validate:"gte=0"`
	WaypointTolerance float64 `yaml:"waypoint_tolerance" json:"waypoint_tolerance" validate:"gt=0"`
	GoalTolerance     float64 `yaml:"goal_tolerance" json:"goal_tolerance" validate:"gt=0"`
	// BlockedAfter is how long, in seconds, the agent may be obstructed or
	// stalled before it gives up on the path.
	BlockedAfter float64 `yaml:"blocked_after" json:"blocked_after" validate:"gt=0"`
	// ProgressEpsilon is the closing speed below which the agent counts as
	// stalled.
	ProgressEpsilon float64 `yaml:"progress_epsilon" json:"progress_epsilon" validate:"gte=0"`
	// GravityScale is zero for agents that fly and positive for agents that
	// fall.
	GravityScale float64 `yaml:"gravity_scale" json:"gravity_scale" validate:"gte=0"`
	JumpSpeed    float64 `yaml:"jump_speed" json:"jump_speed" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxSpeed:            6,
		MaxAcceleration:     20,
		BrakingDeceleration: 20,
		Friction:            8,
		WaypointTolerance:   0.5,
		GoalTolerance:       0.25,
		BlockedAfter:        1,
		ProgressEpsilon:     0.05,
		JumpSpeed:           4,
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("movement: config: %w", err)
	}
	return nil
}
