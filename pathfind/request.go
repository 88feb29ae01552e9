package pathfind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound       = errors.New("pathfind: no path")
	ErrInvalidRequest = errors.New("pathfind: invalid request")
	ErrCancelled      = errors.New("pathfind: cancelled")
)

// RequestError names the part of a request that failed validation. It
// matches ErrInvalidRequest with errors.Is.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("pathfind: invalid request: %s: %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

const (
	DefaultMaxIterations = 200000
	// MaxNodeCompensation is the cost reduction applied to the largest nodes.
	MaxNodeCompensation = 0.8
)

type Algorithm int

const (
	LazyThetaStar Algorithm = iota
	ThetaStar
	AStar
)

var algorithmNames = map[Algorithm]string{
	LazyThetaStar: "lazy_theta",
	ThetaStar:     "theta",
	AStar:         "astar",
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// AnyAngle reports whether paths may cut across nodes with line of sight.
func (a Algorithm) AnyAngle() bool {
	return a == LazyThetaStar || a == ThetaStar
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range algorithmNames {
		if v == s {
			*a = k
			return nil
		}
	}
	switch s {
	case "", "lazythetastar", "lazy_theta_star":
		*a = LazyThetaStar
	case "thetastar", "theta_star":
		*a = ThetaStar
	case "a*", "a_star":
		*a = AStar
	default:
		return fmt.Errorf("pathfind: unknown algorithm %q", s)
	}
	return nil
}

// QuerySettings tunes a single search.
type QuerySettings struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm" validate:"gte=0,lte=2"`
	// AllowPartial returns a path to the explored node closest to the goal
	// instead of ErrNotFound.
	AllowPartial bool `yaml:"allow_partial" json:"allow_partial"`
	// HeuristicScale multiplies the distance heuristic. Zero means 1.
	// Values above 1 trade optimality for speed.
	HeuristicScale float64 `yaml:"heuristic_scale" json:"heuristic_scale" validate:"gte=0"`
	// UnitCost charges every traversal 1 instead of its length.
	UnitCost bool `yaml:"unit_cost" json:"unit_cost"`
	// NodeCompensation makes larger nodes cheaper so searches prefer open space.
	NodeCompensation bool `yaml:"node_compensation" json:"node_compensation"`
	// MaxIterations bounds node expansions. Zero means DefaultMaxIterations.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" validate:"gte=0"`
	// DisableSmoothing skips string pulling of any-angle paths.
	DisableSmoothing bool `yaml:"disable_smoothing" json:"disable_smoothing"`
}

// Agent describes who will fly the path.
type Agent struct {
	// Radius must not exceed the radius the volume was built for.
	Radius float64 `yaml:"radius" json:"radius" validate:"gte=0"`
	// MaxTransitionAngle is the largest change of up direction, in radians,
	// the agent accepts on a gravity transition. Zero accepts any.
	MaxTransitionAngle float64 `yaml:"max_transition_angle" json:"max_transition_angle" validate:"gte=0,lte=3.1415927"`
	// CentreOffset raises interior waypoints along their up vector.
	CentreOffset float64 `yaml:"centre_offset" json:"centre_offset" validate:"gte=0"`
}

type Request struct {
	ID    string     `json:"id"`
	Start mgl64.Vec3 `json:"start"`
	Goal  mgl64.Vec3 `json:"goal"`
	Agent Agent      `json:"agent"`
	// Settings nil means defaults: zero settings for Find, the configured
	// query settings when the request goes through a navigation system.
	Settings *QuerySettings `json:"settings,omitempty"`
}

// EffectiveSettings returns the request's settings or the zero value.
func (r Request) EffectiveSettings() QuerySettings {
	if r.Settings == nil {
		return QuerySettings{}
	}
	return *r.Settings
}

type Waypoint struct {
	Position mgl64.Vec3 `json:"position"`
	Up       mgl64.Vec3 `json:"up"`
	// Node is the node the waypoint lies in. Transition waypoints report the
	// node being entered.
	Node       int32   `json:"node"`
	Region     int     `json:"region"`
	Transition bool    `json:"transition,omitempty"`
	Penalty    float64 `json:"penalty,omitempty"`
}

type Result struct {
	RequestID string     `json:"request_id"`
	Algorithm Algorithm  `json:"algorithm"`
	Waypoints []Waypoint `json:"waypoints"`
	// Cost is Length plus Penalty.
	Cost    float64 `json:"cost"`
	Length  float64 `json:"length"`
	Penalty float64 `json:"penalty"`
	// SearchCost is the search's own cost to the last node, which differs
	// from Cost under UnitCost, NodeCompensation or smoothing.
	SearchCost float64 `json:"search_cost"`
	Nodes      []int32 `json:"nodes"`
	Partial    bool    `json:"partial,omitempty"`
	Iterations int     `json:"iterations"`
}

var validate = validator.New()

func validateFields(req Request) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &RequestError{Field: fieldName(fe.Namespace()), Reason: fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())}
	}
	return &RequestError{Field: "request", Reason: err.Error()}
}

func fieldName(ns string) string {
	ns = strings.TrimPrefix(ns, "Request.")
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
