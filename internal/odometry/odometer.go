package odometry

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultTolerance is the heading change below which the analytical method falls
// back to the midpoint update.
const DefaultTolerance = 1e-3

var (
	// ErrInvalidConfig is wrapped by every configuration failure.
	ErrInvalidConfig = errors.New("odometry: invalid configuration")

	// ErrInvalidTrackWidth reports a track width that is not strictly positive.
	ErrInvalidTrackWidth = fmt.Errorf("%w: track width must be positive", ErrInvalidConfig)

	// ErrInvalidTolerance reports a small-angle tolerance that is not strictly
	// positive.
	ErrInvalidTolerance = fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfig)

	// ErrNotInitialized reports a step requested before Initialize.
	ErrNotInitialized = errors.New("odometry: pose not initialized")
)

// Pose is the planar state of the robot.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"` // radians, CCW from +x
}

// Position returns the (x, y) part of the pose.
func (p Pose) Position() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Config holds the kinematic parameters of an Odometer.
type Config struct {
	TrackWidth         float64 `json:"track_width"` // distance between left and right wheel contact lines
	MaxLinearVelocity  float64 `json:"v_max"`       // symmetric clamp on forward velocity
	MaxAngularVelocity float64 `json:"w_max"`       // symmetric clamp on yaw rate, rad/s
}

// Validate reports every parameter that would make integration ill-defined.
func (c Config) Validate() error {
	var err error
	if !(c.TrackWidth > 0) {
		err = multierr.Append(err, fmt.Errorf("%w (got %v)", ErrInvalidTrackWidth, c.TrackWidth))
	}
	if !(c.MaxLinearVelocity >= 0) {
		err = multierr.Append(err, fmt.Errorf("%w: maximum linear velocity must be non-negative (got %v)", ErrInvalidConfig, c.MaxLinearVelocity))
	}
	if !(c.MaxAngularVelocity >= 0) {
		err = multierr.Append(err, fmt.Errorf("%w: maximum angular velocity must be non-negative (got %v)", ErrInvalidConfig, c.MaxAngularVelocity))
	}
	return err
}

// ForwardKinematics converts wheel-contact velocities into forward velocity and
// yaw rate for a vehicle with the given track width.
func ForwardKinematics(vLeft, vRight, trackWidth float64) (v, w float64) {
	return 0.5 * (vRight + vLeft), (vRight - vLeft) / trackWidth
}

// Odometer tracks the pose of one robot. It is not safe for concurrent use.
type Odometer struct {
	cfg    Config
	method Method
	step   StepFunc

	pose        Pose
	initialized bool

	// last step
	vLeft, vRight float64
	v, w          float64
	saturated     bool
}

// New returns an uninitialized Odometer. The configuration is checked when a step
// is taken, so a zero track width surfaces as an error from Integrate.
func New(cfg Config, method Method) (*Odometer, error) {
	step, err := method.Step()
	if err != nil {
		return nil, err
	}
	return &Odometer{cfg: cfg, method: method, step: step}, nil
}

// Initialize seeds the pose. It may be called again to re-seed; the velocity
// snapshot of the last step is kept.
func (o *Odometer) Initialize(x, y, theta float64) {
	o.pose = Pose{X: x, Y: y, Theta: theta}
	o.initialized = true
}

// Integrate advances the pose by dt seconds using DefaultTolerance.
func (o *Odometer) Integrate(vLeft, vRight, dt float64) (Pose, error) {
	return o.IntegrateWithTolerance(vLeft, vRight, dt, DefaultTolerance)
}

// IntegrateWithTolerance advances the pose by dt seconds with the wheels at vLeft
// and vRight. Forward velocity and yaw rate are clamped to the configured limits
// before integration; the snapshot keeps the values as supplied. tol must be
// positive. A failed step leaves the pose and snapshot untouched.
func (o *Odometer) IntegrateWithTolerance(vLeft, vRight, dt, tol float64) (Pose, error) {
	if !(o.cfg.TrackWidth > 0) {
		return Pose{}, fmt.Errorf("%w (got %v)", ErrInvalidTrackWidth, o.cfg.TrackWidth)
	}
	if !(tol > 0) {
		return Pose{}, fmt.Errorf("%w (got %v)", ErrInvalidTolerance, tol)
	}
	if !o.initialized {
		return Pose{}, ErrNotInitialized
	}

	v, w := ForwardKinematics(vLeft, vRight, o.cfg.TrackWidth)
	cv := lo.Clamp(v, -o.cfg.MaxLinearVelocity, o.cfg.MaxLinearVelocity)
	cw := lo.Clamp(w, -o.cfg.MaxAngularVelocity, o.cfg.MaxAngularVelocity)

	o.vLeft, o.vRight = vLeft, vRight
	o.v, o.w = cv, cw
	o.saturated = cv != v || cw != w

	o.pose = o.step(o.pose, cv, cw, dt, tol)
	return o.pose, nil
}

// Method returns the integration method in use.
func (o *Odometer) Method() Method { return o.method }

// Config returns the kinematic parameters.
func (o *Odometer) Config() Config { return o.cfg }

// Initialized reports whether a pose has been seeded.
func (o *Odometer) Initialized() bool { return o.initialized }

// Pose returns the current pose.
func (o *Odometer) Pose() Pose { return o.pose }

// Position returns the current position.
func (o *Odometer) Position() r2.Vec { return o.pose.Position() }

// Orientation returns the current heading in radians. It is not wrapped.
func (o *Odometer) Orientation() float64 { return o.pose.Theta }

// Velocities returns the wheel velocities of the last step, as supplied.
func (o *Odometer) Velocities() (vLeft, vRight float64) { return o.vLeft, o.vRight }

// Twist returns the forward velocity and yaw rate actually integrated in the last
// step, after clamping.
func (o *Odometer) Twist() (v, w float64) { return o.v, o.w }

// Saturated reports whether the last step clamped either velocity.
func (o *Odometer) Saturated() bool { return o.saturated }

