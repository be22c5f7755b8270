// Package odometry integrates the planar pose of a skid-steer (differential-drive)
// robot from its left and right wheel-contact velocities.
//
// The integration methods share a single StepFunc signature and differ only in how
// the displacement direction is chosen over a timestep. Adding a method requires a
// new StepFunc and an entry in Method.Step and ParseMethod; the Odometer itself
// never needs to change.
package odometry

import (
	"errors"
	"fmt"
	"math"
)

// Method names a pose integration strategy.
// It is also the JSON discriminator used in robot definitions.
type Method string

const (
	FirstOrder  Method = "first_order"
	SecondOrder Method = "second_order"
	Analytical  Method = "analytical"
)

// ErrUnknownMethod is returned for method names with no step function.
var ErrUnknownMethod = errors.New("odometry: unknown method")

// Methods lists every supported method, least accurate first.
var Methods = []Method{FirstOrder, SecondOrder, Analytical}

// StepFunc advances p by one timestep of dt seconds at forward velocity v and yaw
// rate w. tol is only consulted by methods with a degenerate branch.
type StepFunc func(p Pose, v, w, dt, tol float64) Pose

// ParseMethod resolves a method name.
func ParseMethod(name string) (Method, error) {
	switch m := Method(name); m {
	case FirstOrder, SecondOrder, Analytical:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMethod, name)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so methods can be read from
// JSON strings and environment variables.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Method) String() string { return string(m) }

// Step returns the step function implementing m.
func (m Method) Step() (StepFunc, error) {
	switch m {
	case FirstOrder:
		return StepFirstOrder, nil
	case SecondOrder:
		return StepSecondOrder, nil
	case Analytical:
		return StepAnalytical, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, string(m))
	}
}

// StepFirstOrder is the Euler update: the displacement follows the heading held at
// the start of the step.
func StepFirstOrder(p Pose, v, w, dt, _ float64) Pose {
	ds := v * dt // forward displacement
	da := w * dt // heading change
	return Pose{
		X:     p.X + ds*math.Cos(p.Theta),
		Y:     p.Y + ds*math.Sin(p.Theta),
		Theta: p.Theta + da,
	}
}

// StepSecondOrder is the midpoint update: the displacement follows the heading
// halfway through the turn.
func StepSecondOrder(p Pose, v, w, dt, _ float64) Pose {
	ds := v * dt
	da := w * dt
	a := p.Theta + 0.5*da
	return Pose{
		X:     p.X + ds*math.Cos(a),
		Y:     p.Y + ds*math.Sin(a),
		Theta: p.Theta + da,
	}
}

// StepAnalytical follows the exact constant-curvature arc traced when v and w are
// held for dt. Below |w*dt| < tol the turning radius ds/da is ill-conditioned and
// the midpoint update is used instead; |w*dt| == tol takes the arc. A zero heading
// change always takes the midpoint update, whatever tol is.
func StepAnalytical(p Pose, v, w, dt, tol float64) Pose {
	ds := v * dt
	da := w * dt
	if math.Abs(da) < tol || da == 0 {
		return StepSecondOrder(p, v, w, dt, tol)
	}
	r := ds / da // signed turning radius
	a := p.Theta + da
	return Pose{
		X:     p.X + r*(math.Sin(a)-math.Sin(p.Theta)),
		Y:     p.Y - r*(math.Cos(a)-math.Cos(p.Theta)),
		Theta: a,
	}
}
