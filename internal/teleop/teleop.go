// Package teleop turns keyboard commands into forward velocity and yaw rate
// set-points for a skid-steer robot.
//
// Only the command semantics live here; reading keys from a terminal or window is
// left to the caller.
package teleop

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/cxd309/lawnmower-engine/internal/robot"
)

// Key is a keyboard command.
type Key string

const (
	KeyUp    Key = "up"    // speed up, drive straight
	KeyDown  Key = "down"  // slow down, drive straight
	KeyLeft  Key = "left"  // turn counter-clockwise
	KeyRight Key = "right" // turn clockwise
	KeyStop  Key = " "     // halt
	KeyQuit  Key = "q"
)

// ErrUnknownKey is returned for keys with no command bound.
var ErrUnknownKey = errors.New("teleop: unknown key")

// ParseKey resolves a key name. "space" and "stop" are accepted for KeyStop.
func ParseKey(name string) (Key, error) {
	switch k := Key(name); k {
	case KeyUp, KeyDown, KeyLeft, KeyRight, KeyStop, KeyQuit:
		return k, nil
	}
	switch name {
	case "space", "stop":
		return KeyStop, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKey, name)
}

// Sensitivity is the change applied per key press.
type Sensitivity struct {
	LinearStep  float64 `json:"dv"` // m/s
	AngularStep float64 `json:"dw"` // rad/s
}

// DefaultSensitivity returns the lawnmower controller sensitivity.
func DefaultSensitivity() Sensitivity {
	return Sensitivity{LinearStep: 0.01, AngularStep: 0.01}
}

// Controller accumulates key presses into a velocity command. It is not safe for
// concurrent use.
type Controller struct {
	sens   Sensitivity
	limits robot.Limits
	v, w   float64
}

// NewController returns a stopped controller.
func NewController(sens Sensitivity, limits robot.Limits) *Controller {
	return &Controller{sens: sens, limits: limits}
}

// Press applies one key. It reports whether the key asks to quit. Unknown keys
// leave the command unchanged and return ErrUnknownKey.
func (c *Controller) Press(name string) (bool, error) {
	k, err := ParseKey(name)
	if err != nil {
		return false, err
	}
	switch k {
	case KeyQuit:
		return true, nil
	case KeyUp:
		c.v += c.sens.LinearStep
		c.w = 0
	case KeyDown:
		c.v -= c.sens.LinearStep
		c.w = 0
	case KeyRight:
		c.w -= c.sens.AngularStep
	case KeyLeft:
		c.w += c.sens.AngularStep
	case KeyStop:
		c.v, c.w = 0, 0
	}
	c.Set(c.v, c.w)
	return false, nil
}

// Set overrides the command, clamped to the controller limits.
func (c *Controller) Set(v, w float64) {
	c.v = lo.Clamp(v, -c.limits.MaxLinearVelocity, c.limits.MaxLinearVelocity)
	c.w = lo.Clamp(w, -c.limits.MaxAngularVelocity, c.limits.MaxAngularVelocity)
}

// Command returns the current forward velocity and yaw rate.
func (c *Controller) Command() (v, w float64) { return c.v, c.w }

// Wheels returns the wheel velocities realising the command on p.
func (c *Controller) Wheels(p robot.Platform) (vLeft, vRight float64) {
	return p.WheelVelocities(c.v, c.w)
}
