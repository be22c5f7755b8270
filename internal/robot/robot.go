// Package robot defines the skid-steer platform driven by the simulation and
// resolves the odometry method it integrates with.
package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/cxd309/lawnmower-engine/internal/odometry"
)

// Chassis holds the body dimensions in metres.
type Chassis struct {
	Length     float64 `json:"length"`
	Width      float64 `json:"width"`
	Wheelbase  float64 `json:"wheelbase"`   // front to rear axle
	TrackWidth float64 `json:"track_width"` // left to right wheel contact line
}

// Wheel holds the wheel dimensions in metres.
type Wheel struct {
	Diameter float64 `json:"diameter"`
	Width    float64 `json:"width"`
}

// Motor holds the drive motor limits.
type Motor struct {
	MaximumSpeed float64 `json:"maximum_speed"` // rad/s at the wheel
}

// Blade is the cutting tool mounted under the chassis.
type Blade struct {
	Diameter float64 `json:"diameter"` // metres
	Height   float64 `json:"height"`   // cutting height, metres
}

// Platform is the static description of a skid-steer vehicle.
type Platform struct {
	Chassis Chassis `json:"chassis"`
	Wheel   Wheel   `json:"wheel"`
	Motor   Motor   `json:"motor"`
	Blade   Blade   `json:"blade"`
}

// HuskyA200 returns the Clearpath Husky A200 ground platform fitted with a mower
// blade spanning 90% of the chassis width.
func HuskyA200() Platform {
	return Platform{
		Chassis: Chassis{Length: 0.812, Width: 0.421, Wheelbase: 0.512, TrackWidth: 0.550},
		Wheel:   Wheel{Diameter: 0.330, Width: 0.114},
		Motor:   Motor{MaximumSpeed: 5.450}, // ~52 rpm
		Blade:   Blade{Diameter: 0.9 * 0.421, Height: 0.05},
	}
}

// MaxWheelVelocity returns the fastest linear speed a wheel rim can reach (m/s).
func (p Platform) MaxWheelVelocity() float64 {
	return p.Motor.MaximumSpeed * 0.5 * p.Wheel.Diameter
}

// WheelVelocities converts a forward velocity and yaw rate into left and right
// wheel-contact velocities. It is the inverse of odometry.ForwardKinematics.
func (p Platform) WheelVelocities(v, w float64) (vLeft, vRight float64) {
	half := 0.5 * w * p.Chassis.TrackWidth
	return v - half, v + half
}

// Limits are the safety limits imposed by the internal controller.
type Limits struct {
	MaxLinearVelocity  float64 `json:"v_max"` // m/s
	MaxAngularVelocity float64 `json:"w_max"` // rad/s
}

// DefaultLimits returns the lawnmower controller limits.
func DefaultLimits() Limits {
	return Limits{MaxLinearVelocity: 1.0, MaxAngularVelocity: 2 * math.Pi}
}

// Odometry selects how the pose is integrated.
type Odometry struct {
	Method    odometry.Method `json:"method"`
	Tolerance float64         `json:"tolerance,omitempty"` // small-angle threshold for the analytical method
}

// Robot is a named platform with its controller limits and odometry method.
// The odometry method is resolved by UnmarshalJSON; adding a method only requires
// registering it with odometry.ParseMethod.
type Robot struct {
	Name     string   `json:"name"`
	Platform Platform `json:"platform"`
	Limits   Limits   `json:"limits"`
	Odometry Odometry `json:"odometry"`
}

// Default returns a Husky A200 lawnmower integrated with the analytical method.
func Default() Robot {
	return Robot{
		Name:     "lawnmower",
		Platform: HuskyA200(),
		Limits:   DefaultLimits(),
		Odometry: Odometry{Method: odometry.Analytical, Tolerance: odometry.DefaultTolerance},
	}
}

// odometryDisc is the minimum JSON structure needed to read the method discriminator.
type odometryDisc struct {
	Method string `json:"method"`
}

// robotJSON is the raw JSON shape of a Robot, before the odometry method is resolved.
type robotJSON struct {
	Name     string          `json:"name"`
	Platform *Platform       `json:"platform"`
	Limits   *Limits         `json:"limits"`
	Odometry json.RawMessage `json:"odometry"`
}

// UnmarshalJSON implements json.Unmarshaler for Robot.
// Fields missing from the input keep the values of Default, so a partial platform
// only overrides what it names. The "odometry" object, when present, is resolved
// by its "method" discriminator:
//   - "first_order":  Euler update.
//   - "second_order": midpoint update.
//   - "analytical":   exact arc with a small-angle fallback below "tolerance".
func (r *Robot) UnmarshalJSON(data []byte) error {
	def := Default()
	aux := robotJSON{Name: def.Name, Platform: &def.Platform, Limits: &def.Limits}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Name = aux.Name
	r.Platform = def.Platform
	r.Limits = def.Limits
	r.Odometry = def.Odometry
	if aux.Platform != nil {
		r.Platform = *aux.Platform
	}
	if aux.Limits != nil {
		r.Limits = *aux.Limits
	}

	if len(aux.Odometry) == 0 {
		return nil
	}

	var disc odometryDisc
	if err := json.Unmarshal(aux.Odometry, &disc); err != nil {
		return fmt.Errorf("robot %q: reading odometry method discriminator: %w", r.Name, err)
	}
	if disc.Method != "" {
		m, err := odometry.ParseMethod(disc.Method)
		if err != nil {
			return fmt.Errorf("robot %q: %w", r.Name, err)
		}
		r.Odometry.Method = m
	}

	var params struct {
		Tolerance *float64 `json:"tolerance"`
	}
	if err := json.Unmarshal(aux.Odometry, &params); err != nil {
		return fmt.Errorf("robot %q: parsing odometry parameters: %w", r.Name, err)
	}
	if params.Tolerance != nil {
		r.Odometry.Tolerance = *params.Tolerance
	}
	return nil
}

// OdometerConfig returns the kinematic parameters of the robot's odometer.
func (r Robot) OdometerConfig() odometry.Config {
	return odometry.Config{
		TrackWidth:         r.Platform.Chassis.TrackWidth,
		MaxLinearVelocity:  r.Limits.MaxLinearVelocity,
		MaxAngularVelocity: r.Limits.MaxAngularVelocity,
	}
}

// Validate reports every inconsistent parameter of the robot.
func (r Robot) Validate() error {
	err := r.OdometerConfig().Validate()
	if _, perr := odometry.ParseMethod(string(r.Odometry.Method)); perr != nil {
		err = multierr.Append(err, perr)
	}
	if r.Odometry.Tolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("odometry tolerance must be non-negative (got %v)", r.Odometry.Tolerance))
	}
	if r.Platform.Wheel.Diameter < 0 || r.Platform.Motor.MaximumSpeed < 0 {
		err = multierr.Append(err, errors.New("wheel diameter and motor speed must be non-negative"))
	}
	if err != nil {
		return fmt.Errorf("robot %q: %w", r.Name, err)
	}
	return nil
}

// NewOdometer builds an uninitialized odometer for the robot.
func (r Robot) NewOdometer() (*odometry.Odometer, error) {
	o, err := odometry.New(r.OdometerConfig(), r.Odometry.Method)
	if err != nil {
		return nil, fmt.Errorf("robot %q: %w", r.Name, err)
	}
	return o, nil
}

// Tolerance returns the small-angle threshold to integrate with. A zero tolerance
// would send straight-line steps down the arc branch, so it means the default.
func (r Robot) Tolerance() float64 {
	if r.Odometry.Tolerance > 0 {
		return r.Odometry.Tolerance
	}
	return odometry.DefaultTolerance
}
