// Package engine implements the lawnmower simulation loop.
//
// The simulation advances in fixed timesteps. Each step has two passes:
//
//  1. Command pass - every command due by the start of the step is applied: a
//     teleop key updates the velocity set-point, a wheel command replaces the
//     wheel velocities outright. A quit key ends the run.
//
//  2. Motion pass - the odometer integrates the wheel velocities over the step,
//     the workspace fence clamps the position (re-seeding the odometer), and the
//     trail records where the robot went.
package engine

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cxd309/lawnmower-engine/internal/geometry"
	"github.com/cxd309/lawnmower-engine/internal/odometry"
	"github.com/cxd309/lawnmower-engine/internal/robot"
	"github.com/cxd309/lawnmower-engine/internal/teleop"
	"github.com/cxd309/lawnmower-engine/internal/trail"
	"github.com/cxd309/lawnmower-engine/internal/workspace"
)

// timeEpsilon absorbs floating-point drift when matching times to ticks.
const timeEpsilon = 1e-9

// ErrAlreadyRun is returned when Run is called twice on one Simulation.
var ErrAlreadyRun = errors.New("engine: simulation already run")

// Simulation is the state of one run. It is not safe for concurrent use.
type Simulation struct {
	meta     SimulationMeta
	robot    robot.Robot
	odo      *odometry.Odometer
	ctrl     *teleop.Controller
	fence    workspace.Bounds
	trail    *trail.Trail
	commands []Command // sorted by time
	next     int       // index of the first command not yet applied

	vLeft, vRight float64 // wheel velocities in effect, m/s
	curTime       float64
	ran           bool

	logger *zap.Logger
}

// Validate reports every problem with the input at once.
func (in SimulationInput) Validate() error {
	var err error
	if !(in.Meta.TimeStep > 0) || math.IsInf(in.Meta.TimeStep, 0) {
		err = multierr.Append(err, fmt.Errorf("time_step must be positive and finite (got %v)", in.Meta.TimeStep))
	}
	if !(in.Meta.RunTime >= 0) || math.IsInf(in.Meta.RunTime, 0) {
		err = multierr.Append(err, fmt.Errorf("run_time must be non-negative and finite (got %v)", in.Meta.RunTime))
	}
	err = multierr.Append(err, in.Robot.Validate())
	err = multierr.Append(err, in.Workspace.Validate())
	if in.Teleop.LinearStep < 0 || in.Teleop.AngularStep < 0 {
		err = multierr.Append(err, fmt.Errorf("teleop steps must be non-negative (got dv=%v, dw=%v)", in.Teleop.LinearStep, in.Teleop.AngularStep))
	}
	if in.TrailTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("trail_tolerance must be non-negative (got %v)", in.TrailTolerance))
	}
	for i, c := range in.Commands {
		if !(c.Time >= 0) {
			err = multierr.Append(err, fmt.Errorf("command %d: time must be non-negative (got %v)", i, c.Time))
		}
		hasWheels := c.VLeft != nil || c.VRight != nil
		switch {
		case c.IsKey() && hasWheels:
			err = multierr.Append(err, fmt.Errorf("command %d: key and wheel velocities are exclusive", i))
		case !c.IsKey() && (c.VLeft == nil || c.VRight == nil):
			err = multierr.Append(err, fmt.Errorf("command %d: needs a key or both v_left and v_right", i))
		}
	}
	return err
}

// NewSimulation validates the input and places the robot at its initial pose.
// A nil logger disables logging. An empty simulation id is replaced by a UUID.
func NewSimulation(input SimulationInput, logger *zap.Logger) (*Simulation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	odo, err := input.Robot.NewOdometer()
	if err != nil {
		return nil, fmt.Errorf("building odometer: %w", err)
	}
	odo.Initialize(input.InitialPose.X, input.InitialPose.Y, input.InitialPose.Theta)

	meta := input.Meta
	if meta.SimulationID == "" {
		meta.SimulationID = uuid.NewString()
	}

	commands := slices.Clone(input.Commands)
	slices.SortStableFunc(commands, func(a, b Command) int { return cmp.Compare(a.Time, b.Time) })

	tr := trail.New(input.TrailTolerance)
	tr.Append(odo.Position())

	logger = logger.With(zap.String("simulation_id", meta.SimulationID))
	if vmax := input.Robot.Platform.MaxWheelVelocity(); input.Robot.Limits.MaxLinearVelocity > vmax {
		logger.Warn("linear velocity limit exceeds wheel speed",
			zap.Float64("v_max", input.Robot.Limits.MaxLinearVelocity),
			zap.Float64("max_wheel_velocity", vmax),
		)
	}
	if !input.Workspace.IsZero() && !input.Workspace.Contains(odo.Position()) {
		logger.Warn("initial pose outside workspace",
			zap.Float64("x", input.InitialPose.X),
			zap.Float64("y", input.InitialPose.Y),
		)
	}

	return &Simulation{
		meta:     meta,
		robot:    input.Robot,
		odo:      odo,
		ctrl:     teleop.NewController(input.Teleop, input.Robot.Limits),
		fence:    input.Workspace,
		trail:    tr,
		commands: commands,
		logger:   logger,
	}, nil
}

// Meta returns the run parameters, including the resolved simulation id.
func (s *Simulation) Meta() SimulationMeta { return s.meta }

// Trail returns the path recorded so far.
func (s *Simulation) Trail() *trail.Trail { return s.trail }

// Pose returns the current robot pose.
func (s *Simulation) Pose() odometry.Pose { return s.odo.Pose() }

// Run executes the full simulation and returns the log. The first row holds the
// initial pose; each later row holds the state at the end of a step.
func (s *Simulation) Run() (SimulationLog, error) {
	if s.ran {
		return SimulationLog{}, ErrAlreadyRun
	}
	s.ran = true

	dt := s.meta.TimeStep
	steps := int(math.Floor(s.meta.RunTime/dt + timeEpsilon))
	s.logger.Info("simulation started",
		zap.String("robot", s.robot.Name),
		zap.Stringer("method", s.odo.Method()),
		zap.Float64("run_time", s.meta.RunTime),
		zap.Float64("time_step", dt),
		zap.Int("commands", len(s.commands)),
	)

	log := SimulationLog{Meta: s.meta}
	log.Output = append(log.Output, s.row(false))

	stoppedBy := StopRunTime
	taken := 0
	for k := 1; k <= steps; k++ {
		if s.applyCommands() {
			stoppedBy = StopQuit
			s.logger.Debug("quit requested", zap.Float64("time", s.curTime))
			break
		}
		row, err := s.step(dt)
		if err != nil {
			return SimulationLog{}, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
		}
		s.curTime = float64(k) * dt
		row.Timestamp = s.curTime
		log.Output = append(log.Output, row)
		taken++
	}

	log.Summary = Summary{
		FinalPose: s.odo.Pose(),
		Method:    s.odo.Method(),
		Steps:     taken,
		Distance:  s.trail.Length(),
		StoppedBy: stoppedBy,
	}
	s.logger.Info("simulation finished",
		zap.Int("steps", taken),
		zap.String("stopped_by", string(stoppedBy)),
		zap.Float64("distance", log.Summary.Distance),
		zap.Float64("x", log.Summary.FinalPose.X),
		zap.Float64("y", log.Summary.FinalPose.Y),
		zap.Float64("theta", log.Summary.FinalPose.Theta),
	)
	return log, nil
}

// applyCommands applies every command due at the current time and reports
// whether one of them asked to quit.
func (s *Simulation) applyCommands() bool {
	for s.next < len(s.commands) && s.commands[s.next].Time <= s.curTime+timeEpsilon {
		c := s.commands[s.next]
		s.next++

		if !c.IsKey() {
			s.vLeft, s.vRight = *c.VLeft, *c.VRight
			// Keep the teleop set-point in step so later keys start from here.
			s.ctrl.Set(odometry.ForwardKinematics(s.vLeft, s.vRight, s.robot.Platform.Chassis.TrackWidth))
			continue
		}

		quit, err := s.ctrl.Press(c.Key)
		if err != nil {
			s.logger.Warn("ignoring key", zap.String("key", c.Key), zap.Float64("time", c.Time), zap.Error(err))
			continue
		}
		if quit {
			return true
		}
		v, w := s.ctrl.Command()
		s.logger.Debug("key applied", zap.String("key", c.Key), zap.Float64("v", v), zap.Float64("w", w))
		s.vLeft, s.vRight = s.ctrl.Wheels(s.robot.Platform)
	}
	return false
}

// step integrates one timestep and returns the resulting log row (without its
// timestamp).
func (s *Simulation) step(dt float64) (SimulationLogRow, error) {
	pose, err := s.odo.IntegrateWithTolerance(s.vLeft, s.vRight, dt, s.robot.Tolerance())
	if err != nil {
		return SimulationLogRow{}, fmt.Errorf("integrating odometry: %w", err)
	}
	if s.odo.Saturated() {
		v, w := s.odo.Twist()
		s.logger.Debug("velocity clamped",
			zap.Float64("v_left", s.vLeft),
			zap.Float64("v_right", s.vRight),
			zap.Float64("v", v),
			zap.Float64("w", w),
		)
	}

	pos, fenced := s.fence.Fence(pose.Position())
	theta := pose.Theta
	if s.meta.NormalizeHeading {
		theta = geometry.NormalizeAngle(theta)
	}
	if fenced || theta != pose.Theta {
		s.odo.Initialize(pos.X, pos.Y, theta)
	}
	if fenced {
		s.logger.Debug("position fenced",
			zap.Float64("x", pose.X),
			zap.Float64("y", pose.Y),
			zap.Float64("fenced_x", pos.X),
			zap.Float64("fenced_y", pos.Y),
		)
	}

	s.trail.Append(pos)
	return s.row(fenced), nil
}

// row snapshots the odometer.
func (s *Simulation) row(fenced bool) SimulationLogRow {
	vl, vr := s.odo.Velocities()
	v, w := s.odo.Twist()
	return SimulationLogRow{
		Timestamp:  s.curTime,
		Pose:       s.odo.Pose(),
		Velocities: Velocities{VLeft: vl, VRight: vr},
		Twist:      Twist{V: v, W: w},
		Saturated:  s.odo.Saturated(),
		Fenced:     fenced,
	}
}

// Compare runs the input once per odometry method and measures each final pose
// against the analytical one.
func Compare(input SimulationInput, logger *zap.Logger) (Comparison, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if input.Meta.SimulationID == "" {
		input.Meta.SimulationID = uuid.NewString()
	}

	results := make([]MethodResult, 0, len(odometry.Methods))
	var ref odometry.Pose
	for _, m := range odometry.Methods {
		in := input
		in.Robot.Odometry.Method = m
		sim, err := NewSimulation(in, logger.With(zap.Stringer("method", m)))
		if err != nil {
			return Comparison{}, fmt.Errorf("method %s: %w", m, err)
		}
		simLog, err := sim.Run()
		if err != nil {
			return Comparison{}, fmt.Errorf("method %s: %w", m, err)
		}
		results = append(results, MethodResult{
			Method:    m,
			FinalPose: simLog.Summary.FinalPose,
			Distance:  simLog.Summary.Distance,
		})
		if m == odometry.Analytical {
			ref = simLog.Summary.FinalPose
		}
	}

	for i := range results {
		p := results[i].FinalPose
		results[i].PositionError = geometry.Distance(p.Position(), ref.Position())
		results[i].HeadingError = math.Abs(geometry.NormalizeAngle(p.Theta - ref.Theta))
	}
	return Comparison{Meta: input.Meta, Results: results}, nil
}

// ParseInput decodes a JSON SimulationInput on top of DefaultSimulationInput.
func ParseInput(data []byte) (SimulationInput, error) {
	input := DefaultSimulationInput()
	if err := json.Unmarshal(data, &input); err != nil {
		return SimulationInput{}, fmt.Errorf("invalid input JSON: %w", err)
	}
	return input, nil
}

// RunJSON is the primary entry point for the CLI and WASM targets.
// It accepts a JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	input, err := ParseInput([]byte(jsonInput))
	if err != nil {
		return "", err
	}

	sim, err := NewSimulation(input, nil)
	if err != nil {
		return "", err
	}

	simLog, err := sim.Run()
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}

// CompareJSON is the JSON form of Compare.
func CompareJSON(jsonInput string) (string, error) {
	input, err := ParseInput([]byte(jsonInput))
	if err != nil {
		return "", err
	}

	comparison, err := Compare(input, nil)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(comparison)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
