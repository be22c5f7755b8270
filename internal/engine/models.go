package engine

import (
	"github.com/cxd309/lawnmower-engine/internal/odometry"
	"github.com/cxd309/lawnmower-engine/internal/robot"
	"github.com/cxd309/lawnmower-engine/internal/teleop"
	"github.com/cxd309/lawnmower-engine/internal/workspace"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	RunTime      float64 `json:"run_time"`  // seconds
	TimeStep     float64 `json:"time_step"` // seconds
	// NormalizeHeading wraps the heading into [-π, π) after every step. Off by
	// default: the heading then grows without bound as the robot turns.
	NormalizeHeading bool `json:"normalize_heading,omitempty"`
}

// Command changes the wheel velocities at a point in time. Exactly one of Key or
// the VLeft/VRight pair is set.
type Command struct {
	Time   float64  `json:"time"`              // seconds
	Key    string   `json:"key,omitempty"`     // teleop key, see teleop.ParseKey
	VLeft  *float64 `json:"v_left,omitempty"`  // m/s
	VRight *float64 `json:"v_right,omitempty"` // m/s
}

// IsKey reports whether the command is a key press.
func (c Command) IsKey() bool { return c.Key != "" }

// SimulationInput is the JSON-serialisable input to the engine.
type SimulationInput struct {
	Meta        SimulationMeta     `json:"simulation_meta"`
	Robot       robot.Robot        `json:"robot"`
	InitialPose odometry.Pose      `json:"initial_pose"`
	Workspace   workspace.Bounds   `json:"workspace"`
	Teleop      teleop.Sensitivity `json:"teleop"`
	Commands    []Command          `json:"commands"`
	// TrailTolerance is the minimum displacement recorded in the path trail.
	TrailTolerance float64 `json:"trail_tolerance,omitempty"` // metres
}

// DefaultSimulationInput returns an input with the default robot and teleop
// sensitivity. Decoding JSON on top of it keeps these for omitted fields.
func DefaultSimulationInput() SimulationInput {
	return SimulationInput{
		Robot:  robot.Default(),
		Teleop: teleop.DefaultSensitivity(),
	}
}

// Velocities are wheel-contact velocities in m/s.
type Velocities struct {
	VLeft  float64 `json:"v_left"`
	VRight float64 `json:"v_right"`
}

// Twist is a forward velocity (m/s) and yaw rate (rad/s).
type Twist struct {
	V float64 `json:"v"`
	W float64 `json:"w"`
}

// SimulationLogRow is the robot state at a single simulation timestep. The
// velocities and twist are those integrated to reach the pose.
type SimulationLogRow struct {
	Timestamp  float64       `json:"timestamp"` // seconds
	Pose       odometry.Pose `json:"pose"`
	Velocities Velocities    `json:"velocities"`
	Twist      Twist         `json:"twist"`
	Saturated  bool          `json:"saturated,omitempty"` // velocity limits clamped the twist
	Fenced     bool          `json:"fenced,omitempty"`    // the workspace fence moved the robot
}

// StopReason records why a run ended.
type StopReason string

const (
	StopRunTime StopReason = "run_time"
	StopQuit    StopReason = "quit"
)

// Summary aggregates a finished run.
type Summary struct {
	FinalPose odometry.Pose   `json:"final_pose"`
	Method    odometry.Method `json:"method"`
	Steps     int             `json:"steps"`
	Distance  float64         `json:"distance"` // metres along the recorded trail
	StoppedBy StopReason      `json:"stopped_by"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta    SimulationMeta     `json:"simulation_meta"`
	Output  []SimulationLogRow `json:"output"`
	Summary Summary            `json:"summary"`
}

// MethodResult is the outcome of one method in a comparison.
type MethodResult struct {
	Method    odometry.Method `json:"method"`
	FinalPose odometry.Pose   `json:"final_pose"`
	Distance  float64         `json:"distance"`
	// PositionError and HeadingError are measured against the analytical method.
	PositionError float64 `json:"position_error"` // metres
	HeadingError  float64 `json:"heading_error"`  // radians
}

// Comparison holds the same scenario integrated by every method.
type Comparison struct {
	Meta    SimulationMeta `json:"simulation_meta"`
	Results []MethodResult `json:"results"`
}
