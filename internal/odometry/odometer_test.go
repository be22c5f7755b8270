package odometry

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lawnmowerConfig is the configuration used by the reference scenarios.
var lawnmowerConfig = Config{TrackWidth: 0.556, MaxLinearVelocity: 1.0, MaxAngularVelocity: 3.5}

func newOdometer(t *testing.T, cfg Config, m Method, pose Pose) *Odometer {
	t.Helper()
	o, err := New(cfg, m)
	require.NoError(t, err)
	o.Initialize(pose.X, pose.Y, pose.Theta)
	return o
}

func TestStraightLineScenario(t *testing.T) {
	t.Parallel()

	for _, m := range Methods {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			o := newOdometer(t, lawnmowerConfig, m, Pose{})

			got, err := o.Integrate(0.5, 0.5, 1.0)
			require.NoError(t, err)

			want := Pose{X: 0.5, Y: 0, Theta: 0}
			if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("pose mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, got, o.Pose())
		})
	}
}

func TestStraightLineInvariance(t *testing.T) {
	t.Parallel()

	start := Pose{X: 1.5, Y: -2, Theta: 2.1}
	const v, dt = 0.4, 0.25
	want := Pose{
		X:     start.X + v*dt*math.Cos(start.Theta),
		Y:     start.Y + v*dt*math.Sin(start.Theta),
		Theta: start.Theta,
	}

	for _, m := range Methods {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			o := newOdometer(t, lawnmowerConfig, m, start)

			got, err := o.Integrate(v, v, dt)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("pose mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPureRotation(t *testing.T) {
	t.Parallel()

	start := Pose{X: 3, Y: 4, Theta: 0.2}
	const dt = 0.5
	_, w := ForwardKinematics(-0.2, 0.2, lawnmowerConfig.TrackWidth)

	for _, m := range Methods {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			o := newOdometer(t, lawnmowerConfig, m, start)

			got, err := o.Integrate(-0.2, 0.2, dt)
			require.NoError(t, err)

			assert.InDelta(t, start.Theta+w*dt, got.Theta, 1e-12)
			if m != Analytical {
				assert.Equal(t, start.X, got.X)
				assert.Equal(t, start.Y, got.Y)
			}
		})
	}
}

func TestArcScenario(t *testing.T) {
	t.Parallel()

	const vl, vr, dt = 0.3, 0.7, 1.0
	v := 0.5 * (vl + vr)
	w := (vr - vl) / lawnmowerConfig.TrackWidth
	require.InDelta(t, 0.7194, w, 1e-4)

	r := v / w
	exact := Pose{X: r * math.Sin(w*dt), Y: r * (1 - math.Cos(w*dt)), Theta: w * dt}

	o := newOdometer(t, lawnmowerConfig, Analytical, Pose{})
	got, err := o.Integrate(vl, vr, dt)
	require.NoError(t, err)
	assert.InDelta(t, exact.X, got.X, 1e-9)
	assert.InDelta(t, exact.Y, got.Y, 1e-9)
	assert.InDelta(t, exact.Theta, got.Theta, 1e-9)

	// Euler error over a fixed horizon shrinks as the step shrinks.
	eulerError := func(steps int) float64 {
		e := newOdometer(t, lawnmowerConfig, FirstOrder, Pose{})
		h := dt / float64(steps)
		for i := 0; i < steps; i++ {
			_, err := e.Integrate(vl, vr, h)
			require.NoError(t, err)
		}
		return math.Hypot(e.Pose().X-exact.X, e.Pose().Y-exact.Y)
	}
	e1, e10, e100 := eulerError(1), eulerError(10), eulerError(100)
	assert.Greater(t, e1, 1e-3)
	assert.Less(t, e10, e1)
	assert.Less(t, e100, e10)
}

func TestAnalyticalConvergesToSecondOrder(t *testing.T) {
	t.Parallel()

	start := Pose{X: 0.1, Y: 0.2, Theta: 0.3}
	const v, dt = 0.5, 1.0

	prev := math.Inf(1)
	for _, w := range []float64{1e-1, 1e-2, 1e-3, 1e-4} {
		// A vanishing tolerance keeps the analytical method on the arc branch.
		arc := StepAnalytical(start, v, w, dt, 0)
		mid := StepSecondOrder(start, v, w, dt, 0)
		d := math.Hypot(arc.X-mid.X, arc.Y-mid.Y)
		assert.Less(t, d, prev, "w=%g", w)
		assert.Equal(t, mid.Theta, arc.Theta)
		prev = d
	}
	assert.Less(t, prev, 1e-8)
}

func TestAnalyticalToleranceBoundary(t *testing.T) {
	t.Parallel()

	start := Pose{Theta: 0.7}
	const v, w, dt = 0.5, 0.5, 1.0 // da == 0.5 exactly

	r := v / w
	arc := Pose{
		X:     r * (math.Sin(start.Theta+0.5) - math.Sin(start.Theta)),
		Y:     -r * (math.Cos(start.Theta+0.5) - math.Cos(start.Theta)),
		Theta: start.Theta + 0.5,
	}
	mid := StepSecondOrder(start, v, w, dt, 0)
	require.Greater(t, math.Abs(arc.X-mid.X), 1e-4)

	t.Run("equal to tolerance takes the arc", func(t *testing.T) {
		t.Parallel()
		got := StepAnalytical(start, v, w, dt, 0.5)
		if diff := cmp.Diff(arc, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("pose mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("below tolerance takes the midpoint", func(t *testing.T) {
		t.Parallel()
		got := StepAnalytical(start, v, w, dt, 0.5000001)
		assert.Equal(t, mid, got)
	})

	t.Run("through the odometer", func(t *testing.T) {
		t.Parallel()
		o := newOdometer(t, Config{TrackWidth: 1, MaxLinearVelocity: 1, MaxAngularVelocity: 1}, Analytical, start)
		got, err := o.IntegrateWithTolerance(0.25, 0.75, dt, 0.5)
		require.NoError(t, err)
		if diff := cmp.Diff(arc, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("pose mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNonPositiveTolerance(t *testing.T) {
	t.Parallel()

	t.Run("straight step stays finite", func(t *testing.T) {
		t.Parallel()
		for _, tol := range []float64{0, -1} {
			got := StepAnalytical(Pose{}, 0.5, 0, 1, tol)
			assert.Equal(t, Pose{X: 0.5}, got, "tol=%g", tol)

			got = StepAnalytical(Pose{X: 1, Y: 2}, 0, 0, 1, tol)
			assert.Equal(t, Pose{X: 1, Y: 2}, got, "tol=%g", tol)
		}
	})

	for _, tol := range []float64{0, -1, math.NaN()} {
		for _, m := range Methods {
			m := m
			t.Run(fmt.Sprintf("%s/tol=%g", m, tol), func(t *testing.T) {
				t.Parallel()
				start := Pose{X: 1, Y: 2, Theta: 0.3}
				o := newOdometer(t, lawnmowerConfig, m, start)

				_, err := o.IntegrateWithTolerance(0.5, 0.5, 1, tol)
				require.ErrorIs(t, err, ErrInvalidTolerance)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Equal(t, start, o.Pose())
				vl, vr := o.Velocities()
				assert.Zero(t, vl)
				assert.Zero(t, vr)

				got, err := o.IntegrateWithTolerance(0.5, 0.5, 1, DefaultTolerance)
				require.NoError(t, err)
				assert.False(t, math.IsNaN(got.X) || math.IsNaN(got.Y))
			})
		}
	}
}

func TestSecondOrderBeatsFirstOrder(t *testing.T) {
	t.Parallel()

	const vl, vr, dt, steps = 0.3, 0.7, 0.1, 20
	run := func(m Method) Pose {
		o := newOdometer(t, lawnmowerConfig, m, Pose{})
		for i := 0; i < steps; i++ {
			_, err := o.Integrate(vl, vr, dt)
			require.NoError(t, err)
		}
		return o.Pose()
	}
	exact := run(Analytical)
	first, second := run(FirstOrder), run(SecondOrder)

	errFirst := math.Hypot(first.X-exact.X, first.Y-exact.Y)
	errSecond := math.Hypot(second.X-exact.X, second.Y-exact.Y)
	assert.Less(t, errSecond, errFirst)
}

func TestVelocitySnapshotAndClamping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		vl, vr        float64
		wantV, wantW  float64
		wantSaturated bool
	}{
		{name: "within limits", vl: 0.3, vr: 0.7, wantV: 0.5, wantW: 0.4 / 0.556},
		{name: "forward clamped", vl: 3, vr: 3, wantV: 1, wantW: 0, wantSaturated: true},
		{name: "reverse clamped", vl: -2, vr: -2, wantV: -1, wantW: 0, wantSaturated: true},
		{name: "spin clamped", vl: -5, vr: 5, wantV: 0, wantW: 3.5, wantSaturated: true},
		{name: "both clamped", vl: 1, vr: 5, wantV: 1, wantW: 3.5, wantSaturated: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			o := newOdometer(t, lawnmowerConfig, SecondOrder, Pose{})

			_, err := o.Integrate(tc.vl, tc.vr, 0.1)
			require.NoError(t, err)

			vl, vr := o.Velocities()
			assert.Equal(t, tc.vl, vl)
			assert.Equal(t, tc.vr, vr)

			v, w := o.Twist()
			assert.InDelta(t, tc.wantV, v, 1e-12)
			assert.InDelta(t, tc.wantW, w, 1e-12)
			assert.LessOrEqual(t, math.Abs(v), lawnmowerConfig.MaxLinearVelocity)
			assert.LessOrEqual(t, math.Abs(w), lawnmowerConfig.MaxAngularVelocity)
			assert.Equal(t, tc.wantSaturated, o.Saturated())
		})
	}
}

func TestZeroTrackWidthFails(t *testing.T) {
	t.Parallel()

	for _, m := range Methods {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			o := newOdometer(t, Config{MaxLinearVelocity: 1, MaxAngularVelocity: 1}, m, Pose{X: 1})

			_, err := o.Integrate(0.5, 0.6, 0.1)
			require.ErrorIs(t, err, ErrInvalidTrackWidth)
			require.ErrorIs(t, err, ErrInvalidConfig)

			assert.Equal(t, Pose{X: 1}, o.Pose())
			vl, vr := o.Velocities()
			assert.Zero(t, vl)
			assert.Zero(t, vr)
		})
	}
}

func TestIntegrateBeforeInitialize(t *testing.T) {
	t.Parallel()

	o, err := New(lawnmowerConfig, FirstOrder)
	require.NoError(t, err)
	assert.False(t, o.Initialized())

	_, err = o.Integrate(0.1, 0.1, 0.1)
	require.ErrorIs(t, err, ErrNotInitialized)

	o.Initialize(0, 0, 0)
	assert.True(t, o.Initialized())
	_, err = o.Integrate(0.1, 0.1, 0.1)
	require.NoError(t, err)
}

func TestHeadingIsNotWrapped(t *testing.T) {
	t.Parallel()

	o := newOdometer(t, lawnmowerConfig, Analytical, Pose{})
	for i := 0; i < 10; i++ {
		_, err := o.Integrate(-5, 5, 1)
		require.NoError(t, err)
	}
	assert.InDelta(t, 35.0, o.Orientation(), 1e-9)
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	o := newOdometer(t, lawnmowerConfig, Analytical, Pose{X: 1, Y: 2, Theta: 3})
	assert.Equal(t, Analytical, o.Method())
	assert.Equal(t, lawnmowerConfig, o.Config())
	assert.Equal(t, 1.0, o.Position().X)
	assert.Equal(t, 2.0, o.Position().Y)
	assert.Equal(t, 3.0, o.Orientation())
	assert.Equal(t, Pose{X: 1, Y: 2, Theta: 3}, o.Pose())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, lawnmowerConfig.Validate())

	err := Config{TrackWidth: 0, MaxLinearVelocity: -1, MaxAngularVelocity: math.NaN()}.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidTrackWidth)
	assert.Contains(t, err.Error(), "linear velocity")
	assert.Contains(t, err.Error(), "angular velocity")

	require.ErrorIs(t, Config{TrackWidth: -0.5}.Validate(), ErrInvalidConfig)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, m := range Methods {
		got, err := ParseMethod(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)

		step, err := got.Step()
		require.NoError(t, err)
		assert.NotNil(t, step)
	}

	_, err := ParseMethod("runge_kutta")
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = New(lawnmowerConfig, Method("runge_kutta"))
	require.ErrorIs(t, err, ErrUnknownMethod)

	var m Method
	require.NoError(t, m.UnmarshalText([]byte("second_order")))
	assert.Equal(t, SecondOrder, m)
	require.Error(t, m.UnmarshalText([]byte("")))
}
