// Package trail records the path driven by the robot and renders it with gonum/plot.
package trail

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/cxd309/lawnmower-engine/internal/geometry"
)

// DefaultTolerance is the displacement below which a new point is not recorded.
const DefaultTolerance = 0.001 // metres

// Trail is an ordered polyline of visited positions. It is not safe for
// concurrent use.
type Trail struct {
	tol    float64
	points []r2.Vec
}

// New returns an empty trail. A non-positive tol selects DefaultTolerance.
func New(tol float64) *Trail {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &Trail{tol: tol}
}

// Append records p unless it coincides with the last point. It reports whether
// the point was recorded.
func (t *Trail) Append(p r2.Vec) bool {
	if last, ok := t.Last(); ok && geometry.Coincident(p, last, t.tol) {
		return false
	}
	t.points = append(t.points, p)
	return true
}

// Len returns the number of recorded points.
func (t *Trail) Len() int { return len(t.points) }

// Last returns the most recent point.
func (t *Trail) Last() (r2.Vec, bool) {
	if len(t.points) == 0 {
		return r2.Vec{}, false
	}
	return t.points[len(t.points)-1], true
}

// Length returns the length of the polyline in metres.
func (t *Trail) Length() float64 {
	if len(t.points) < 2 {
		return 0
	}
	segs := make([]float64, len(t.points)-1)
	for i := 1; i < len(t.points); i++ {
		segs[i-1] = geometry.Distance(t.points[i], t.points[i-1])
	}
	return floats.Sum(segs)
}
