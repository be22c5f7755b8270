// Package workspace implements the rectangular geofence the robot is kept inside.
package workspace

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r2"
)

// Margin scales each bound before fencing, keeping the robot off the edge.
const Margin = 0.98

// Bounds is an axis-aligned area in metres. The zero value disables fencing.
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// IsZero reports whether no bounds are set.
func (b Bounds) IsZero() bool { return b == Bounds{} }

// Validate requires each minimum to lie below its maximum.
func (b Bounds) Validate() error {
	if b.IsZero() {
		return nil
	}
	var err error
	if !(b.XMin < b.XMax) {
		err = multierr.Append(err, fmt.Errorf("workspace x_min %v must be below x_max %v", b.XMin, b.XMax))
	}
	if !(b.YMin < b.YMax) {
		err = multierr.Append(err, fmt.Errorf("workspace y_min %v must be below y_max %v", b.YMin, b.YMax))
	}
	return err
}

// Contains reports whether p lies inside the unscaled bounds.
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= b.XMin && p.X <= b.XMax && p.Y >= b.YMin && p.Y <= b.YMax
}

// Fence clamps p to the bounds scaled by Margin and reports whether it moved.
// The margin scales the bound values themselves, so a bound at zero stays at zero.
func (b Bounds) Fence(p r2.Vec) (r2.Vec, bool) {
	if b.IsZero() {
		return p, false
	}
	q := r2.Vec{
		X: lo.Clamp(p.X, Margin*b.XMin, Margin*b.XMax),
		Y: lo.Clamp(p.Y, Margin*b.YMin, Margin*b.YMax),
	}
	return q, q != p
}
