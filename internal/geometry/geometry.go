// Package geometry provides the planar angle and vector helpers shared by the
// simulation.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
)

const twoPi = 2 * math.Pi

// NormalizeAngle maps rad into [-π, π).
func NormalizeAngle(rad float64) float64 {
	return WrapAngle(rad+math.Pi) - math.Pi
}

// WrapAngle maps rad into [0, 2π).
func WrapAngle(rad float64) float64 {
	a := math.Mod(rad, twoPi)
	if a < 0 {
		a += twoPi
	}
	// a tiny negative remainder rounds up to exactly 2π
	if a >= twoPi {
		a = 0
	}
	return a
}

// Coincident reports whether a and b agree within tol on both axes.
func Coincident(a, b r2.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) && scalar.EqualWithinAbs(a.Y, b.Y, tol)
}

// Heading returns the unit direction of a heading angle.
func Heading(theta float64) r2.Vec {
	return r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}
