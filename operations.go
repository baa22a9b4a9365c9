package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// SmoothMin is the polynomial smooth minimum of a and b with blend radius k.
// When |a-b| >= k the result is min(a,b); within k the seam is rounded and the result
// is always less than or equal to min(a,b). k must be strictly positive.
//
//	h = max(k-|a-b|, 0) / k
//	smin = min(a, b) - h*h*k/4
func SmoothMin(a, b, k float32) float32 {
	h := maxf(k-absf(a-b), 0) / k
	return minf(a, b) - h*h*k*0.25
}

// Fmod is the floored modulo x - y*floor(x/y). Unlike [math32.Mod] the result has the sign of y.
func Fmod(x, y float32) float32 {
	return x - y*math32.Floor(x/y)
}

// Repeat maps p into a single cell of an infinite lattice of cells of size period.
// Evaluating a primitive at Repeat(p, period) tiles it with copies at p = period*(n+1/2) for integer n.
// Every period component must be non-zero.
func Repeat(p, period ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: Fmod(p.X, period.X) - 0.5*period.X,
		Y: Fmod(p.Y, period.Y) - 0.5*period.Y,
		Z: Fmod(p.Z, period.Z) - 0.5*period.Z,
	}
}
