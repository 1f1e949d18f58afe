/*
Package predicates implements exact geometric predicates for points in the
plane: orientation of three points and the in-circle test for four points.

Both predicates are adaptive. They first evaluate the determinant in
floating point and compare its magnitude against a static error bound
(after J. R. Shewchuk, "Adaptive Precision Floating-Point Arithmetic and
Fast Robust Geometric Predicates", 1997). Only if the estimate is smaller
than the bound is the determinant re-evaluated with exact arithmetic. For
float64 inputs the result always equals the sign of the true determinant.

Callers must not pass NaN or infinite coordinates; such inputs are reported
as degenerate (Collinear, OnCircle).

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package predicates

import (
	"math"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/r2"
)

// epsilon is half an ulp of 1.0, i.e. the relative rounding error of a
// single float64 operation.
const epsilon = 1.0 / (1 << 53)

// Static error bounds for the floating point filters.
const (
	ccwErrBoundA = (3.0 + 16.0*epsilon) * epsilon
	iccErrBoundA = (10.0 + 96.0*epsilon) * epsilon
)

// Orientation is the result of an orientation test.
type Orientation int8

// Results of Orient.
const (
	Right     Orientation = -1 // clockwise
	Collinear Orientation = 0
	Left      Orientation = 1 // counter-clockwise
)

func (o Orientation) String() string {
	switch o {
	case Left:
		return "Left"
	case Right:
		return "Right"
	}
	return "Collinear"
}

// Circularity is the result of an in-circle test.
type Circularity int8

// Results of InCircle.
const (
	Outside  Circularity = -1
	OnCircle Circularity = 0
	Inside   Circularity = 1
)

func (c Circularity) String() string {
	switch c {
	case Inside:
		return "Inside"
	case Outside:
		return "Outside"
	}
	return "OnCircle"
}

// counters for fast and exact evaluations
var fastCount, exactCount atomic.Uint64

// Stats returns the number of predicate evaluations decided by the
// floating point filter and the number which needed exact arithmetic.
func Stats() (fast, exact uint64) {
	return fastCount.Load(), exactCount.Load()
}

// Orient reports whether c lies to the left of, to the right of, or on the
// directed line through a and b. Left means a, b, c are counter-clockwise.
func Orient(a, b, c r2.Vec) Orientation {
	detLeft := (a.X - c.X) * (b.Y - c.Y)
	detRight := (a.Y - c.Y) * (b.X - c.X)
	det := detLeft - detRight
	errBound := ccwErrBoundA * (math.Abs(detLeft) + math.Abs(detRight))
	if det > errBound || -det > errBound {
		fastCount.Add(1)
		return Orientation(sign(det))
	}
	if o, ok := orientErrorFree(a, b, c); ok {
		fastCount.Add(1)
		return o
	}
	exactCount.Add(1)
	return orientExact(a, b, c)
}

// OrientDet returns the floating point estimate of the orientation
// determinant, which equals twice the signed area of triangle a, b, c.
// The value is not exact; use Orient for decisions.
func OrientDet(a, b, c r2.Vec) float64 {
	return (a.X-c.X)*(b.Y-c.Y) - (a.Y-c.Y)*(b.X-c.X)
}

// InCircle reports whether d lies inside, outside or on the circle through
// a, b and c. The result does not depend on the winding of a, b, c. If a,
// b and c are collinear there is no such circle and the result is Outside.
func InCircle(a, b, c, d r2.Vec) Circularity {
	o := Orient(a, b, c)
	if o == Collinear {
		return Outside
	}
	s := inCircleSign(a, b, c, d)
	return Circularity(s * int(o))
}

// inCircleSign returns the sign of the in-circle determinant, which is
// positive if d is inside the circle through a counter-clockwise triangle
// a, b, c.
func inCircleSign(a, b, c, d r2.Vec) int {
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y

	bdxcdy, cdxbdy := bdx*cdy, cdx*bdy
	alift := adx*adx + ady*ady
	cdxady, adxcdy := cdx*ady, adx*cdy
	blift := bdx*bdx + bdy*bdy
	adxbdy, bdxady := adx*bdy, bdx*ady
	clift := cdx*cdx + cdy*cdy

	det := alift*(bdxcdy-cdxbdy) + blift*(cdxady-adxcdy) + clift*(adxbdy-bdxady)
	permanent := (math.Abs(bdxcdy)+math.Abs(cdxbdy))*alift +
		(math.Abs(cdxady)+math.Abs(adxcdy))*blift +
		(math.Abs(adxbdy)+math.Abs(bdxady))*clift
	errBound := iccErrBoundA * permanent
	if det > errBound || -det > errBound {
		fastCount.Add(1)
		return sign(det)
	}
	exactCount.Add(1)
	return inCircleExact(a, b, c, d)
}

// orientErrorFree checks whether every operation of the floating point
// estimate was exact. Grids of sample points produce many collinear
// triples with small integer-like coordinates, which are decided here
// without resorting to big floats.
func orientErrorFree(a, b, c r2.Vec) (Orientation, bool) {
	acx, ok1 := exactDiff(a.X, c.X)
	bcy, ok2 := exactDiff(b.Y, c.Y)
	acy, ok3 := exactDiff(a.Y, c.Y)
	bcx, ok4 := exactDiff(b.X, c.X)
	if !(ok1 && ok2 && ok3 && ok4) {
		return Collinear, false
	}
	left, ok5 := exactProd(acx, bcy)
	right, ok6 := exactProd(acy, bcx)
	if !(ok5 && ok6) {
		return Collinear, false
	}
	// a single rounding of left-right preserves its sign
	return Orientation(sign(left - right)), true
}

// exactDiff returns a-b and whether the subtraction was free of rounding
// error (Knuth's TwoSum).
func exactDiff(a, b float64) (float64, bool) {
	x := a - b
	bv := a - x
	av := x + bv
	err := (a - av) + (bv - b)
	return x, err == 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// exactProd returns a*b and whether the multiplication was free of
// rounding error.
func exactProd(a, b float64) (float64, bool) {
	p := a * b
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return p, false
	}
	return p, math.FMA(a, b, -p) == 0 && (p != 0 || a == 0 || b == 0)
}

// --- Exact evaluation ------------------------------------------------------

// Exact evaluation lifts the planar points to precise 3D vectors. Every
// float64 is representable as a big.Float and PreciseVector operations do
// not round, so the signs below are the true signs of the determinants.

func orientExact(a, b, c r2.Vec) Orientation {
	if !finite(a, b, c) {
		return Collinear
	}
	pa := r3.NewPreciseVector(a.X, a.Y, 0)
	ab := r3.NewPreciseVector(b.X, b.Y, 0).Sub(pa)
	ac := r3.NewPreciseVector(c.X, c.Y, 0).Sub(pa)
	return Orientation(ab.Cross(ac).Z.Sign())
}

func inCircleExact(a, b, c, d r2.Vec) int {
	if !finite(a, b, c, d) {
		return 0
	}
	pd := r3.NewPreciseVector(d.X, d.Y, 0)
	lift := func(p r2.Vec) r3.PreciseVector {
		v := r3.NewPreciseVector(p.X, p.Y, 0).Sub(pd)
		v.Z = v.Norm2() // z = dx² + dy², computed while z is still 0
		return v
	}
	ad, bd, cd := lift(a), lift(b), lift(c)
	return ad.Dot(bd.Cross(cd)).Sign()
}

// --- Helpers ---------------------------------------------------------------

func sign(x float64) int {
	if x > 0 {
		return 1
	} else if x < 0 {
		return -1
	}
	return 0
}

func finite(pts ...r2.Vec) bool {
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}
