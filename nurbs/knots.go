/*
Package nurbs evaluates B-spline and NURBS curves and surfaces.

Algorithms follow L. Piegl and W. Tiller, "The NURBS Book" (2nd ed.),
and are referenced by their numbers there (A2.1 etc.). Rational geometry
is evaluated in homogeneous coordinates. Every division by a knot
difference is guarded, so repeated knots never produce NaN.

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package nurbs

import (
	"fmt"
	"sort"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/tessel"
)

// tracer writes to trace with key 'tessel.nurbs'
func tracer() tracing.Trace {
	return tracing.Select("tessel.nurbs")
}

// Errors reported by validation and evaluation.
var (
	ErrNoControlPoints = fmt.Errorf("%w: too few control points", tessel.ErrDegenerateInput)
	ErrDegree          = fmt.Errorf("%w: degree must be at least 1", tessel.ErrDegenerateInput)
	ErrKnotCount       = fmt.Errorf("%w: knot count does not match control points and degree", tessel.ErrDegenerateInput)
	ErrKnotOrder       = fmt.Errorf("%w: knots are not non-decreasing", tessel.ErrDegenerateInput)
	ErrWeight          = fmt.Errorf("%w: weights must be positive and match the control points", tessel.ErrDegenerateInput)
	ErrEmptyDomain     = fmt.Errorf("%w: parameter domain is empty", tessel.ErrNumericDegeneracy)
	ErrMultiplicity    = fmt.Errorf("%w: knot multiplicity exceeds degree+1", tessel.ErrNumericDegeneracy)
	ErrNonFinite       = fmt.Errorf("%w: non-finite value", tessel.ErrNumericDegeneracy)
)

// KnotVector is a non-decreasing sequence of parameter values.
type KnotVector []float64

// ClampedUniform creates a clamped knot vector with uniformly spaced
// interior knots over [0,1], for n control points of the given degree.
func ClampedUniform(degree, n int) KnotVector {
	if degree < 1 || n < degree+1 {
		return nil
	}
	kv := make(KnotVector, n+degree+1)
	spans := n - degree
	for i := range kv {
		switch {
		case i <= degree:
			kv[i] = 0
		case i >= n:
			kv[i] = 1
		default:
			kv[i] = float64(i-degree) / float64(spans)
		}
	}
	return kv
}

// Validate checks the knot vector for use with n control points of the
// given degree.
func (kv KnotVector) Validate(degree, n int) error {
	if degree < 1 {
		return ErrDegree
	}
	if n < degree+1 {
		return fmt.Errorf("%w: %d control points for degree %d", ErrNoControlPoints, n, degree)
	}
	if len(kv) != n+degree+1 {
		return fmt.Errorf("%w: have %d, need %d", ErrKnotCount, len(kv), n+degree+1)
	}
	for i, k := range kv {
		if !tessel.IsFinite(k) {
			return fmt.Errorf("%w: knot %d", ErrNonFinite, i)
		}
		if i > 0 && k < kv[i-1] {
			return fmt.Errorf("%w: knot %d", ErrKnotOrder, i)
		}
	}
	for i := 0; i < len(kv); {
		m := kv.Multiplicity(kv[i])
		if m > degree+1 {
			return fmt.Errorf("%w: knot %g has multiplicity %d", ErrMultiplicity, kv[i], m)
		}
		i += m
	}
	lo, hi := kv.Domain(degree)
	if !(hi > lo) {
		return fmt.Errorf("%w: [%g,%g]", ErrEmptyDomain, lo, hi)
	}
	return nil
}

// Domain returns the valid parameter range [u_p, u_{m-p-1}].
func (kv KnotVector) Domain(degree int) (float64, float64) {
	return kv[degree], kv[len(kv)-degree-1]
}

// Multiplicity returns how often u occurs in the knot vector.
func (kv KnotVector) Multiplicity(u float64) int {
	lo := sort.SearchFloat64s(kv, u)
	m := 0
	for i := lo; i < len(kv) && kv[i] == u; i++ {
		m++
	}
	return m
}

// Distinct returns the knot values without repetitions, restricted to the
// domain of the given degree.
func (kv KnotVector) Distinct(degree int) []float64 {
	lo, hi := kv.Domain(degree)
	var result []float64
	for _, k := range kv {
		if k < lo || k > hi {
			continue
		}
		if len(result) == 0 || k > result[len(result)-1] {
			result = append(result, k)
		}
	}
	return result
}

// FindSpan returns the index i of the knot span [u_i, u_{i+1}) containing u
// (A2.1). The last span is closed at the end of the domain, and parameters
// outside the domain are mapped to the first or last span.
func (kv KnotVector) FindSpan(degree int, u float64) int {
	n := len(kv) - degree - 2 // index of the last control point
	if u >= kv[n+1] {
		// step back over zero-length spans at the end
		i := n
		for i > degree && kv[i] == kv[n+1] {
			i--
		}
		return i
	}
	if u <= kv[degree] {
		i := degree
		for i < n && kv[i+1] == kv[degree] {
			i++
		}
		return i
	}
	low, high := degree, n+1
	mid := (low + high) / 2
	for u < kv[mid] || u >= kv[mid+1] {
		if u < kv[mid] {
			high = mid
		} else {
			low = mid
		}
		mid = (low + high) / 2
	}
	return mid
}

// BasisFuncs computes the non-vanishing basis functions N_{span-p..span, p}
// at u (A2.2).
func (kv KnotVector) BasisFuncs(span, degree int, u float64) []float64 {
	N := make([]float64, degree+1)
	left := make([]float64, degree+1)
	right := make([]float64, degree+1)
	N[0] = 1
	for j := 1; j <= degree; j++ {
		left[j] = u - kv[span+1-j]
		right[j] = kv[span+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			temp := safeDiv(N[r], right[r+1]+left[j-r])
			N[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		N[j] = saved
	}
	return N
}

// DersBasisFuncs computes the non-vanishing basis functions and their
// derivatives up to order n at u (A2.3). ders[k][j] is the k-th derivative
// of N_{span-p+j, p}. Derivatives above the degree are zero.
func (kv KnotVector) DersBasisFuncs(span, degree, n int, u float64) [][]float64 {
	p := degree
	ndu := make([][]float64, p+1)
	for i := range ndu {
		ndu[i] = make([]float64, p+1)
	}
	left := make([]float64, p+1)
	right := make([]float64, p+1)
	ndu[0][0] = 1
	for j := 1; j <= p; j++ {
		left[j] = u - kv[span+1-j]
		right[j] = kv[span+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			ndu[j][r] = right[r+1] + left[j-r] // lower triangle: knot differences
			temp := safeDiv(ndu[r][j-1], ndu[j][r])
			ndu[r][j] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		ndu[j][j] = saved
	}
	ders := make([][]float64, n+1)
	for k := range ders {
		ders[k] = make([]float64, p+1)
	}
	for j := 0; j <= p; j++ {
		ders[0][j] = ndu[j][p]
	}
	a := [2][]float64{make([]float64, p+1), make([]float64, p+1)}
	for r := 0; r <= p; r++ {
		s1, s2 := 0, 1
		a[0][0] = 1
		for k := 1; k <= n && k <= p; k++ {
			d := 0.0
			rk, pk := r-k, p-k
			if r >= k {
				a[s2][0] = safeDiv(a[s1][0], ndu[pk+1][rk])
				d = a[s2][0] * ndu[rk][pk]
			}
			j1, j2 := 1, k-1
			if rk < -1 {
				j1 = -rk
			}
			if r-1 > pk {
				j2 = p - r
			}
			for j := j1; j <= j2; j++ {
				a[s2][j] = safeDiv(a[s1][j]-a[s1][j-1], ndu[pk+1][rk+j])
				d += a[s2][j] * ndu[rk+j][pk]
			}
			if r <= pk {
				a[s2][k] = safeDiv(-a[s1][k-1], ndu[pk+1][r])
				d += a[s2][k] * ndu[r][pk]
			}
			ders[k][r] = d
			s1, s2 = s2, s1
		}
	}
	factor := float64(p)
	for k := 1; k <= n && k <= p; k++ {
		for j := 0; j <= p; j++ {
			ders[k][j] *= factor
		}
		factor *= float64(p - k)
	}
	return ders
}

// safeDiv returns a/b, or 0 for b = 0 (zero-length knot span).
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// binomial returns the binomial coefficient (n k).
func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	b := 1.0
	for i := 1; i <= k; i++ {
		b = b * float64(n-k+i) / float64(i)
	}
	return b
}
