/*
Package tessel converts trimmed parametric surfaces into triangle meshes.

The root package holds the numeric basics shared by all sub-packages:
epsilon comparisons, the point types for parameter space and model space,
affine transforms of parameter space, and the error kinds of the engine.

Sub-packages, leaves first:

	predicates   exact orientation and in-circle tests
	cdt          constrained Delaunay triangulation
	nurbs        B-spline/NURBS curve and surface evaluation
	analytic     planes, cylinders and spheres
	trim         trim loops in parameter space
	mesh         per-face fragments, stitching, the final mesh
	tessellate   the per-face pipeline and the entry point

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package tessel

import (
	"errors"
	"fmt"
	"math"

	"github.com/npillmayer/schuko/tracing"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// tracer writes to trace with key 'tessel'
func tracer() tracing.Trace {
	return tracing.Select("tessel")
}

// === Numeric Data Type =====================================================

// Epsilon : numbers below ε are considered 0
var Epsilon float64 = 0.0000001

// Is0 is a predicate: is n = 0 ?
func Is0(n float64) bool {
	return math.Abs(n) <= Epsilon
}

// Zap makes n = 0 if n "means" to be zero
func Zap(n float64) float64 {
	if Is0(n) {
		n = 0
	}
	return n
}

// IsFinite is a predicate: is n neither NaN nor ±Inf ?
func IsFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// === Points ================================================================

// Point2 is a point in the parameter space (u,v) of a surface.
type Point2 = r2.Vec

// Point3 is a point in model space.
type Point3 = r3.Vec

// P2 is a quick notation for contructing a parameter space point.
func P2(u, v float64) Point2 {
	return Point2{X: u, Y: v}
}

// P3 is a quick notation for contructing a model space point.
func P3(x, y, z float64) Point3 {
	return Point3{X: x, Y: y, Z: z}
}

// Finite2 checks that both coordinates of p are finite.
func Finite2(p Point2) bool {
	return IsFinite(p.X) && IsFinite(p.Y)
}

// Finite3 checks that all coordinates of p are finite.
func Finite3(p Point3) bool {
	return IsFinite(p.X) && IsFinite(p.Y) && IsFinite(p.Z)
}

// PointString is a pretty Stringer for parameter space points.
func PointString(p Point2) string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// SurfacePoint is the result of evaluating a surface at a parameter
// position: the point in model space, the first partial derivatives and the
// unit normal DU×DV. Degenerate is set where the normal is undefined, e.g.
// at the pole of a sphere; Normal is the zero vector then.
type SurfacePoint struct {
	Point      Point3
	DU, DV     Point3
	Normal     Point3
	Degenerate bool
}

// NewSurfacePoint assembles a SurfacePoint from a point and the partial
// derivatives, computing the normal. A normal is considered undefined if
// |DU×DV| is negligible compared to |DU|·|DV|.
func NewSurfacePoint(p, du, dv Point3) SurfacePoint {
	sp := SurfacePoint{Point: p, DU: du, DV: dv}
	n := r3.Cross(du, dv)
	length := r3.Norm(n)
	scale := r3.Norm(du) * r3.Norm(dv)
	if length == 0 || !IsFinite(length) || length <= 1e-12*scale {
		sp.Degenerate = true
		return sp
	}
	sp.Normal = r3.Scale(1/length, n)
	return sp
}

// === Affine Transformations ================================================

// AT is an affine transform of parameter space, a matrix type used for
// shifting trim loops across periodic seams.
type AT []float64 // a 3x3 matrix, flattened by rows

// Internal constructor. Clients implicitely use this as a starting point for
// transform combinations.
func newAT() AT {
	m := make([]float64, 9)
	return m
}

func (m AT) set(row, col int, value float64) {
	m[row*3+col] = value
}

func (m AT) row(row int) []float64 {
	return m[row*3 : (row+1)*3]
}

func (m AT) col(col int) []float64 {
	c := make([]float64, 3)
	c[0] = m[col]
	c[1] = m[3+col]
	c[2] = m[6+col]
	return c
}

// Identity transform. Will transform a point onto itself.
func Identity() AT {
	m := newAT()
	m.set(0, 0, 1.0)
	m.set(1, 1, 1.0)
	m.set(2, 2, 1.0)
	return m
}

// Translation transform. Translate a point by (du,dv).
func Translation(d Point2) AT {
	m := Identity()
	m.set(0, 2, d.X)
	m.set(1, 2, d.Y)
	return m
}

// IsIdentity is a predicate: does m leave every point unchanged?
func (m AT) IsIdentity() bool {
	id := Identity()
	for i := range id {
		if !Is0(m[i] - id[i]) {
			return false
		}
	}
	return true
}

// Debug Stringer for an affine transform.
func (m AT) String() string {
	s := fmt.Sprintf("[%g,%g,%g|%g,%g,%g|%g,%g,%g]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
	return s
}

// v1 × v2, v.n = [a,b,c]
func dotProd(vec1, vec2 []float64) float64 {
	p1 := vec1[0] * vec2[0]
	p2 := vec1[1] * vec2[1]
	p3 := vec1[2] * vec2[2]
	return p1 + p2 + p3
}

// Combine 2 affine transformation to a new one. Returns a new transformation
// without changing the argument(s). The result applies m first, then n.
func (m AT) Combine(n AT) AT {
	o := newAT()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			o.set(row, col, dotProd(n.row(row), m.col(col)))
		}
	}
	return o
}

func (m AT) multiplyVector(v []float64) []float64 {
	c := make([]float64, 3)
	c[0] = dotProd(m.row(0), v)
	c[1] = dotProd(m.row(1), v)
	c[2] = dotProd(m.row(2), v)
	return c
}

// Transform a parameter space point. The argument is unchanged and a new
// point is returned.
func (m AT) Transform(p Point2) Point2 {
	c := []float64{p.X, p.Y, 1.0}
	c = m.multiplyVector(c)
	return P2(c[0], c[1])
}

// === Error Kinds ===========================================================

var (
	// ErrDegenerateInput indicates malformed input geometry: a self-intersecting
	// or unclosed trim loop, or a control net without control points.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrNumericDegeneracy indicates an evaluation at an unsupported knot
	// degeneracy or a computation which produced non-finite values.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
	// ErrToleranceConflict indicates an ambiguous match while stitching.
	// It is recorded, never returned as a failure.
	ErrToleranceConflict = errors.New("tolerance conflict")
)

// Kind classifies errors of the engine.
type Kind int8

// Kinds of errors, see ErrDegenerateInput etc.
const (
	KindNone Kind = iota
	KindDegenerateInput
	KindNumericDegeneracy
	KindToleranceConflict
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDegenerateInput:
		return "DegenerateInput"
	case KindNumericDegeneracy:
		return "NumericDegeneracy"
	case KindToleranceConflict:
		return "ToleranceConflict"
	}
	return "Other"
}

// KindOf maps an error to its kind. Unknown errors are of kind KindOther.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDegenerateInput):
		return KindDegenerateInput
	case errors.Is(err, ErrNumericDegeneracy):
		return KindNumericDegeneracy
	case errors.Is(err, ErrToleranceConflict):
		return KindToleranceConflict
	}
	tracer().Debugf("unclassified error: %v", err)
	return KindOther
}
