package nurbs

import (
	"fmt"
	"math"

	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r3"
)

// homog is a control point in homogeneous coordinates (w·x, w·y, w·z, w).
type homog struct {
	p r3.Vec
	w float64
}

func lift(p r3.Vec, w float64) homog {
	return homog{p: r3.Scale(w, p), w: w}
}

func (h homog) scale(f float64) homog {
	return homog{p: r3.Scale(f, h.p), w: f * h.w}
}

func (h homog) add(o homog) homog {
	return homog{p: r3.Add(h.p, o.p), w: h.w + o.w}
}

// lerp returns (1-alpha)·h + alpha·o.
func (h homog) lerp(o homog, alpha float64) homog {
	return h.scale(1 - alpha).add(o.scale(alpha))
}

func (h homog) project() (r3.Vec, error) {
	if h.w == 0 || !tessel.IsFinite(h.w) {
		return r3.Vec{}, fmt.Errorf("%w: homogeneous weight %g", ErrNonFinite, h.w)
	}
	p := r3.Scale(1/h.w, h.p)
	if !tessel.Finite3(p) {
		return r3.Vec{}, fmt.Errorf("%w: point %v", ErrNonFinite, p)
	}
	return p, nil
}

// deBoor evaluates the curve segment of the given span at u from the
// degree+1 homogeneous points d, which are overwritten. Zero-length spans
// contribute with alpha = 0.
func deBoor(kv KnotVector, degree, span int, u float64, d []homog) homog {
	p := degree
	for r := 1; r <= p; r++ {
		for j := p; j >= r; j-- {
			i := j + span - p
			alpha := safeDiv(u-kv[i], kv[i+p-r+1]-kv[i])
			d[j] = d[j-1].lerp(d[j], alpha)
		}
	}
	return d[p]
}

// Curve is a B-spline curve, rational if weights are given.
type Curve struct {
	Degree  int
	Knots   KnotVector
	Control []r3.Vec
	Weights []float64 // nil for a non-rational curve
}

// NewCurve creates a curve and validates it.
func NewCurve(degree int, knots KnotVector, control []r3.Vec, weights []float64) (*Curve, error) {
	c := &Curve{Degree: degree, Knots: knots, Control: control, Weights: weights}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the consistency of degree, knots, control points and
// weights.
func (c *Curve) Validate() error {
	if len(c.Control) == 0 {
		return ErrNoControlPoints
	}
	if err := c.Knots.Validate(c.Degree, len(c.Control)); err != nil {
		return err
	}
	for i, p := range c.Control {
		if !tessel.Finite3(p) {
			return fmt.Errorf("%w: control point %d", ErrNonFinite, i)
		}
	}
	if c.Weights != nil {
		if len(c.Weights) != len(c.Control) {
			return fmt.Errorf("%w: %d weights for %d control points", ErrWeight, len(c.Weights), len(c.Control))
		}
		for i, w := range c.Weights {
			if !(w > 0) || !tessel.IsFinite(w) {
				return fmt.Errorf("%w: weight %d is %g", ErrWeight, i, w)
			}
		}
	}
	return nil
}

// IsRational is a predicate: does the curve carry weights?
func (c *Curve) IsRational() bool {
	return c.Weights != nil
}

// Domain returns the parameter range of the curve.
func (c *Curve) Domain() (float64, float64) {
	return c.Knots.Domain(c.Degree)
}

func (c *Curve) weight(i int) float64 {
	if c.Weights == nil {
		return 1
	}
	return c.Weights[i]
}

func (c *Curve) clamp(t float64) (float64, error) {
	if math.IsNaN(t) {
		return 0, fmt.Errorf("%w: parameter is NaN", ErrNonFinite)
	}
	lo, hi := c.Domain()
	return math.Max(lo, math.Min(hi, t)), nil
}

// Evaluate computes the point of the curve at parameter t, using de Boor's
// algorithm in homogeneous coordinates. t is clamped to the domain.
func (c *Curve) Evaluate(t float64) (r3.Vec, error) {
	t, err := c.clamp(t)
	if err != nil {
		return r3.Vec{}, err
	}
	p := c.Degree
	span := c.Knots.FindSpan(p, t)
	d := make([]homog, p+1)
	for j := 0; j <= p; j++ {
		i := span - p + j
		d[j] = lift(c.Control[i], c.weight(i))
	}
	return deBoor(c.Knots, p, span, t, d).project()
}

// Derivatives computes the point and the derivatives up to order n at t
// (A3.2 on the homogeneous control points, then A4.2 for rational curves).
// Element k of the result is the k-th derivative; element 0 is the point.
func (c *Curve) Derivatives(t float64, n int) ([]r3.Vec, error) {
	t, err := c.clamp(t)
	if err != nil {
		return nil, err
	}
	p := c.Degree
	span := c.Knots.FindSpan(p, t)
	nders := c.Knots.DersBasisFuncs(span, p, n, t)
	aders := make([]homog, n+1)
	for k := 0; k <= n && k <= p; k++ {
		for j := 0; j <= p; j++ {
			i := span - p + j
			aders[k] = aders[k].add(lift(c.Control[i], c.weight(i)).scale(nders[k][j]))
		}
	}
	if aders[0].w == 0 || !tessel.IsFinite(aders[0].w) {
		return nil, fmt.Errorf("%w: weight at t=%g", ErrNonFinite, t)
	}
	ck := make([]r3.Vec, n+1)
	for k := 0; k <= n; k++ {
		v := aders[k].p
		for i := 1; i <= k; i++ {
			v = r3.Sub(v, r3.Scale(binomial(k, i)*aders[i].w, ck[k-i]))
		}
		ck[k] = r3.Scale(1/aders[0].w, v)
		if !tessel.Finite3(ck[k]) {
			return nil, fmt.Errorf("%w: derivative %d at t=%g", ErrNonFinite, k, t)
		}
	}
	return ck, nil
}

// maxSampleDepth limits the recursive bisection of Sample.
const maxSampleDepth = 16

// Sample approximates the curve by a polyline whose chord height does not
// exceed tol. Every distinct knot in the domain is a sample. It returns the
// sample points together with their parameters.
func (c *Curve) Sample(tol float64) ([]r3.Vec, []float64, error) {
	if !(tol > 0) {
		return nil, nil, fmt.Errorf("%w: sampling tolerance %g", tessel.ErrDegenerateInput, tol)
	}
	knots := c.Knots.Distinct(c.Degree)
	var params []float64
	var points []r3.Vec
	first, err := c.Evaluate(knots[0])
	if err != nil {
		return nil, nil, err
	}
	params, points = append(params, knots[0]), append(points, first)
	for s := 0; s+1 < len(knots); s++ {
		// start with degree+1 segments per span, so curved spans are
		// never mistaken for straight ones
		a, b := knots[s], knots[s+1]
		steps := c.Degree + 1
		pa := points[len(points)-1]
		for i := 1; i <= steps; i++ {
			t0 := a + (b-a)*float64(i-1)/float64(steps)
			t1 := a + (b-a)*float64(i)/float64(steps)
			if i == steps {
				t1 = b
			}
			pb, err := c.Evaluate(t1)
			if err != nil {
				return nil, nil, err
			}
			if err := c.refine(t0, t1, pa, pb, tol, 0, &params, &points); err != nil {
				return nil, nil, err
			}
			params, points = append(params, t1), append(points, pb)
			pa = pb
		}
	}
	tracer().Debugf("sampled curve of degree %d with %d points", c.Degree, len(points))
	return points, params, nil
}

// refine appends the interior samples of [t0,t1], in order.
func (c *Curve) refine(t0, t1 float64, p0, p1 r3.Vec, tol float64, depth int, params *[]float64, points *[]r3.Vec) error {
	if depth >= maxSampleDepth {
		return nil
	}
	tm := 0.5 * (t0 + t1)
	pm, err := c.Evaluate(tm)
	if err != nil {
		return err
	}
	if distanceToSegment(pm, p0, p1) <= tol {
		return nil
	}
	if err := c.refine(t0, tm, p0, pm, tol, depth+1, params, points); err != nil {
		return err
	}
	*params, *points = append(*params, tm), append(*points, pm)
	return c.refine(tm, t1, pm, p1, tol, depth+1, params, points)
}

// distanceToSegment returns the distance of p from the segment ab.
func distanceToSegment(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	l2 := r3.Dot(ab, ab)
	if l2 == 0 {
		return r3.Norm(r3.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, a), ab)/l2))
	return r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}
