package trim

import (
	"fmt"
	"math"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/nurbs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// FromCurves builds a loop from a chain of curves in parameter space
// (pcurves). Only the x and y coordinates of the curves are used. Each
// curve is sampled with chord height tol. The end of every curve must meet
// the start of the next one, and the end of the last curve the start of
// the first one, within gap; otherwise ErrOpenLoop is returned.
func FromCurves(curves []*nurbs.Curve, tol, gap float64) (Loop, error) {
	return fromCurves(curves, tol, gap, 0, 0)
}

// FromPeriodicCurves is like FromCurves for the parameter space of a surface
// with periods pu and pv (0 for an open direction). Curve ends may meet
// modulo the periods, and the result is sampled densely enough for Unwrap
// to tell steps from jumps across the seam.
func FromPeriodicCurves(curves []*nurbs.Curve, tol, gap, pu, pv float64) (Loop, error) {
	return fromCurves(curves, tol, gap, pu, pv)
}

func fromCurves(curves []*nurbs.Curve, tol, gap, pu, pv float64) (Loop, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("%w: no curves", ErrTooFewPoints)
	}
	loop := NullLoop()
	for i, c := range curves {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("pcurve %d: %w", i, err)
		}
		pts, _, err := c.Sample(tol)
		if err != nil {
			return nil, fmt.Errorf("pcurve %d: %w", i, err)
		}
		seg := NullLoop()
		for _, p := range pts {
			seg = seg.Knot(flatten(p))
		}
		if step := minPeriod(pu, pv) / 8; step > 0 {
			seg = densify(seg, step)
		}
		if len(loop) > 0 {
			if d := gapModulo(seg[0], loop[len(loop)-1], pu, pv); d > gap {
				return nil, fmt.Errorf("%w: gap of %g between pcurve %d and %d", ErrOpenLoop, d, i-1, i)
			}
			seg = seg[1:] // shared with the previous curve
		}
		loop = append(loop, seg...)
	}
	if d := gapModulo(loop[0], loop[len(loop)-1], pu, pv); d > gap {
		return nil, fmt.Errorf("%w: gap of %g between last and first pcurve", ErrOpenLoop, d)
	}
	loop = loop[:len(loop)-1].Cycle()
	tracer().Debugf("loop from %d pcurves has %d points", len(curves), len(loop))
	return loop, nil
}

func flatten(p r3.Vec) tessel.Point2 {
	return tessel.P2(p.X, p.Y)
}

// gapModulo returns the distance between a and b, ignoring whole periods.
func gapModulo(a, b tessel.Point2, pu, pv float64) float64 {
	d := r2.Sub(a, b)
	d.X -= periods(d.X, pu) * pu
	d.Y -= periods(d.Y, pv) * pv
	return r2.Norm(d)
}

func minPeriod(pu, pv float64) float64 {
	switch {
	case pu > 0 && pv > 0:
		return math.Min(pu, pv)
	case pu > 0:
		return pu
	}
	return math.Max(pv, 0)
}

// densify inserts points on the edges of an open polyline which are longer
// than step.
func densify(l Loop, step float64) Loop {
	r := NullLoop()
	for i := 0; i+1 < len(l); i++ {
		a, b := l[i], l[i+1]
		r = r.Knot(a)
		n := int(math.Ceil(r2.Norm(r2.Sub(b, a))/step - 1e-9))
		for k := 1; k < n; k++ {
			r = r.Knot(r2.Add(a, r2.Scale(float64(k)/float64(n), r2.Sub(b, a))))
		}
	}
	return r.Knot(l[len(l)-1])
}
