package trim

import (
	"fmt"
	"math"

	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r2"
)

// Unwrapped is a loop made continuous across the seams of a periodic
// parameter domain.
type Unwrapped struct {
	Loop  Loop
	WrapU int // number of periods the loop winds around in u
	WrapV int // number of periods the loop winds around in v
}

// Unwrap removes jumps across periodic seams from a loop. A step between
// consecutive points which is longer than half a period is taken to be a
// jump and is undone by shifting the rest of the loop by whole periods. A
// period of 0 marks a direction as not periodic.
//
// For a loop which winds around the domain, the closing step from the last
// to the first point cannot be undone; its number of periods is reported
// as WrapU or WrapV.
func Unwrap(l Loop, pu, pv float64) Unwrapped {
	if len(l) == 0 {
		return Unwrapped{}
	}
	out := make(Loop, 1, len(l))
	out[0] = l[0]
	shift := tessel.Identity()
	for _, p := range l[1:] {
		q := shift.Transform(p)
		d := r2.Sub(q, out[len(out)-1])
		ku, kv := periods(d.X, pu), periods(d.Y, pv)
		if ku != 0 || kv != 0 {
			shift = shift.Combine(tessel.Translation(tessel.P2(-ku*pu, -kv*pv)))
			q = shift.Transform(p)
		}
		out = append(out, q)
	}
	d := r2.Sub(out[len(out)-1], out[0])
	return Unwrapped{
		Loop:  out,
		WrapU: int(periods(d.X, pu)),
		WrapV: int(periods(d.Y, pv)),
	}
}

// periods returns the number of whole periods closest to d, or 0 for a
// non-periodic direction.
func periods(d, period float64) float64 {
	if period <= 0 {
		return 0
	}
	return math.Round(d / period)
}

// CloseSeams prepares the trimming loops of a face on a periodic surface
// for triangulation. Valid loops inside the domain are kept as they are.
// Other loops which do not wind around the domain are unwrapped and
// shifted into the domain by whole periods. Loops which wind around once
// are cut at the seam; two of them with opposite directions are joined
// along the seam into one outer loop, a single one is closed along the edge
// of the domain on its left side. Other configurations, e.g.
// winding in both directions, are rejected with ErrSeam.
func CloseSeams(boundaries []Boundary, domain r2.Box, pu, pv float64) ([]Boundary, error) {
	if pu <= 0 && pv <= 0 {
		return boundaries, nil
	}
	var result []Boundary
	var wrapped []Unwrapped
	for i, b := range boundaries {
		if b.Loop.Validate() == nil && inside(b.Loop.Bounds(), domain, pu, pv) {
			result = append(result, b)
			continue
		}
		uw := Unwrap(b.Loop, pu, pv)
		switch {
		case uw.WrapU == 0 && uw.WrapV == 0:
			result = append(result, Boundary{Loop: shiftInto(uw.Loop, domain, pu, pv), Role: b.Role})
		case uw.WrapU != 0 && uw.WrapV != 0, abs(uw.WrapU) > 1, abs(uw.WrapV) > 1:
			return nil, fmt.Errorf("%w: loop %d winds (%d,%d) times", ErrSeam, i, uw.WrapU, uw.WrapV)
		default:
			wrapped = append(wrapped, uw)
		}
	}
	if len(wrapped) == 0 {
		return result, nil
	}
	for _, b := range result {
		if b.Role == Outer {
			return nil, fmt.Errorf("%w: outer loop together with loops around the seam", ErrSeam)
		}
	}
	var outer Loop
	switch len(wrapped) {
	case 1:
		outer = closeAlongEdge(wrapped[0], domain, pu, pv)
	case 2:
		a, b := wrapped[0], wrapped[1]
		if axisOf(a) != axisOf(b) || a.WrapU+b.WrapU != 0 || a.WrapV+b.WrapV != 0 {
			return nil, fmt.Errorf("%w: loops around the seam do not match", ErrSeam)
		}
		outer = append(cutAtSeam(a, domain, pu, pv), cutAtSeam(b, domain, pu, pv)...)
	default:
		return nil, fmt.Errorf("%w: %d loops around the seam", ErrSeam, len(wrapped))
	}
	outer = outer.Dedup(0)
	tracer().Debugf("closed %d loops around the seam into an outer loop of %d points", len(wrapped), len(outer))
	return append([]Boundary{{Loop: outer, Role: Outer}}, result...), nil
}

// inside is a predicate: is box b within the domain, up to a small
// fraction of the periods?
func inside(b, domain r2.Box, pu, pv float64) bool {
	eps := 1e-9 * math.Max(math.Max(pu, pv), 1)
	return b.Min.X >= domain.Min.X-eps && b.Max.X <= domain.Max.X+eps &&
		b.Min.Y >= domain.Min.Y-eps && b.Max.Y <= domain.Max.Y+eps
}

// shiftInto moves a loop by whole periods so that the centre of its
// bounding box lies in the domain.
func shiftInto(l Loop, domain r2.Box, pu, pv float64) Loop {
	b := l.Bounds()
	c := r2.Scale(0.5, r2.Add(b.Min, b.Max))
	var d tessel.Point2
	if pu > 0 {
		d.X = -math.Floor((c.X-domain.Min.X)/pu) * pu
	}
	if pv > 0 {
		d.Y = -math.Floor((c.Y-domain.Min.Y)/pv) * pv
	}
	if d.X == 0 && d.Y == 0 {
		return l
	}
	return l.Transform(tessel.Translation(d))
}

// axisOf returns 0 for a loop winding around in u and 1 for v.
func axisOf(uw Unwrapped) int {
	if uw.WrapU != 0 {
		return 0
	}
	return 1
}

func coord(p tessel.Point2, axis int) float64 {
	if axis == 0 {
		return p.X
	}
	return p.Y
}

func withCoord(p tessel.Point2, axis int, x float64) tessel.Point2 {
	if axis == 0 {
		p.X = x
	} else {
		p.Y = x
	}
	return p
}

// cutAtSeam turns a loop winding once around the domain into an open
// polyline which starts on one seam and ends on the other: at the domain
// minimum if it runs in positive direction, else at the maximum.
func cutAtSeam(uw Unwrapped, domain r2.Box, pu, pv float64) Loop {
	axis := axisOf(uw)
	period, wrap := pu, float64(uw.WrapU)
	lo, hi := domain.Min.X, domain.Max.X
	if axis == 1 {
		period, wrap = pv, float64(uw.WrapV)
		lo, hi = domain.Min.Y, domain.Max.Y
	}
	step := withCoord(tessel.Point2{}, axis, wrap*period)
	pts := append(append(Loop(nil), uw.Loop...), r2.Add(uw.Loop[0], step))
	start, end := lo, lo+period
	if wrap < 0 {
		start, end = hi, hi-period
	}
	// the first value congruent to start along the way
	x0 := coord(pts[0], axis)
	c := start + math.Ceil((x0-start)/period)*period
	if wrap < 0 {
		c = start + math.Floor((x0-start)/period)*period
	}
	i := 0
	for ; i+1 < len(pts); i++ {
		a, b := coord(pts[i], axis), coord(pts[i+1], axis)
		if a == c || (a-c)*(b-c) < 0 {
			break
		}
	}
	if i+1 == len(pts) { // c is the end point
		i = 0
	}
	q := pts[i]
	if a, b := coord(pts[i], axis), coord(pts[i+1], axis); a != c {
		t := (c - a) / (b - a)
		q = r2.Add(pts[i], r2.Scale(t, r2.Sub(pts[i+1], pts[i])))
	}
	poly := Loop{q}
	poly = append(poly, pts[i+1:]...)
	for _, p := range pts[1 : i+1] {
		poly = append(poly, r2.Add(p, step))
	}
	poly = append(poly, r2.Add(q, step))
	// move onto the domain, with exact seam coordinates at both ends
	shift := withCoord(tessel.Point2{}, axis, start-c)
	poly = poly.Transform(tessel.Translation(shift))
	poly[0] = withCoord(poly[0], axis, start)
	poly[len(poly)-1] = withCoord(poly[len(poly)-1], axis, end)
	return poly.Dedup(0)
}

// closeAlongEdge closes a single loop winding around the domain along the
// domain edge on its left side.
func closeAlongEdge(uw Unwrapped, domain r2.Box, pu, pv float64) Loop {
	poly := cutAtSeam(uw, domain, pu, pv)
	first, last := poly[0], poly[len(poly)-1]
	lo, hi := domain.Min, domain.Max
	switch {
	case uw.WrapU > 0: // running in +u, interior towards +v
		poly = append(poly, tessel.P2(last.X, hi.Y), tessel.P2(first.X, hi.Y))
	case uw.WrapU < 0:
		poly = append(poly, tessel.P2(last.X, lo.Y), tessel.P2(first.X, lo.Y))
	case uw.WrapV > 0: // running in +v, interior towards -u
		poly = append(poly, tessel.P2(lo.X, last.Y), tessel.P2(lo.X, first.Y))
	default:
		poly = append(poly, tessel.P2(hi.X, last.Y), tessel.P2(hi.X, first.Y))
	}
	return poly
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
