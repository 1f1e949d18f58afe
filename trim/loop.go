/*
Package trim handles trimming loops in the parameter space of a surface.

A Loop is a closed polygon in (u,v). The first point is not repeated at
the end. Outer loops run counter-clockwise and holes clockwise; Normalize
re-winds a boundary to the convention of its role. Loops are built either
point by point,

	l := trim.NullLoop().Knot(p0).Knot(p1).Knot(p2).Cycle()

or by sampling a chain of 2D curves with FromCurves.

Loops on periodic surfaces may jump across the seam of the parameter
domain. Unwrap makes them continuous and CloseSeams joins loops which wrap
around a full period into simple loops inside the domain.

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package trim

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/predicates"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
)

// tracer writes to trace with key 'tessel.trim'
func tracer() tracing.Trace {
	return tracing.Select("tessel.trim")
}

// Errors reported for malformed loops.
var (
	ErrTooFewPoints  = fmt.Errorf("%w: loop has fewer than 3 points", tessel.ErrDegenerateInput)
	ErrZeroArea      = fmt.Errorf("%w: loop has no area", tessel.ErrDegenerateInput)
	ErrSelfIntersect = fmt.Errorf("%w: loop intersects itself", tessel.ErrDegenerateInput)
	ErrOpenLoop      = fmt.Errorf("%w: curve chain is not closed", tessel.ErrDegenerateInput)
	ErrSeam          = fmt.Errorf("%w: unsupported loop configuration across a periodic seam", tessel.ErrDegenerateInput)
	ErrNoOuterLoop   = fmt.Errorf("%w: no outer loop", tessel.ErrDegenerateInput)
)

// Loop is a closed polygon in parameter space.
type Loop []tessel.Point2

// NullLoop is an empty loop, the starting point of the builder.
func NullLoop() Loop {
	return Loop{}
}

// Knot appends a point.
func (l Loop) Knot(p tessel.Point2) Loop {
	return append(l, p)
}

// Cycle closes the loop. A last point equal to the first one is dropped.
func (l Loop) Cycle() Loop {
	if len(l) > 1 && l[0] == l[len(l)-1] {
		return l[:len(l)-1]
	}
	return l
}

// Box creates a counter-clockwise rectangular loop with opposite corners a
// and b.
func Box(a, b tessel.Point2) Loop {
	box := r2.Box{Min: a, Max: b}.Canon()
	return NullLoop().
		Knot(box.Min).
		Knot(tessel.P2(box.Max.X, box.Min.Y)).
		Knot(box.Max).
		Knot(tessel.P2(box.Min.X, box.Max.Y)).
		Cycle()
}

// N returns the number of points.
func (l Loop) N() int {
	return len(l)
}

// Edge returns the i-th edge, from point i to point i+1 (cyclic).
func (l Loop) Edge(i int) (tessel.Point2, tessel.Point2) {
	return l[i], l[(i+1)%len(l)]
}

func (l Loop) String() string {
	var b bytes.Buffer
	b.WriteString("<loop")
	for _, p := range l {
		b.WriteString(" ")
		b.WriteString(tessel.PointString(p))
	}
	b.WriteString(" cycle>")
	return b.String()
}

// ring converts the loop to a closed orb ring.
func (l Loop) ring() orb.Ring {
	r := make(orb.Ring, 0, len(l)+1)
	for _, p := range l {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(l) > 0 {
		r = append(r, orb.Point{l[0].X, l[0].Y})
	}
	return r
}

// Orientation returns Left for a counter-clockwise loop, Right for a
// clockwise loop and Collinear for a loop without area.
func (l Loop) Orientation() predicates.Orientation {
	if len(l) < 3 {
		return predicates.Collinear
	}
	switch l.ring().Orientation() {
	case orb.CCW:
		return predicates.Left
	case orb.CW:
		return predicates.Right
	}
	return predicates.Collinear
}

// SignedArea returns the area of the loop, positive for counter-clockwise
// loops.
func (l Loop) SignedArea() float64 {
	a := 0.0
	for i := range l {
		p, q := l.Edge(i)
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// Reverse returns the loop with reversed winding, starting at the same
// point.
func (l Loop) Reverse() Loop {
	r := make(Loop, len(l))
	for i := range l {
		r[i] = l[(len(l)-i)%len(l)]
	}
	return r
}

// Bounds returns the axis-aligned bounding box of the loop.
func (l Loop) Bounds() r2.Box {
	if len(l) == 0 {
		return r2.Box{}
	}
	b := l.ring().Bound()
	return r2.Box{
		Min: tessel.P2(b.Min[0], b.Min[1]),
		Max: tessel.P2(b.Max[0], b.Max[1]),
	}
}

// Transform applies an affine transform to every point.
func (l Loop) Transform(m tessel.AT) Loop {
	r := make(Loop, len(l))
	if m.IsIdentity() {
		copy(r, l)
		return r
	}
	for i, p := range l {
		r[i] = m.Transform(p)
	}
	return r
}

// Dedup removes consecutive points closer than tol to their predecessor,
// including the closing pair.
func (l Loop) Dedup(tol float64) Loop {
	if len(l) == 0 {
		return l
	}
	r := Loop{l[0]}
	for _, p := range l[1:] {
		if r2.Norm(r2.Sub(p, r[len(r)-1])) > tol {
			r = append(r, p)
		}
	}
	for len(r) > 1 && r2.Norm(r2.Sub(r[0], r[len(r)-1])) <= tol {
		r = r[:len(r)-1]
	}
	return r
}

// Validate checks that the loop has at least 3 points, encloses an area
// and does not intersect itself.
func (l Loop) Validate() error {
	if len(l) < 3 {
		return fmt.Errorf("%w: %d points", ErrTooFewPoints, len(l))
	}
	if l.Orientation() == predicates.Collinear {
		return ErrZeroArea
	}
	if l.SelfIntersects() {
		return ErrSelfIntersect
	}
	return nil
}

// SelfIntersects is a predicate: does any pair of edges of the loop
// intersect, other than adjacent edges at their shared point? The test is
// exact. Edges are pruned with a sweep over their x-extents.
func (l Loop) SelfIntersects() bool {
	n := len(l)
	if n < 3 {
		return false
	}
	type span struct {
		i          int
		minX, maxX float64
	}
	spans := make([]span, n)
	for i := range l {
		p, q := l.Edge(i)
		lo, hi := p.X, q.X
		if lo > hi {
			lo, hi = hi, lo
		}
		spans[i] = span{i, lo, hi}
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].minX < spans[b].minX })
	for a := range spans {
		for b := a + 1; b < n && spans[b].minX <= spans[a].maxX; b++ {
			if l.edgesIntersect(spans[a].i, spans[b].i) {
				tracer().Debugf("loop edges %d and %d intersect", spans[a].i, spans[b].i)
				return true
			}
		}
	}
	return false
}

func (l Loop) edgesIntersect(i, j int) bool {
	n := len(l)
	if i > j {
		i, j = j, i
	}
	p0, p1 := l.Edge(i)
	q0, q1 := l.Edge(j)
	switch {
	case j == i+1: // p1 == q0
		return backtracks(p0, p1, q1)
	case i == 0 && j == n-1: // q1 == p0
		return backtracks(q0, q1, p1)
	}
	return predicates.SegmentsIntersect(p0, p1, q0, q1)
}

// backtracks is a predicate: does the path a→b→c turn back on itself, so
// that the edges ab and bc overlap?
func backtracks(a, b, c tessel.Point2) bool {
	if predicates.Orient(a, b, c) != predicates.Collinear {
		return false
	}
	return predicates.OnSegment(c, a, b) || predicates.OnSegment(a, b, c) || a == c
}

// distanceToSegment returns the distance of p from the segment ab.
func distanceToSegment(p, a, b tessel.Point2) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, a), ab)/l2))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}
