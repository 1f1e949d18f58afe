package trim

import (
	"fmt"
	"math"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/predicates"
	"gonum.org/v1/gonum/spatial/r2"
)

// Role tells whether a loop bounds a face from the outside or cuts a hole
// into it.
type Role int8

// Roles of trimming loops.
const (
	Outer Role = iota
	Hole
)

func (r Role) String() string {
	if r == Hole {
		return "hole"
	}
	return "outer"
}

// Boundary is a trimming loop together with its role.
type Boundary struct {
	Loop Loop
	Role Role
}

// Normalize returns the boundary with the loop re-wound to the convention
// of its role: counter-clockwise for outer loops, clockwise for holes.
func (b Boundary) Normalize() Boundary {
	want := predicates.Left
	if b.Role == Hole {
		want = predicates.Right
	}
	if o := b.Loop.Orientation(); o != want && o != predicates.Collinear {
		return Boundary{Loop: b.Loop.Reverse(), Role: b.Role}
	}
	return b
}

// Region is the trimmed area of a face: one outer loop minus any number of
// holes. All loops are normalized.
type Region struct {
	Outer   Loop
	Holes   []Loop
	contour []polyclip.Contour // outer contour first
}

// NewRegion creates a region from a set of boundaries. Exactly one of them
// must be an outer loop. Every loop is validated and normalized.
func NewRegion(boundaries []Boundary) (*Region, error) {
	r := &Region{}
	found := false
	for i, b := range boundaries {
		if err := b.Loop.Validate(); err != nil {
			return nil, fmt.Errorf("loop %d (%s): %w", i, b.Role, err)
		}
		b = b.Normalize()
		if b.Role == Outer {
			if found {
				return nil, fmt.Errorf("%w: loop %d is a second outer loop", tessel.ErrDegenerateInput, i)
			}
			r.Outer, found = b.Loop, true
		} else {
			r.Holes = append(r.Holes, b.Loop)
		}
	}
	if !found {
		return nil, ErrNoOuterLoop
	}
	r.contour = append(r.contour, contourOf(r.Outer))
	for _, h := range r.Holes {
		r.contour = append(r.contour, contourOf(h))
	}
	return r, nil
}

func contourOf(l Loop) polyclip.Contour {
	c := make(polyclip.Contour, 0, len(l))
	for _, p := range l {
		c = append(c, polyclip.Point{X: p.X, Y: p.Y})
	}
	return c
}

// Loops returns all loops of the region, the outer loop first.
func (r *Region) Loops() []Loop {
	return append([]Loop{r.Outer}, r.Holes...)
}

// Bounds returns the bounding box of the outer loop.
func (r *Region) Bounds() r2.Box {
	bb := polyclip.Polygon{r.contour[0]}.BoundingBox()
	return r2.Box{
		Min: tessel.P2(bb.Min.X, bb.Min.Y),
		Max: tessel.P2(bb.Max.X, bb.Max.Y),
	}
}

// Contains is a predicate: is p inside the outer loop and outside of every
// hole? Points on a loop may be reported either way.
func (r *Region) Contains(p tessel.Point2) bool {
	pt := polyclip.Point{X: p.X, Y: p.Y}
	if !r.contour[0].Contains(pt) {
		return false
	}
	for _, h := range r.contour[1:] {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

// Distance returns the distance of p to the nearest loop edge.
func (r *Region) Distance(p tessel.Point2) float64 {
	d := math.Inf(1)
	for _, l := range r.Loops() {
		for i := range l {
			a, b := l.Edge(i)
			d = math.Min(d, distanceToSegment(p, a, b))
		}
	}
	return d
}

// Area returns the area of the region.
func (r *Region) Area() float64 {
	a := r.Outer.SignedArea()
	for _, h := range r.Holes {
		a += h.SignedArea() // negative for clockwise holes
	}
	return a
}
