package cdt

import (
	"errors"
	"fmt"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/predicates"
	"gonum.org/v1/gonum/spatial/r2"
)

// maxConstraintDepth limits the recursion of constraint splitting.
const maxConstraintDepth = 32

// InsertConstraint forces the segment between vertices a and b to be an
// edge of the triangulation. Edges crossing the segment are flipped away
// (after S. W. Sloan, "A fast algorithm for generating constrained Delaunay
// triangulations", 1993) and the Delaunay property is restored for all
// edges which are not constraints.
//
// A vertex lying exactly on the segment splits the constraint into two
// constraint edges. A segment crossing an existing constraint edge is
// rejected with ErrIntersectingConstraints. If flipping gets stuck, the
// intersection point of the segment with a crossing edge is inserted and
// the constraint is split there.
func (t *Triangulation) InsertConstraint(a, b int) error {
	if a < FirstVertex || a >= len(t.verts) || b < FirstVertex || b >= len(t.verts) {
		return fmt.Errorf("%w: constraint (%d,%d)", ErrInvalidVertex, a, b)
	}
	if a == b {
		return ErrDegenerateConstraint
	}
	return t.insertSegment(a, b, 0)
}

func (t *Triangulation) insertSegment(a, b int, depth int) error {
	if depth > maxConstraintDepth {
		return fmt.Errorf("%w: (%d,%d) after %d splits", ErrConstraintFailed, a, b, depth)
	}
	if ti, k, ok := t.findEdge(a, b); ok {
		t.setConstraint(ti, k, true)
		return nil
	}
	if ti, k, ok := t.findEdge(b, a); ok {
		t.setConstraint(ti, k, true)
		return nil
	}
	crossed, mid, err := t.traceSegment(a, b)
	if err != nil {
		return err
	}
	if mid != NoNeighbor {
		tracer().Debugf("constraint (%d,%d) runs through vertex %d", a, b, mid)
		if err := t.insertSegment(a, mid, depth+1); err != nil {
			return err
		}
		return t.insertSegment(mid, b, depth+1)
	}
	for _, e := range crossed {
		if t.IsConstrained(e.A, e.B) {
			return fmt.Errorf("%w: (%d,%d) crosses (%d,%d)", ErrIntersectingConstraints, a, b, e.A, e.B)
		}
	}
	created, stuck := t.removeCrossings(a, b, crossed)
	if stuck != nil {
		return t.splitConstraint(a, b, *stuck, depth)
	}
	ti, k, ok := t.findEdge(a, b)
	if !ok {
		if ti, k, ok = t.findEdge(b, a); !ok {
			return fmt.Errorf("%w: (%d,%d) missing after flips", ErrConstraintFailed, a, b)
		}
	}
	t.setConstraint(ti, k, true)
	t.restoreDelaunay(created)
	return nil
}

// traceSegment walks from vertex a towards vertex b and collects the edges
// crossed by the open segment ab. If a vertex lies exactly on the segment,
// the walk stops and that vertex is returned instead.
func (t *Triangulation) traceSegment(a, b int) ([]Edge, int, error) {
	pa, pb := t.verts[a], t.verts[b]
	var left, right int // current crossed edge: left and right of a→b
	found := false
	for _, ti := range t.star(a) {
		i := t.vertexIndex(ti, a)
		v1, v2 := t.tris[ti].v[(i+1)%3], t.tris[ti].v[(i+2)%3]
		if predicates.OnSegment(t.verts[v1], pa, pb) {
			return nil, v1, nil
		}
		if predicates.OnSegment(t.verts[v2], pa, pb) {
			return nil, v2, nil
		}
		if predicates.Orient(pa, t.verts[v1], pb) == predicates.Left &&
			predicates.Orient(pa, t.verts[v2], pb) == predicates.Right {
			right, left = v1, v2
			found = true
			break
		}
	}
	if !found {
		return nil, NoNeighbor, fmt.Errorf("%w: cannot leave vertex %d towards %d", ErrConstraintFailed, a, b)
	}
	crossed := []Edge{{left, right}}
	for steps := 0; steps <= len(t.tris); steps++ {
		ti, k, ok := t.findEdge(left, right)
		if !ok {
			return nil, NoNeighbor, fmt.Errorf("%w: lost track of segment (%d,%d)", ErrConstraintFailed, a, b)
		}
		// ti is on the far side of the crossed edge
		w := t.tris[ti].v[k]
		if w == b {
			return crossed, NoNeighbor, nil
		}
		switch predicates.Orient(pa, pb, t.verts[w]) {
		case predicates.Collinear:
			if predicates.OnSegment(t.verts[w], pa, pb) {
				return nil, w, nil
			}
			return nil, NoNeighbor, fmt.Errorf("%w: segment (%d,%d) leaves the triangulation", ErrConstraintFailed, a, b)
		case predicates.Left:
			left = w
		default:
			right = w
		}
		crossed = append(crossed, Edge{left, right})
	}
	return nil, NoNeighbor, fmt.Errorf("%w: walk along (%d,%d) did not terminate", ErrConstraintFailed, a, b)
}

// removeCrossings flips the crossed edges until none of them crosses the
// segment ab. It returns the edges created by flips which do not coincide
// with ab. If no crossed edge can be flipped any more, the edge which got
// stuck is returned.
func (t *Triangulation) removeCrossings(a, b int, crossed []Edge) ([]Edge, *Edge) {
	pa, pb := t.verts[a], t.verts[b]
	queue := append([]Edge(nil), crossed...)
	var created []Edge
	stall := 0
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		ti, k, ok := t.findEdge(e.A, e.B)
		if !ok {
			ti, k, ok = t.findEdge(e.B, e.A)
		}
		if !ok {
			continue // flipped away meanwhile
		}
		tri := &t.tris[ti]
		ui := tri.n[k]
		if ui == NoNeighbor {
			return created, &e
		}
		p := tri.v[k]
		q := t.tris[ui].v[t.neighborIndex(ui, ti)]
		x, y := t.edgeOf(ti, k)
		if !predicates.SegmentsCross(t.verts[p], t.verts[q], t.verts[x], t.verts[y]) {
			// quadrilateral is not strictly convex
			queue = append(queue, e)
			stall++
			if stall > len(queue) {
				tracer().Debugf("no flip possible for %d crossing edges of (%d,%d)", len(queue), a, b)
				return created, &e
			}
			continue
		}
		stall = 0
		t.flip(ti, k)
		diag := Edge{p, q}
		if p == a || p == b || q == a || q == b {
			if (p == a && q == b) || (p == b && q == a) {
				continue
			}
			created = append(created, diag)
			continue
		}
		if predicates.SegmentsCross(pa, pb, t.verts[p], t.verts[q]) {
			queue = append(queue, diag)
		} else {
			created = append(created, diag)
		}
	}
	return created, nil
}

// restoreDelaunay flips the given edges, and the edges replacing them,
// until all of them are locally Delaunay.
func (t *Triangulation) restoreDelaunay(edges []Edge) {
	limit := 8*len(edges)*len(edges) + 64
	for swapped := true; swapped && limit > 0; limit-- {
		swapped = false
		for i, e := range edges {
			ti, k, ok := t.findEdge(e.A, e.B)
			if !ok {
				if ti, k, ok = t.findEdge(e.B, e.A); !ok {
					continue
				}
			}
			if !t.isIllegal(ti, k) {
				continue
			}
			p := t.tris[ti].v[k]
			t.flip(ti, k)
			ni, _ := t.edgeOf(ti, 1) // ti = (p,a,q): edge opposite a is (q,p)
			edges[i] = Edge{p, ni}
			swapped = true
		}
	}
	if limit == 0 {
		tracer().Infof("Delaunay restoration after constraint insertion did not settle")
	}
}

// splitConstraint inserts the intersection point of segment ab with the
// edge e and inserts the constraint as two parts.
func (t *Triangulation) splitConstraint(a, b int, e Edge, depth int) error {
	x, ok := intersection(t.verts[a], t.verts[b], t.verts[e.A], t.verts[e.B])
	if !ok {
		return fmt.Errorf("%w: (%d,%d) stuck at (%d,%d)", ErrConstraintFailed, a, b, e.A, e.B)
	}
	vi, err := t.InsertPoint(x)
	if err != nil && !errors.Is(err, ErrDuplicatePoint) {
		return fmt.Errorf("%w: splitting (%d,%d): %v", ErrConstraintFailed, a, b, err)
	}
	if vi == a || vi == b {
		return fmt.Errorf("%w: (%d,%d) collapses at split", ErrConstraintFailed, a, b)
	}
	t.stats.SteinerPoint++
	tracer().Debugf("constraint (%d,%d) split at new vertex %d %s", a, b, vi, tessel.PointString(x))
	if err := t.insertSegment(a, vi, depth+1); err != nil {
		return err
	}
	return t.insertSegment(vi, b, depth+1)
}

// intersection computes the intersection point of the lines through ab
// and cd.
func intersection(a, b, c, d r2.Vec) (r2.Vec, bool) {
	r, s := r2.Sub(b, a), r2.Sub(d, c)
	denom := r.X*s.Y - r.Y*s.X
	if denom == 0 || !tessel.IsFinite(denom) {
		return r2.Vec{}, false
	}
	ca := r2.Sub(c, a)
	u := (ca.X*s.Y - ca.Y*s.X) / denom
	x := r2.Add(a, r2.Scale(u, r))
	return x, tessel.Finite2(x)
}
