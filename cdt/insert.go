package cdt

import (
	"fmt"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/predicates"
	"gonum.org/v1/gonum/spatial/r2"
)

// location classifies the result of a point location.
type location int8

const (
	inTriangle location = iota
	onEdge
	onVertex
	outside
)

// InsertPoint inserts p into the triangulation and restores the Delaunay
// property around it. It returns the index of the new vertex.
//
// A point which has been inserted before is not inserted again; InsertPoint
// returns the index of the existing vertex together with ErrDuplicatePoint.
// A point on a constraint edge splits the constraint into two constraint
// edges.
func (t *Triangulation) InsertPoint(p r2.Vec) (int, error) {
	if !tessel.Finite2(p) {
		return NoNeighbor, ErrInvalidPoint
	}
	if vi, ok := t.index[p]; ok {
		return vi, ErrDuplicatePoint
	}
	ti, loc, k := t.locate(p)
	switch loc {
	case outside:
		return NoNeighbor, fmt.Errorf("%w: %s", ErrOutOfBounds, tessel.PointString(p))
	case onVertex:
		vi := t.tris[ti].v[k]
		return vi, ErrDuplicatePoint
	}
	vi := len(t.verts)
	t.verts = append(t.verts, p)
	t.vertTri = append(t.vertTri, ti)
	t.index[p] = vi
	var stack []edgeRef
	if loc == inTriangle {
		stack = t.splitTriangle(ti, vi)
	} else {
		stack = t.splitEdge(ti, k, vi)
	}
	t.legalize(stack)
	return vi, nil
}

// edgeRef references edge k of triangle ti.
type edgeRef struct {
	ti, k int
}

// locate finds the triangle containing p by a visibility walk, starting at
// the hint triangle. For onEdge the edge index is returned, for onVertex
// the vertex position within the triangle.
func (t *Triangulation) locate(p r2.Vec) (int, location, int) {
	ti := t.hint
	if ti < 0 || ti >= len(t.tris) || t.tris[ti].dead {
		ti = t.anyLive()
		if ti < 0 {
			return NoNeighbor, outside, 0
		}
	}
	maxSteps := 4*len(t.tris) + 16
	prev := NoNeighbor
walk:
	for step := 0; step < maxSteps; step++ {
		tri := &t.tris[ti]
		// rotate the first edge tested, so the walk cannot cycle on
		// degenerate configurations
		for r := 0; r < 3; r++ {
			k := (r + step) % 3
			if tri.n[k] == prev && prev != NoNeighbor {
				continue
			}
			a, b := t.verts[tri.v[(k+1)%3]], t.verts[tri.v[(k+2)%3]]
			if predicates.Orient(a, b, p) == predicates.Right {
				next := tri.n[k]
				if next == NoNeighbor || t.tris[next].dead {
					return NoNeighbor, outside, 0
				}
				prev, ti = ti, next
				continue walk
			}
		}
		t.hint = ti
		return t.classify(ti, p)
	}
	t.stats.WalkFallback++
	tracer().Debugf("point location walk did not converge, scanning for %s", tessel.PointString(p))
	for i := range t.tris {
		if t.tris[i].dead {
			continue
		}
		v := t.tris[i].v
		if predicates.InTriangle(p, t.verts[v[0]], t.verts[v[1]], t.verts[v[2]]) >= 0 {
			t.hint = i
			return t.classify(i, p)
		}
	}
	return NoNeighbor, outside, 0
}

// classify determines where in triangle ti point p is located. p must be
// within the closed triangle.
func (t *Triangulation) classify(ti int, p r2.Vec) (int, location, int) {
	tri := &t.tris[ti]
	for k := 0; k < 3; k++ {
		if t.verts[tri.v[k]] == p {
			return ti, onVertex, k
		}
	}
	for k := 0; k < 3; k++ {
		a, b := t.verts[tri.v[(k+1)%3]], t.verts[tri.v[(k+2)%3]]
		if predicates.Orient(a, b, p) == predicates.Collinear {
			return ti, onEdge, k
		}
	}
	return ti, inTriangle, 0
}

func (t *Triangulation) anyLive() int {
	for i := len(t.tris) - 1; i >= 0; i-- {
		if !t.tris[i].dead {
			return i
		}
	}
	return NoNeighbor
}

// splitTriangle splits triangle ti into three triangles around the new
// vertex p. It returns the edges opposite to p for legalization.
func (t *Triangulation) splitTriangle(ti, p int) []edgeRef {
	old := t.tris[ti]
	a, b, c := old.v[0], old.v[1], old.v[2]
	t0, t1, t2 := ti, t.newTri(), t.newTri()
	t.setTri(t0, [3]int{p, b, c}, [3]int{old.n[0], t1, t2}, [3]bool{old.c[0], false, false})
	t.setTri(t1, [3]int{p, c, a}, [3]int{old.n[1], t2, t0}, [3]bool{old.c[1], false, false})
	t.setTri(t2, [3]int{p, a, b}, [3]int{old.n[2], t0, t1}, [3]bool{old.c[2], false, false})
	t.replaceNeighbor(old.n[1], ti, t1)
	t.replaceNeighbor(old.n[2], ti, t2)
	t.hint = t0
	return []edgeRef{{t0, 0}, {t1, 0}, {t2, 0}}
}

// splitEdge splits edge k of triangle ti, and the triangle on the other
// side of it, at the new vertex p. p must lie on that edge. A constraint
// edge stays constrained in both halves.
func (t *Triangulation) splitEdge(ti, k, p int) []edgeRef {
	old := t.tris[ti]
	c := old.v[k]
	a, b := old.v[(k+1)%3], old.v[(k+2)%3]
	constrained := old.c[k]
	ui := old.n[k]
	t1, t2 := ti, t.newTri()
	if ui == NoNeighbor {
		t.setTri(t1, [3]int{p, b, c}, [3]int{old.n[(k+1)%3], t2, NoNeighbor},
			[3]bool{old.c[(k+1)%3], false, constrained})
		t.setTri(t2, [3]int{p, c, a}, [3]int{old.n[(k+2)%3], NoNeighbor, t1},
			[3]bool{old.c[(k+2)%3], constrained, false})
		t.replaceNeighbor(old.n[(k+2)%3], ti, t2)
		t.hint = t1
		return []edgeRef{{t1, 0}, {t2, 0}}
	}
	oldU := t.tris[ui]
	j := t.neighborIndex(ui, ti)
	d := oldU.v[j]
	u1, u2 := ui, t.newTri()
	t.setTri(t1, [3]int{p, b, c}, [3]int{old.n[(k+1)%3], t2, u1},
		[3]bool{old.c[(k+1)%3], false, constrained})
	t.setTri(t2, [3]int{p, c, a}, [3]int{old.n[(k+2)%3], u2, t1},
		[3]bool{old.c[(k+2)%3], constrained, false})
	t.setTri(u1, [3]int{p, d, b}, [3]int{oldU.n[(j+2)%3], t1, u2},
		[3]bool{oldU.c[(j+2)%3], constrained, false})
	t.setTri(u2, [3]int{p, a, d}, [3]int{oldU.n[(j+1)%3], u1, t2},
		[3]bool{oldU.c[(j+1)%3], false, constrained})
	t.replaceNeighbor(old.n[(k+2)%3], ti, t2)
	t.replaceNeighbor(oldU.n[(j+1)%3], ui, u2)
	t.hint = t1
	return []edgeRef{{t1, 0}, {t2, 0}, {u1, 0}, {u2, 0}}
}

// flip replaces the diagonal of the quadrilateral formed by triangle ti and
// its neighbour across edge k. With p the vertex of ti opposite the edge
// (a,b) and q the vertex of the neighbour opposite the edge, the result is
// ti = (p,a,q) and the neighbour = (q,b,p). Constraint edges must never be
// flipped.
func (t *Triangulation) flip(ti, k int) (int, int) {
	old := t.tris[ti]
	ui := old.n[k]
	oldU := t.tris[ui]
	j := t.neighborIndex(ui, ti)
	p, a, b := old.v[k], old.v[(k+1)%3], old.v[(k+2)%3]
	q := oldU.v[j]
	t.setTri(ti, [3]int{p, a, q}, [3]int{oldU.n[(j+1)%3], ui, old.n[(k+2)%3]},
		[3]bool{oldU.c[(j+1)%3], false, old.c[(k+2)%3]})
	t.setTri(ui, [3]int{q, b, p}, [3]int{old.n[(k+1)%3], ti, oldU.n[(j+2)%3]},
		[3]bool{old.c[(k+1)%3], false, oldU.c[(j+2)%3]})
	t.replaceNeighbor(oldU.n[(j+1)%3], ui, ti)
	t.replaceNeighbor(old.n[(k+1)%3], ti, ui)
	t.stats.Flips++
	return ti, ui
}

// legalize flips edges until every edge on the stack, and every edge
// created by a flip, is locally Delaunay. The edges on the stack must be
// opposite to the newly inserted vertex of their triangle.
func (t *Triangulation) legalize(stack []edgeRef) {
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !t.isIllegal(e.ti, e.k) {
			continue
		}
		ti, ui := t.flip(e.ti, e.k)
		// ti = (p,a,q), ui = (q,b,p): the edges opposite p are new candidates
		stack = append(stack, edgeRef{ti, 0}, edgeRef{ui, 2})
	}
}

// isIllegal is a predicate: does edge k of triangle ti violate the Delaunay
// condition? Constraint edges and border edges are never illegal.
func (t *Triangulation) isIllegal(ti, k int) bool {
	tri := &t.tris[ti]
	if tri.dead || tri.c[k] {
		return false
	}
	ui := tri.n[k]
	if ui == NoNeighbor || t.tris[ui].dead {
		return false
	}
	q := t.tris[ui].v[t.neighborIndex(ui, ti)]
	v := tri.v
	return predicates.InCircle(t.verts[v[0]], t.verts[v[1]], t.verts[v[2]], t.verts[q]) == predicates.Inside
}
