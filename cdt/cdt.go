/*
Package cdt implements an incremental constrained Delaunay triangulation of
points in the plane.

A Triangulation is an index-based arena: vertices and triangles live in
slices and refer to each other by index only. Every triangle stores its
three vertices in counter-clockwise order, the three neighbour triangles
and a constraint flag for each of its edges. Edge i of a triangle is the
edge opposite to vertex i.

	t := cdt.New(bounds)
	a, _ := t.InsertPoint(p)
	b, _ := t.InsertPoint(q)
	err := t.InsertConstraint(a, b)

All geometric decisions are made with the exact predicates of package
predicates, therefore insertion never produces inverted triangles and flip
sequences always terminate. Tolerances are never used.

The triangulation starts out with a large enclosing triangle. Its three
vertices are synthetic; they occupy indices 0, 1 and 2 and are never
reported by Triangles.

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package cdt

import (
	"errors"
	"fmt"
	"math"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r2"
)

// tracer writes to trace with key 'tessel.cdt'
func tracer() tracing.Trace {
	return tracing.Select("tessel.cdt")
}

// NoNeighbor marks a triangle edge without an adjacent triangle.
const NoNeighbor = -1

// FirstVertex is the index of the first client vertex. Indices below are
// taken by the vertices of the enclosing triangle.
const FirstVertex = 3

// superScale is the size of the enclosing triangle relative to the
// extent of the bounds.
const superScale = 64.0

var (
	// ErrOutOfBounds indicates a point outside of the triangulated area.
	ErrOutOfBounds = errors.New("point outside of triangulation")
	// ErrDuplicatePoint indicates a point which has already been inserted.
	// The index of the existing vertex is returned together with this error.
	ErrDuplicatePoint = errors.New("duplicate point")
	// ErrInvalidPoint indicates a point with NaN or infinite coordinates.
	ErrInvalidPoint = fmt.Errorf("%w: point has non-finite coordinates", tessel.ErrDegenerateInput)
	// ErrInvalidVertex indicates a vertex index which does not exist.
	ErrInvalidVertex = errors.New("no such vertex")
	// ErrDegenerateConstraint indicates a constraint edge with identical endpoints.
	ErrDegenerateConstraint = fmt.Errorf("%w: constraint edge has identical endpoints", tessel.ErrDegenerateInput)
	// ErrIntersectingConstraints indicates a constraint edge crossing another one.
	ErrIntersectingConstraints = fmt.Errorf("%w: constraint edges intersect", tessel.ErrDegenerateInput)
	// ErrConstraintFailed indicates a constraint edge which could not be recovered
	// within the retry limits.
	ErrConstraintFailed = fmt.Errorf("%w: constraint edge could not be recovered", tessel.ErrNumericDegeneracy)
	// ErrNotAnEdge indicates a loop passed to MarkHole whose edges are not
	// constraint edges of the triangulation.
	ErrNotAnEdge = fmt.Errorf("%w: loop is not made of constraint edges", tessel.ErrDegenerateInput)
)

// Triangle is a triangle of the result, given as three vertex indices in
// counter-clockwise order.
type Triangle [3]int

// Edge is an undirected edge between two vertices.
type Edge struct {
	A, B int
}

// Normalized returns the edge with the smaller vertex index first.
func (e Edge) Normalized() Edge {
	if e.A > e.B {
		return Edge{e.B, e.A}
	}
	return e
}

// triangle is an element of the triangle arena.
type triangle struct {
	v    [3]int  // vertices, counter-clockwise
	n    [3]int  // n[i] is the neighbour across the edge opposite v[i]
	c    [3]bool // c[i] flags the edge opposite v[i] as a constraint
	dead bool    // removed by hole marking
}

// Stats collects counters about the work of a triangulation.
type Stats struct {
	Flips        int // edge flips
	SteinerPoint int // points inserted to resolve stuck constraints
	WalkFallback int // point locations which fell back to a linear scan
	Removed      int // triangles removed by hole marking
}

// Triangulation is a constrained Delaunay triangulation. It is not safe for
// concurrent use.
type Triangulation struct {
	verts   []r2.Vec
	tris    []triangle
	vertTri []int          // vertTri[i] is some triangle incident to vertex i
	index   map[r2.Vec]int // exact coordinates → vertex
	hint    int            // start triangle of the next point location
	bounds  r2.Box
	stats   Stats
}

// New creates an empty triangulation for points within bounds. Points
// slightly outside of bounds may still be inserted, as the enclosing
// triangle is considerably larger than bounds.
func New(bounds r2.Box) *Triangulation {
	bounds = bounds.Canon()
	w, h := bounds.Max.X-bounds.Min.X, bounds.Max.Y-bounds.Min.Y
	extent := math.Max(w, h)
	if extent == 0 || !tessel.IsFinite(extent) {
		extent = 1
	}
	center := r2.Scale(0.5, r2.Add(bounds.Min, bounds.Max))
	m := superScale * extent
	t := &Triangulation{
		verts: []r2.Vec{
			{X: center.X - 3*m, Y: center.Y - m},
			{X: center.X + 3*m, Y: center.Y - m},
			{X: center.X, Y: center.Y + 2*m},
		},
		vertTri: make([]int, FirstVertex),
		index:   make(map[r2.Vec]int),
		bounds:  bounds,
	}
	t.tris = append(t.tris, triangle{})
	t.setTri(0, [3]int{0, 1, 2}, [3]int{NoNeighbor, NoNeighbor, NoNeighbor}, [3]bool{})
	tracer().Debugf("new triangulation for bounds %v", bounds)
	return t
}

// NumVertices returns the number of vertices, including the three
// synthetic vertices of the enclosing triangle.
func (t *Triangulation) NumVertices() int {
	return len(t.verts)
}

// Vertex returns the coordinates of vertex i.
func (t *Triangulation) Vertex(i int) r2.Vec {
	return t.verts[i]
}

// Bounds returns the bounds the triangulation has been created for.
func (t *Triangulation) Bounds() r2.Box {
	return t.bounds
}

// Stats returns counters about the work done so far.
func (t *Triangulation) Stats() Stats {
	return t.stats
}

// IsSynthetic is a predicate: is vertex i a vertex of the enclosing triangle?
func IsSynthetic(i int) bool {
	return i < FirstVertex
}

// Triangles returns all triangles which have client vertices only, in
// arena order.
func (t *Triangulation) Triangles() []Triangle {
	var result []Triangle
	for i := range t.tris {
		tri := &t.tris[i]
		if tri.dead || IsSynthetic(tri.v[0]) || IsSynthetic(tri.v[1]) || IsSynthetic(tri.v[2]) {
			continue
		}
		result = append(result, Triangle(tri.v))
	}
	return result
}

// Edges returns every edge of the triangles reported by Triangles, each
// edge once, together with a flag telling whether it is a constraint.
func (t *Triangulation) Edges() map[Edge]bool {
	edges := make(map[Edge]bool)
	for _, tri := range t.Triangles() {
		for k := 0; k < 3; k++ {
			e := Edge{tri[(k+1)%3], tri[(k+2)%3]}.Normalized()
			edges[e] = edges[e] || t.IsConstrained(e.A, e.B)
		}
	}
	return edges
}

// Constraints returns all constraint edges, each once, in no particular order.
func (t *Triangulation) Constraints() []Edge {
	seen := make(map[Edge]bool)
	var result []Edge
	for i := range t.tris {
		tri := &t.tris[i]
		if tri.dead {
			continue
		}
		for k := 0; k < 3; k++ {
			if !tri.c[k] {
				continue
			}
			e := Edge{tri.v[(k+1)%3], tri.v[(k+2)%3]}.Normalized()
			if !seen[e] {
				seen[e] = true
				result = append(result, e)
			}
		}
	}
	return result
}

// HasEdge is a predicate: is there an edge between vertices a and b?
func (t *Triangulation) HasEdge(a, b int) bool {
	_, _, ok := t.findEdge(a, b)
	if !ok {
		_, _, ok = t.findEdge(b, a)
	}
	return ok
}

// IsConstrained is a predicate: is there a constraint edge between a and b?
func (t *Triangulation) IsConstrained(a, b int) bool {
	if ti, k, ok := t.findEdge(a, b); ok {
		return t.tris[ti].c[k]
	}
	if ti, k, ok := t.findEdge(b, a); ok {
		return t.tris[ti].c[k]
	}
	return false
}

// --- Arena helpers ---------------------------------------------------------

// setTri overwrites triangle ti and makes it the reference triangle of its
// vertices.
func (t *Triangulation) setTri(ti int, v [3]int, n [3]int, c [3]bool) {
	t.tris[ti] = triangle{v: v, n: n, c: c}
	for _, vi := range v {
		t.vertTri[vi] = ti
	}
}

// newTri appends an uninitialized triangle to the arena.
func (t *Triangulation) newTri() int {
	t.tris = append(t.tris, triangle{})
	return len(t.tris) - 1
}

// replaceNeighbor redirects the link of triangle ti which pointed to old to
// point to new.
func (t *Triangulation) replaceNeighbor(ti, old, new int) {
	if ti == NoNeighbor {
		return
	}
	tri := &t.tris[ti]
	for k := 0; k < 3; k++ {
		if tri.n[k] == old {
			tri.n[k] = new
			return
		}
	}
	panic(fmt.Sprintf("cdt: triangle %d is not adjacent to %d", ti, old))
}

// neighborIndex returns the edge index of triangle ti which is shared with
// triangle other.
func (t *Triangulation) neighborIndex(ti, other int) int {
	tri := &t.tris[ti]
	for k := 0; k < 3; k++ {
		if tri.n[k] == other {
			return k
		}
	}
	panic(fmt.Sprintf("cdt: triangle %d is not adjacent to %d", ti, other))
}

// vertexIndex returns the position of vertex v in triangle ti, or -1.
func (t *Triangulation) vertexIndex(ti, v int) int {
	tri := &t.tris[ti]
	for k := 0; k < 3; k++ {
		if tri.v[k] == v {
			return k
		}
	}
	return -1
}

// star returns the live triangles incident to vertex v.
func (t *Triangulation) star(v int) []int {
	start := t.vertTri[v]
	if start < 0 || start >= len(t.tris) || t.tris[start].dead || t.vertexIndex(start, v) < 0 {
		start = -1
		for i := range t.tris {
			if !t.tris[i].dead && t.vertexIndex(i, v) >= 0 {
				start = i
				break
			}
		}
		if start < 0 {
			return nil
		}
		t.vertTri[v] = start
	}
	result := []int{start}
	// rotate counter-clockwise around v
	ti := start
	for {
		k := t.vertexIndex(ti, v)
		next := t.tris[ti].n[(k+1)%3]
		if next == NoNeighbor {
			break
		}
		if next == start {
			return result
		}
		result = append(result, next)
		ti = next
		if len(result) > len(t.tris) {
			panic("cdt: corrupt vertex star")
		}
	}
	// hit a border: collect the clockwise part as well
	ti = start
	for {
		k := t.vertexIndex(ti, v)
		next := t.tris[ti].n[(k+2)%3]
		if next == NoNeighbor {
			break
		}
		result = append(result, next)
		ti = next
		if len(result) > len(t.tris) {
			panic("cdt: corrupt vertex star")
		}
	}
	return result
}

// findEdge finds the triangle containing the directed edge a→b in its
// counter-clockwise boundary. It returns the triangle and the index of the
// edge within the triangle.
func (t *Triangulation) findEdge(a, b int) (int, int, bool) {
	if a < 0 || a >= len(t.verts) || b < 0 || b >= len(t.verts) {
		return NoNeighbor, 0, false
	}
	for _, ti := range t.star(a) {
		i := t.vertexIndex(ti, a)
		if t.tris[ti].v[(i+1)%3] == b {
			return ti, (i + 2) % 3, true
		}
	}
	return NoNeighbor, 0, false
}

// edgeOf returns the vertices of edge k of triangle ti, in the
// counter-clockwise direction of ti.
func (t *Triangulation) edgeOf(ti, k int) (int, int) {
	tri := &t.tris[ti]
	return tri.v[(k+1)%3], tri.v[(k+2)%3]
}

// setConstraint flags edge k of triangle ti and the matching edge of its
// neighbour.
func (t *Triangulation) setConstraint(ti, k int, on bool) {
	tri := &t.tris[ti]
	tri.c[k] = on
	if ui := tri.n[k]; ui != NoNeighbor {
		j := t.neighborIndex(ui, ti)
		t.tris[ui].c[j] = on
	}
}
