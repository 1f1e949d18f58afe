package cdt

import (
	"fmt"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/predicates"
)

// CheckTopology verifies the structural invariants of the triangulation:
// every live triangle is counter-clockwise and non-degenerate, neighbour
// links are symmetric, shared edges match and constraint flags agree on
// both sides of an edge. It is meant for tests and debugging.
func (t *Triangulation) CheckTopology() error {
	for ti := range t.tris {
		tri := &t.tris[ti]
		if tri.dead {
			continue
		}
		a, b, c := t.verts[tri.v[0]], t.verts[tri.v[1]], t.verts[tri.v[2]]
		if predicates.Orient(a, b, c) != predicates.Left {
			return fmt.Errorf("%w: triangle %d %v is not counter-clockwise", tessel.ErrNumericDegeneracy, ti, tri.v)
		}
		for k := 0; k < 3; k++ {
			ui := tri.n[k]
			if ui == NoNeighbor {
				continue
			}
			if ui < 0 || ui >= len(t.tris) || t.tris[ui].dead {
				return fmt.Errorf("triangle %d links to invalid neighbour %d", ti, ui)
			}
			j := -1
			for m := 0; m < 3; m++ {
				if t.tris[ui].n[m] == ti {
					j = m
				}
			}
			if j < 0 {
				return fmt.Errorf("neighbour link %d→%d is not symmetric", ti, ui)
			}
			x, y := t.edgeOf(ti, k)
			u, w := t.edgeOf(ui, j)
			if x != w || y != u {
				return fmt.Errorf("triangles %d and %d do not share edge (%d,%d)", ti, ui, x, y)
			}
			if tri.c[k] != t.tris[ui].c[j] {
				return fmt.Errorf("constraint flag of edge (%d,%d) differs between %d and %d", x, y, ti, ui)
			}
		}
	}
	return nil
}

// CheckDelaunay verifies that every edge which is not a constraint edge is
// locally Delaunay: no vertex of a neighbouring triangle lies strictly
// inside the circumcircle of a triangle. It is meant for tests and
// debugging.
func (t *Triangulation) CheckDelaunay() error {
	for ti := range t.tris {
		if t.tris[ti].dead {
			continue
		}
		for k := 0; k < 3; k++ {
			if t.isIllegal(ti, k) {
				x, y := t.edgeOf(ti, k)
				return fmt.Errorf("edge (%d,%d) of triangle %d is not locally Delaunay", x, y, ti)
			}
		}
	}
	return nil
}
