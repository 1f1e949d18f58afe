package cdt

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"
)

// MarkHole removes the region to the right of a closed loop of constraint
// edges. loop lists the loop's vertices in order, without repeating the
// first vertex. For a clockwise hole loop the removed region is the
// interior of the hole; for a counter-clockwise outer loop it is the
// exterior.
//
// Removal is a flood fill which starts at the triangles to the right of the
// loop's edges and never crosses a constraint edge. Loop edges which have
// been split into several constraint edges by vertices lying on them are
// skipped as seeds. MarkHole returns the number of removed triangles.
func (t *Triangulation) MarkHole(loop []int) (int, error) {
	if len(loop) < 3 {
		return 0, fmt.Errorf("%w: loop has %d vertices", ErrNotAnEdge, len(loop))
	}
	var seeds []int
	for i, a := range loop {
		b := loop[(i+1)%len(loop)]
		// the triangle right of a→b holds the directed edge b→a
		ti, k, ok := t.findEdge(b, a)
		if !ok || !t.tris[ti].c[k] {
			continue
		}
		seeds = append(seeds, ti)
	}
	if len(seeds) == 0 {
		return 0, fmt.Errorf("%w: no edge of the loop starting at %d is a constraint", ErrNotAnEdge, loop[0])
	}
	n := t.flood(seeds)
	tracer().Debugf("hole loop of %d vertices removed %d triangles", len(loop), n)
	return n, nil
}

// RemoveExterior removes every triangle which can be reached from the
// enclosing triangle without crossing a constraint edge. This includes all
// triangles with a synthetic vertex.
func (t *Triangulation) RemoveExterior() int {
	var seeds []int
	for i := range t.tris {
		tri := &t.tris[i]
		if !tri.dead && (IsSynthetic(tri.v[0]) || IsSynthetic(tri.v[1]) || IsSynthetic(tri.v[2])) {
			seeds = append(seeds, i)
		}
	}
	n := t.flood(seeds)
	tracer().Debugf("exterior removal removed %d triangles", n)
	return n
}

// flood removes all triangles reachable from seeds without crossing a
// constraint edge. Links of surviving neighbours to removed triangles are
// cut.
func (t *Triangulation) flood(seeds []int) int {
	stack := arraystack.New()
	for _, s := range seeds {
		stack.Push(s)
	}
	removed := 0
	for !stack.Empty() {
		top, _ := stack.Pop()
		ti := top.(int)
		tri := &t.tris[ti]
		if tri.dead {
			continue
		}
		tri.dead = true
		removed++
		for k := 0; k < 3; k++ {
			ui := tri.n[k]
			if ui == NoNeighbor {
				continue
			}
			if tri.c[k] {
				// keep the survivor, but detach it
				t.replaceNeighbor(ui, ti, NoNeighbor)
				tri.n[k] = NoNeighbor
				continue
			}
			if !t.tris[ui].dead {
				stack.Push(ui)
			}
		}
	}
	t.stats.Removed += removed
	if t.hint >= 0 && t.hint < len(t.tris) && t.tris[t.hint].dead {
		t.hint = t.anyLive()
	}
	return removed
}
