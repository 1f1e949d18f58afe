package tessellate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/mesh"
	"github.com/npillmayer/tessel/trim"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// preparedFace is a face with closed, validated trim loops and a proposed
// refinement of every loop edge. Refinements of edges shared with other
// faces are replaced by a common one before triangulation.
type preparedFace struct {
	face   *Face
	ev     *evaluator
	bounds []trim.Boundary
	ends   [][]r3.Vec        // model space position of every loop vertex
	inner  [][][]r2.Vec      // per loop and edge, the points inserted into the edge
	inner3 [][][]r3.Vec      // model space positions of inner
	pinned map[r2.Vec]r3.Vec // model space positions taken from another face
}

// prepareFace collects, closes and validates the trim loops of a face and
// refines their edges against the surface.
func prepareFace(f *Face, opts Options) (*preparedFace, error) {
	if f.Surface == nil {
		return nil, fmt.Errorf("%w: face has no surface", tessel.ErrDegenerateInput)
	}
	ev := newEvaluator(f.Surface)
	bounds, err := boundaries(f, ev, opts)
	if err != nil {
		return nil, err
	}
	if bounds, err = trim.CloseSeams(bounds, ev.domain, ev.pu, ev.pv); err != nil {
		return nil, err
	}
	pf := &preparedFace{
		face:   f,
		ev:     ev,
		bounds: bounds,
		ends:   make([][]r3.Vec, len(bounds)),
		inner:  make([][][]r2.Vec, len(bounds)),
		inner3: make([][][]r3.Vec, len(bounds)),
		pinned: make(map[r2.Vec]r3.Vec),
	}
	for i, b := range bounds {
		if err := b.Loop.Validate(); err != nil {
			return nil, fmt.Errorf("loop %d (%s): %w", i, b.Role, err)
		}
		for e := range b.Loop {
			sp, err := ev.at(b.Loop[e])
			if err != nil {
				return nil, err
			}
			pf.ends[i] = append(pf.ends[i], sp.Point)
			p, q := b.Loop.Edge(e)
			in, err := ev.refineEdge(p, q, trim.NullLoop(), 0, opts)
			if err != nil {
				return nil, err
			}
			in3 := make([]r3.Vec, len(in))
			for k, x := range in {
				sx, err := ev.at(x)
				if err != nil {
					return nil, err
				}
				in3[k] = sx.Point
			}
			pf.inner[i] = append(pf.inner[i], in)
			pf.inner3[i] = append(pf.inner3[i], in3)
		}
	}
	return pf, nil
}

// loops returns the trim loops with the refinement points inserted.
func (pf *preparedFace) loops() []trim.Boundary {
	out := make([]trim.Boundary, len(pf.bounds))
	for i, b := range pf.bounds {
		l := trim.NullLoop()
		for e, p := range b.Loop {
			l = l.Knot(p)
			for _, x := range pf.inner[i][e] {
				l = l.Knot(x)
			}
		}
		out[i] = trim.Boundary{Loop: l, Role: b.Role}
	}
	return out
}

// loopEdge refers to an edge of a loop of a prepared face. ends are the
// ids of the clusters of its end points in model space.
type loopEdge struct {
	face       *preparedFace
	result     int // index into the results of the run
	loop, edge int
	ends       [2]int
}

func (e loopEdge) params() (r2.Vec, r2.Vec) {
	return e.face.bounds[e.loop].Loop.Edge(e.edge)
}

func (e loopEdge) inner() []r2.Vec {
	return e.face.inner[e.loop][e.edge]
}

// shareEdges finds loop edges of different faces, or of the same face at a
// seam, whose end points coincide in model space within tol. Every such
// group of edges gets the refinement of the member with the most points;
// the other members receive these points projected onto their surfaces,
// pinned to the same model space positions. Faces failing on the
// projection are marked failed. It returns the number of edges which
// adopted a refinement.
func shareEdges(results []faceResult, tol float64) int {
	order := make([]int, 0, len(results))
	for i := range results {
		if results[i].prep != nil && results[i].err == nil && !results[i].skipped {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return results[order[i]].prep.face.ID < results[order[j]].prep.face.ID
	})
	index := mesh.NewIndex(tol)
	var centers []r3.Vec
	position := func(i int) r3.Vec { return centers[i] }
	cluster := func(p r3.Vec) int {
		if c, _ := index.Nearest(p, position); c >= 0 {
			return c
		}
		centers = append(centers, p)
		index.Insert(p, len(centers)-1)
		return len(centers) - 1
	}
	groups := make(map[[2]int][]loopEdge)
	var keys [][2]int
	for _, r := range order {
		pf := results[r].prep
		for l := range pf.bounds {
			n := len(pf.ends[l])
			for e := 0; e < n; e++ {
				a, b := cluster(pf.ends[l][e]), cluster(pf.ends[l][(e+1)%n])
				if a == b {
					continue // collapsed in model space, e.g. at a pole
				}
				k := [2]int{min(a, b), max(a, b)}
				if _, ok := groups[k]; !ok {
					keys = append(keys, k)
				}
				groups[k] = append(groups[k], loopEdge{face: pf, result: r, loop: l, edge: e, ends: [2]int{a, b}})
			}
		}
	}
	adopted := 0
	for _, k := range keys {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		owner := group[0]
		for _, e := range group[1:] {
			if len(e.inner()) > len(owner.inner()) {
				owner = e
			}
		}
		if len(owner.inner()) == 0 {
			continue
		}
		for _, e := range group {
			if e == owner || results[e.result].err != nil {
				continue
			}
			if err := adopt(e, owner, tol); err != nil {
				results[e.result].err = err
				results[e.result].panicked = errors.Is(err, ErrPanic)
				continue
			}
			adopted++
		}
	}
	tracer().Debugf("%d loop vertex clusters, %d shared edges adopted a refinement", len(centers), adopted)
	return adopted
}

// adopt replaces the refinement of edge e by the one of owner.
func adopt(e, owner loopEdge, tol float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	ao, bo := owner.params()
	am, bm := e.params()
	same := e.ends[0] == owner.ends[0]
	src, src3 := owner.inner(), owner.face.inner3[owner.loop][owner.edge]
	n := len(src)
	in := make([]r2.Vec, n)
	in3 := make([]r3.Vec, n)
	span := r2.Sub(bo, ao)
	for k := range src {
		j := k
		if !same {
			j = n - 1 - k
		}
		t := r2.Dot(r2.Sub(src[j], ao), span) / r2.Dot(span, span)
		if !same {
			t = 1 - t
		}
		guess := r2.Add(am, r2.Scale(t, r2.Sub(bm, am)))
		p, dist, err := e.face.ev.project(src3[j], guess)
		if err != nil {
			return err
		}
		if dist > tol {
			tracer().Debugf("face %d: surfaces differ by %g at shared edge point", e.face.face.ID, dist)
		}
		in[k], in3[k] = p, src3[j]
		e.face.pinned[p] = src3[j]
	}
	e.face.inner[e.loop][e.edge] = in
	e.face.inner3[e.loop][e.edge] = in3
	return nil
}

// maxProjectionSteps limits the Gauss-Newton iteration of project.
const maxProjectionSteps = 20

// project finds the parameters of the surface point closest to p by
// Gauss-Newton iteration, starting from guess. It returns the parameters
// and the remaining distance.
func (ev *evaluator) project(p r3.Vec, guess r2.Vec) (r2.Vec, float64, error) {
	q := guess
	for i := 0; i < maxProjectionSteps; i++ {
		sp, err := ev.at(q)
		if err != nil {
			return guess, 0, err
		}
		r := r3.Sub(sp.Point, p)
		if r3.Norm(r) == 0 {
			return q, 0, nil
		}
		a, b, c := r3.Dot(sp.DU, sp.DU), r3.Dot(sp.DU, sp.DV), r3.Dot(sp.DV, sp.DV)
		det := a*c - b*b
		if a*c == 0 || tessel.Is0(det/(a*c)) {
			break
		}
		gu, gv := r3.Dot(sp.DU, r), r3.Dot(sp.DV, r)
		d := r2.Vec{X: -(c*gu - b*gv) / det, Y: -(a*gv - b*gu) / det}
		q = ev.clamp(r2.Add(q, d))
		if r2.Norm(d) <= 1e-12*ev.diagonal() {
			break
		}
	}
	sp, err := ev.at(q)
	if err != nil {
		return guess, 0, err
	}
	return q, r3.Norm(r3.Sub(sp.Point, p)), nil
}

// clamp restricts p to the domain in directions which are not periodic.
func (ev *evaluator) clamp(p r2.Vec) r2.Vec {
	if ev.pu <= 0 {
		p.X = math.Max(ev.domain.Min.X, math.Min(ev.domain.Max.X, p.X))
	}
	if ev.pv <= 0 {
		p.Y = math.Max(ev.domain.Min.Y, math.Min(ev.domain.Max.Y, p.Y))
	}
	return p
}
