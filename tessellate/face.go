package tessellate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/cdt"
	"github.com/npillmayer/tessel/mesh"
	"github.com/npillmayer/tessel/trim"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// faceStats collects counters of the tessellation of a single face.
type faceStats struct {
	Samples           int // quadtree samples inserted into the triangulation
	SteinerPoints     int
	Flips             int
	DegenerateNormals int // normals replaced by averages of adjacent triangles
}

// boundaries collects the trim loops of a face, sampling curve loops.
// A face without loops is bounded by the surface domain.
func boundaries(f *Face, ev *evaluator, opts Options) ([]trim.Boundary, error) {
	bounds := append([]trim.Boundary(nil), f.Bounds...)
	tol := opts.CurveTolerance
	if tol == 0 {
		tol = 1e-3 * ev.diagonal()
	}
	gap := 1e-6 * ev.diagonal()
	for i, cl := range f.Curves {
		l, err := trim.FromPeriodicCurves(cl.Curves, tol, gap, ev.pu, ev.pv)
		if err != nil {
			return nil, fmt.Errorf("curve loop %d: %w", i, err)
		}
		bounds = append(bounds, trim.Boundary{Loop: l, Role: cl.Role})
	}
	if len(bounds) == 0 {
		bounds = append(bounds, trim.Boundary{
			Loop: trim.Box(ev.domain.Min, ev.domain.Max),
			Role: trim.Outer,
		})
	}
	for i := range bounds {
		bounds[i].Loop = bounds[i].Loop.Dedup(0)
	}
	return bounds, nil
}

// tessellateFace runs the pipeline for a prepared face: sampling,
// triangulation and lifting.
func tessellateFace(pf *preparedFace, opts Options) (mesh.Fragment, faceStats, error) {
	var st faceStats
	f, ev := pf.face, pf.ev
	region, err := trim.NewRegion(pf.loops())
	if err != nil {
		return mesh.Fragment{}, st, err
	}
	smp, err := sampleRegion(ev, region, opts)
	if err != nil {
		return mesh.Fragment{}, st, err
	}
	tri := cdt.New(region.Bounds())
	loops := region.Loops()
	index := make([][]int, len(loops))
	for i, l := range loops {
		for _, p := range l {
			v, err := tri.InsertPoint(p)
			if err != nil && !errors.Is(err, cdt.ErrDuplicatePoint) {
				return mesh.Fragment{}, st, fmt.Errorf("loop vertex %s: %w", tessel.PointString(p), err)
			}
			if n := len(index[i]); n == 0 || index[i][n-1] != v {
				index[i] = append(index[i], v)
			}
		}
		if n := len(index[i]); n > 1 && index[i][0] == index[i][n-1] {
			index[i] = index[i][:n-1]
		}
	}
	for _, p := range smp.inside(region) {
		if _, err := tri.InsertPoint(p); err == nil {
			st.Samples++
		} else if !errors.Is(err, cdt.ErrDuplicatePoint) {
			return mesh.Fragment{}, st, fmt.Errorf("sample %s: %w", tessel.PointString(p), err)
		}
	}
	for _, loop := range index {
		for i, a := range loop {
			if err := tri.InsertConstraint(a, loop[(i+1)%len(loop)]); err != nil {
				return mesh.Fragment{}, st, err
			}
		}
	}
	for _, hole := range index[1:] {
		if _, err := tri.MarkHole(hole); err != nil {
			return mesh.Fragment{}, st, err
		}
	}
	tri.RemoveExterior()
	cs := tri.Stats()
	st.SteinerPoints, st.Flips = cs.SteinerPoint, cs.Flips
	frag, degenerate, err := lift(f, ev, tri, pf.pinned)
	st.DegenerateNormals = degenerate
	return frag, st, err
}

// inside returns the samples within the region which keep a distance of
// half their cell size from every trim loop, sorted by coordinates.
func (s samples) inside(region *trim.Region) []r2.Vec {
	var pts []r2.Vec
	for p, spacing := range s {
		if region.Contains(p) && region.Distance(p) > 0.5*spacing {
			pts = append(pts, p)
		}
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	return pts
}

// lift maps the triangulation onto the surface. Vertices on constraint
// edges are boundary vertices. Pinned vertices keep their given position. Undefined surface normals are replaced by
// the average normal of the adjacent triangles; their number is returned.
func lift(f *Face, ev *evaluator, tri *cdt.Triangulation, pinned map[r2.Vec]r3.Vec) (mesh.Fragment, int, error) {
	frag := mesh.Fragment{Face: f.ID}
	boundary := make(map[int]bool)
	for _, e := range tri.Constraints() {
		boundary[e.A], boundary[e.B] = true, true
	}
	remap := make(map[int]int)
	var degenerate []bool
	for _, t := range tri.Triangles() {
		var mt mesh.Triangle
		for k, v := range t {
			i, ok := remap[v]
			if !ok {
				p := tri.Vertex(v)
				sp, err := ev.at(p)
				if err != nil {
					return mesh.Fragment{}, 0, err
				}
				if q, ok := pinned[p]; ok {
					sp.Point = q
				}
				i = len(frag.Vertices)
				remap[v] = i
				frag.Vertices = append(frag.Vertices, mesh.Vertex{Position: sp.Point, Normal: sp.Normal})
				frag.Boundary = append(frag.Boundary, boundary[v])
				degenerate = append(degenerate, sp.Degenerate)
			}
			mt[k] = i
		}
		if !f.SameSense {
			mt[1], mt[2] = mt[2], mt[1]
		}
		frag.Triangles = append(frag.Triangles, mt)
	}
	if !f.SameSense {
		for i := range frag.Vertices {
			frag.Vertices[i].Normal = r3.Scale(-1, frag.Vertices[i].Normal)
		}
	}
	sums := make(map[int]r3.Vec)
	for _, t := range frag.Triangles {
		p0, p1, p2 := frag.Vertices[t[0]].Position, frag.Vertices[t[1]].Position, frag.Vertices[t[2]].Position
		n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
		for _, v := range t {
			if degenerate[v] {
				sums[v] = r3.Add(sums[v], n)
			}
		}
	}
	count := 0
	for v, n := range sums {
		if l := r3.Norm(n); l > 0 {
			frag.Vertices[v].Normal = r3.Scale(1/l, n)
			count++
		}
	}
	tracer().Debugf("face %d: lifted %d vertices, %d triangles", f.ID, len(frag.Vertices), len(frag.Triangles))
	return frag, count, nil
}
