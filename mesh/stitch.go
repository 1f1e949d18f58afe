package mesh

import (
	"math"
	"sort"

	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r3"
)

// StitchStats reports what Stitch did.
type StitchStats struct {
	Fragments          int // fragments merged
	Skipped            int // invalid fragments left out
	BoundaryVertices   int // boundary vertices looked up
	Merged             int // boundary vertices mapped onto an existing vertex
	ToleranceConflicts int // lookups with more than one candidate in range
	Collapsed          int // triangles dropped because merging collapsed them
}

// cell is the key of a bucket of an Index.
type cell [3]int64

// Index is a bucket map over quantized coordinates. The bucket size
// equals the tolerance, therefore all points within tolerance of a point
// are found in the 27 buckets around it. Points are referred to by the
// integer handle they are inserted with.
type Index struct {
	size    float64
	tol     float64
	buckets map[cell][]int
}

// NewIndex creates an empty index for a tolerance.
func NewIndex(tol float64) *Index {
	size := tol
	if !(size > 0) {
		size = 1
	}
	return &Index{size: size, tol: math.Max(tol, 0), buckets: make(map[cell][]int)}
}

func (ix *Index) cellOf(p r3.Vec) cell {
	return cell{
		int64(math.Floor(p.X / ix.size)),
		int64(math.Floor(p.Y / ix.size)),
		int64(math.Floor(p.Z / ix.size)),
	}
}

// Insert adds the point with handle v at position p.
func (ix *Index) Insert(p r3.Vec, v int) {
	c := ix.cellOf(p)
	ix.buckets[c] = append(ix.buckets[c], v)
}

// Nearest finds the point closest to p within tolerance, position mapping
// handles to positions. Ties are broken by the lower handle. It returns -1
// if there is none, and the number of points within tolerance.
func (ix *Index) Nearest(p r3.Vec, position func(int) r3.Vec) (int, int) {
	c := ix.cellOf(p)
	best, dbest, n := -1, math.Inf(1), 0
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, v := range ix.buckets[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
					d := r3.Norm(r3.Sub(p, position(v)))
					if d > ix.tol {
						continue
					}
					n++
					if d < dbest || (d == dbest && v < best) {
						best, dbest = v, d
					}
				}
			}
		}
	}
	return best, n
}

// Stitch merges fragments into a single mesh. Boundary vertices which lie
// within tol of an earlier boundary vertex are mapped onto the nearest such
// vertex, ties going to the lower index; their normals are averaged.
// Triangles which degenerate by merging are dropped.
//
// Fragments are processed in ascending order of their face ids, so the
// result does not depend on the order of the input slice. Fragments failing
// Validate are left out and counted as skipped.
func Stitch(fragments []Fragment, tol float64) (*Mesh3D, StitchStats) {
	var stats StitchStats
	order := make([]int, len(fragments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return fragments[order[i]].Face < fragments[order[j]].Face
	})
	m := &Mesh3D{}
	var normalSum []r3.Vec
	index := NewIndex(tol)
	position := func(i int) r3.Vec { return m.Vertices[i].Position }
	for _, i := range order {
		f := &fragments[i]
		if err := f.Validate(); err != nil {
			tracer().Errorf("skipping fragment: %v", err)
			stats.Skipped++
			continue
		}
		stats.Fragments++
		remap := make([]int, len(f.Vertices))
		for k, v := range f.Vertices {
			if f.Boundary[k] {
				stats.BoundaryVertices++
				target, n := index.Nearest(v.Position, position)
				if n > 1 {
					stats.ToleranceConflicts++
					tracer().Debugf("%d vertices within tolerance of %v", n, v.Position)
				}
				if target >= 0 {
					remap[k] = target
					normalSum[target] = r3.Add(normalSum[target], v.Normal)
					stats.Merged++
					continue
				}
			}
			remap[k] = len(m.Vertices)
			m.Vertices = append(m.Vertices, v)
			normalSum = append(normalSum, v.Normal)
			if f.Boundary[k] {
				index.Insert(v.Position, remap[k])
			}
		}
		for _, t := range f.Triangles {
			a, b, c := remap[t[0]], remap[t[1]], remap[t[2]]
			if a == b || b == c || c == a {
				stats.Collapsed++
				continue
			}
			m.Triangles = append(m.Triangles, Triangle{a, b, c})
			m.Faces = append(m.Faces, f.Face)
		}
	}
	for i, n := range normalSum {
		if l := r3.Norm(n); l > 0 && tessel.IsFinite(l) {
			m.Vertices[i].Normal = r3.Scale(1/l, n)
		}
	}
	tracer().Infof("stitched %d fragments: %d vertices, %d triangles, %d merged, %d conflicts",
		stats.Fragments, len(m.Vertices), len(m.Triangles), stats.Merged, stats.ToleranceConflicts)
	return m, stats
}
