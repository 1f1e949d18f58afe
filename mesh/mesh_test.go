package mesh

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/tessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var up = r3.Vec{Z: 1}

// square returns a fragment of two triangles covering the unit square at
// (x,y) in the plane z=0, with all four corners on the boundary.
func square(face FaceID, x, y float64) Fragment {
	f := Fragment{Face: face}
	for _, p := range [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
		f.Vertices = append(f.Vertices, Vertex{Position: tessel.P3(x+p[0], y+p[1], 0), Normal: up})
		f.Boundary = append(f.Boundary, true)
	}
	f.Triangles = []Triangle{{0, 1, 2}, {0, 2, 3}}
	return f
}

func TestStitchTwoSquares(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	m, stats := Stitch([]Fragment{square(1, 0, 0), square(2, 1, 0)}, 1e-6)
	assert.Equal(t, 6, m.NumVertices())
	assert.Equal(t, 4, m.NumTriangles())
	assert.Equal(t, 2, stats.Merged)
	assert.Equal(t, 8, stats.BoundaryVertices)
	assert.Zero(t, stats.ToleranceConflicts)
	assert.Zero(t, stats.Collapsed)
	assert.Len(t, m.OpenEdges(), 6)
	assert.Equal(t, map[FaceID]int{1: 2, 2: 2}, m.FaceTriangles())
	assert.InDelta(t, 2, m.Area(), 1e-12)
	b := m.Bounds()
	assert.Equal(t, r3.Vec{}, b.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 1}, b.Max)
}

func TestStitchOrderIndependent(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	a, b := square(7, 0, 0), square(3, 1, 0)
	b.Vertices[0].Position.X += 1e-8 // within tolerance of a's corner
	m1, s1 := Stitch([]Fragment{a, b}, 1e-6)
	m2, s2 := Stitch([]Fragment{b, a}, 1e-6)
	assert.Equal(t, m1, m2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, FaceID(3), m1.Faces[0])
	assert.Len(t, m1.OpenEdges(), 6)
}

func TestStitchInteriorNotShared(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	a, b := square(1, 0, 0), square(2, 1, 0)
	b.Boundary[0] = false
	m, stats := Stitch([]Fragment{a, b}, 1e-6)
	assert.Equal(t, 7, m.NumVertices())
	assert.Equal(t, 1, stats.Merged)
	assert.Len(t, m.OpenEdges(), 8)
}

func TestStitchCollapsed(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	f := square(1, 0, 0)
	f.Vertices = append(f.Vertices, Vertex{Position: tessel.P3(1, 1e-9, 0), Normal: up})
	f.Boundary = append(f.Boundary, true)
	f.Triangles = append(f.Triangles, Triangle{1, 4, 2})
	m, stats := Stitch([]Fragment{f}, 1e-6)
	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, 2, m.NumTriangles())
	assert.Equal(t, 1, stats.Collapsed)
}

func TestStitchConflict(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	all := []bool{true, true, true}
	a := Fragment{
		Face: 1,
		Vertices: []Vertex{
			{Position: tessel.P3(0, 0, 0), Normal: up},
			{Position: tessel.P3(0.15, 0, 0), Normal: up},
			{Position: tessel.P3(0, 1, 0), Normal: up},
		},
		Boundary:  all,
		Triangles: []Triangle{{0, 1, 2}},
	}
	side := r3.Vec{X: 1}
	b := Fragment{
		Face: 2,
		Vertices: []Vertex{
			{Position: tessel.P3(0.07, 0, 0), Normal: side},
			{Position: tessel.P3(1, 1, 0), Normal: side},
			{Position: tessel.P3(0.5, 2, 0), Normal: side},
		},
		Boundary:  all,
		Triangles: []Triangle{{0, 1, 2}},
	}
	m, stats := Stitch([]Fragment{b, a}, 0.1)
	assert.Equal(t, 1, stats.ToleranceConflicts)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, Triangle{0, 3, 4}, m.Triangles[1], "merged onto the nearest vertex")
	s := 1 / math.Sqrt2
	n := m.Vertices[0].Normal
	assert.InDelta(t, s, n.X, 1e-12)
	assert.InDelta(t, s, n.Z, 1e-12)
	assert.Equal(t, up, m.Vertices[1].Normal)
}

func TestStitchSkipsInvalid(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	bad := square(2, 1, 0)
	bad.Triangles = append(bad.Triangles, Triangle{0, 1, 9})
	assert.ErrorIs(t, bad.Validate(), tessel.ErrDegenerateInput)
	m, stats := Stitch([]Fragment{square(1, 0, 0), bad}, 1e-6)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, m.NumTriangles())
}

func TestIndexAcrossBuckets(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	pts := []r3.Vec{tessel.P3(0.099, 0, 0), tessel.P3(0.3, 0, 0), tessel.P3(0.101, 0.001, 0)}
	position := func(i int) r3.Vec { return pts[i] }
	ix := NewIndex(0.1)
	for i, p := range pts[:2] {
		ix.Insert(p, i)
	}
	v, n := ix.Nearest(pts[2], position)
	assert.Equal(t, 0, v, "neighbour bucket is searched")
	assert.Equal(t, 1, n)
	v, n = ix.Nearest(tessel.P3(0.2, 0.05, 0), position)
	assert.Equal(t, -1, v)
	assert.Zero(t, n)
	ix.Insert(pts[2], 2)
	v, n = ix.Nearest(tessel.P3(0.1, 0, 0), position)
	assert.Equal(t, 0, v)
	assert.Equal(t, 2, n)
}

func TestBuffers(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	m, _ := Stitch([]Fragment{square(1, 0, 0)}, 1e-6)
	b := m.Buffers()
	assert.Len(t, b.Positions, 12)
	assert.Len(t, b.Normals, 12)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, b.Indices)
	assert.Equal(t, float32(1), b.Normals[2])
}

func TestWriteSTL(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	m, _ := Stitch([]Fragment{square(1, 0, 0), square(2, 1, 0)}, 1e-6)
	tris := m.Triangles3()
	require.Len(t, tris, 4)
	assert.Equal(t, 2.0, tris[2][1].X)
	path := filepath.Join(t.TempDir(), "squares.stl")
	require.NoError(t, m.WriteSTL(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(84))
	empty := &Mesh3D{}
	assert.Error(t, empty.WriteSTL(path))
}
