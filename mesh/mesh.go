/*
Package mesh holds the triangle meshes produced by tessellation.

Every face of a model is tessellated on its own into a Fragment. A
Fragment knows which of its vertices lie on the boundary of the face.
Stitch merges fragments into one Mesh3D, sharing boundary vertices of
adjacent faces which coincide within a tolerance. Interior vertices are
never shared.

	m, stats := mesh.Stitch(fragments, 1e-6)
	if open := m.OpenEdges(); len(open) > 0 {
		...
	}

A Mesh3D can be handed to a renderer as flat buffers (Buffers) or written
to an STL file (WriteSTL).

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r3"
)

// tracer writes to trace with key 'tessel.mesh'
func tracer() tracing.Trace {
	return tracing.Select("tessel.mesh")
}

// FaceID identifies the face of a model a fragment stems from.
type FaceID int

// Vertex is a mesh vertex in model space.
type Vertex struct {
	Position tessel.Point3
	Normal   tessel.Point3
}

// Triangle holds three vertex indices in counter-clockwise order, seen from
// the side the normals point to.
type Triangle [3]int

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B int
}

func edge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// Fragment is the tessellation of a single face.
type Fragment struct {
	Face      FaceID
	Vertices  []Vertex
	Boundary  []bool // Boundary[i] is set for vertices on a trimming loop
	Triangles []Triangle
}

// Validate checks that the buffers of a fragment fit together.
func (f *Fragment) Validate() error {
	if len(f.Boundary) != len(f.Vertices) {
		return fmt.Errorf("%w: fragment of face %d has %d boundary flags for %d vertices",
			tessel.ErrDegenerateInput, f.Face, len(f.Boundary), len(f.Vertices))
	}
	for i, t := range f.Triangles {
		for _, v := range t {
			if v < 0 || v >= len(f.Vertices) {
				return fmt.Errorf("%w: triangle %d of face %d refers to vertex %d",
					tessel.ErrDegenerateInput, i, f.Face, v)
			}
		}
	}
	return nil
}

// Mesh3D is a triangle mesh with shared vertices. Faces[i] is the face
// triangle i belongs to.
type Mesh3D struct {
	Vertices  []Vertex
	Triangles []Triangle
	Faces     []FaceID
}

// NumVertices returns the number of vertices.
func (m *Mesh3D) NumVertices() int {
	return len(m.Vertices)
}

// NumTriangles returns the number of triangles.
func (m *Mesh3D) NumTriangles() int {
	return len(m.Triangles)
}

// Bounds returns the bounding box of all vertices. The box of an empty
// mesh is the zero box.
func (m *Mesh3D) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	inf := math.Inf(1)
	b := r3.Box{Min: r3.Vec{X: inf, Y: inf, Z: inf}, Max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, v := range m.Vertices {
		p := v.Position
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// Edges counts the triangles incident to every edge.
func (m *Mesh3D) Edges() map[Edge]int {
	edges := make(map[Edge]int, 3*len(m.Triangles)/2)
	for _, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			edges[edge(t[k], t[(k+1)%3])]++
		}
	}
	return edges
}

// OpenEdges returns the edges with only one incident triangle, sorted. A
// closed (watertight) mesh has none.
func (m *Mesh3D) OpenEdges() []Edge {
	var open []Edge
	for e, n := range m.Edges() {
		if n == 1 {
			open = append(open, e)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].A != open[j].A {
			return open[i].A < open[j].A
		}
		return open[i].B < open[j].B
	})
	return open
}

// FaceTriangles returns the number of triangles per face.
func (m *Mesh3D) FaceTriangles() map[FaceID]int {
	count := make(map[FaceID]int)
	for _, f := range m.Faces {
		count[f]++
	}
	return count
}

// Buffers is a mesh in the flat layout of GPU vertex and index buffers:
// three float32 per position and normal, three indices per triangle.
type Buffers struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// Buffers converts the mesh to render buffers.
func (m *Mesh3D) Buffers() Buffers {
	b := Buffers{
		Positions: make([]float32, 0, 3*len(m.Vertices)),
		Normals:   make([]float32, 0, 3*len(m.Vertices)),
		Indices:   make([]uint32, 0, 3*len(m.Triangles)),
	}
	for _, v := range m.Vertices {
		b.Positions = append(b.Positions, float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z))
		b.Normals = append(b.Normals, float32(v.Normal.X), float32(v.Normal.Y), float32(v.Normal.Z))
	}
	for _, t := range m.Triangles {
		b.Indices = append(b.Indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	return b
}

// Area returns the total area of all triangles.
func (m *Mesh3D) Area() float64 {
	a := 0.0
	for _, t := range m.Triangles {
		p, q, r := m.Vertices[t[0]].Position, m.Vertices[t[1]].Position, m.Vertices[t[2]].Position
		a += r3.Norm(r3.Cross(r3.Sub(q, p), r3.Sub(r, p))) / 2
	}
	return a
}
