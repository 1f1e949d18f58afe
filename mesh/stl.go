package mesh

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/npillmayer/tessel"
)

// Triangles3 returns the triangles of the mesh as free-standing sdfx
// triangles.
func (m *Mesh3D) Triangles3() []*sdf.Triangle3 {
	tris := make([]*sdf.Triangle3, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		var tri sdf.Triangle3
		for k, v := range t {
			p := m.Vertices[v].Position
			tri[k] = v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
		}
		tris = append(tris, &tri)
	}
	return tris
}

// WriteSTL writes the mesh as a binary STL file.
func (m *Mesh3D) WriteSTL(path string) error {
	if len(m.Triangles) == 0 {
		return fmt.Errorf("%w: no triangles to write", tessel.ErrDegenerateInput)
	}
	tracer().Infof("writing %d triangles to %s", len(m.Triangles), path)
	return render.SaveSTL(path, m.Triangles3())
}
