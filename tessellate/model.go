/*
Package tessellate turns the faces of a solid model into one triangle mesh.

Every face is a trimmed parametric surface: a Surface together with trim
loops in its parameter space. A face is tessellated on its own, in four
steps:

  - sample the surface adaptively on a quadtree until the chord deviation
    and the bending of the normals are within limits;
  - prepare the trim loops, closing loops across periodic seams and
    normalizing their winding;
  - triangulate loop vertices and inner samples with a constrained Delaunay
    triangulation, loop edges being constraints, and remove holes and the
    exterior;
  - lift the triangulation onto the surface.

Faces are processed in parallel. The resulting fragments are stitched
into one mesh in a single pass afterwards. A face which cannot be
tessellated is reported and left out; it never stops the other faces.

	m, report := tessellate.Tessellate(model, 0.01)
	report.Each(func(id tessellate.FaceID, o tessellate.Outcome) {
		...
	})

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package tessellate

import (
	"errors"
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/mesh"
	"github.com/npillmayer/tessel/nurbs"
	"github.com/npillmayer/tessel/trim"
	"gonum.org/v1/gonum/spatial/r2"
)

// tracer writes to trace with key 'tessel.tessellate'
func tracer() tracing.Trace {
	return tracing.Select("tessel.tessellate")
}

var (
	// ErrOptions indicates invalid tessellation options.
	ErrOptions = errors.New("invalid tessellation options")
	// ErrModel indicates a model which cannot be tessellated at all.
	ErrModel = errors.New("invalid model")
	// ErrPanic indicates a face whose tessellation panicked.
	ErrPanic = errors.New("tessellation of face panicked")
)

// Surface is a parametric surface. Evaluate must be safe for concurrent
// use. Periods returns the period in u and v of a closed surface, 0 for an
// open direction.
type Surface interface {
	Domain() r2.Box
	Evaluate(u, v float64) (tessel.SurfacePoint, error)
	Periods() (float64, float64)
}

// FaceID identifies a face within a model.
type FaceID = mesh.FaceID

// CurveLoop is a trim loop given as a chain of curves in parameter space.
// Only the x and y coordinates of the curves are used.
type CurveLoop struct {
	Curves []*nurbs.Curve
	Role   trim.Role
}

// Face is a trimmed surface. A face without any loops is bounded by the
// domain of its surface. If SameSense is false, the face normal is
// opposite to the surface normal.
type Face struct {
	ID        FaceID
	Surface   Surface
	Bounds    []trim.Boundary
	Curves    []CurveLoop
	SameSense bool
}

// Solid is a named set of faces.
type Solid struct {
	Name  string
	Faces []Face
}

// Model is a set of solids. Tolerance is the linear tolerance of the model
// in model units.
type Model struct {
	Name      string
	Tolerance float64
	Solids    []Solid
}

// Faces lists the faces of all solids, in order.
func (m *Model) Faces() []*Face {
	var faces []*Face
	for i := range m.Solids {
		for j := range m.Solids[i].Faces {
			faces = append(faces, &m.Solids[i].Faces[j])
		}
	}
	return faces
}

// Validate checks that face ids are unique. Problems of single faces, such
// as a missing surface, are reported per face during tessellation.
func (m *Model) Validate() error {
	seen := make(map[FaceID]bool)
	for _, f := range m.Faces() {
		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate face id %d", ErrModel, f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// FaceError is the error of a single face.
type FaceError struct {
	Face FaceID
	Err  error
}

func (e *FaceError) Error() string {
	return fmt.Sprintf("face %d: %v", e.Face, e.Err)
}

func (e *FaceError) Unwrap() error {
	return e.Err
}
