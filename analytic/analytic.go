/*
Package analytic provides surfaces given in closed form: planes, cylinders
and spheres. They evaluate to the same SurfacePoint as NURBS surfaces and
can be tessellated the same way; their derivatives are exact.

Parameterizations:

	Plane     P(u,v) = O + u·U + v·V
	Cylinder  P(u,v) = O + r·(cos u·X + sin u·Y) + v·Z       u ∈ [0,2π), periodic
	Sphere    P(u,v) = C + r·cos v·(cos u·X + sin u·Y)
	                     + r·sin v·Z                        u ∈ [0,2π), v ∈ [-π/2,π/2]

where X, Y, Z is a right-handed orthonormal frame. Normals point away from
the axis or centre.

# BSD License

# Copyright (c) Norbert Pillmayer

All rights reserved.

Please refer to the license file for more information.
*/
package analytic

import (
	"fmt"
	"math"

	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// poleEpsilon is the distance from a pole, in radians of latitude, below
// which a sphere point is flagged as degenerate.
const poleEpsilon = 1e-12

// frame is a right-handed orthonormal frame.
type frame struct {
	X, Y, Z r3.Vec
}

// newFrame builds a frame from an axis direction z and a reference
// direction x, which is made orthogonal to z.
func newFrame(z, x r3.Vec) (frame, error) {
	lz := r3.Norm(z)
	if lz == 0 || !tessel.IsFinite(lz) {
		return frame{}, fmt.Errorf("%w: axis direction %v", tessel.ErrDegenerateInput, z)
	}
	z = r3.Scale(1/lz, z)
	x = r3.Sub(x, r3.Scale(r3.Dot(x, z), z))
	lx := r3.Norm(x)
	if lx < 1e-12 {
		return frame{}, fmt.Errorf("%w: reference direction is parallel to axis", tessel.ErrDegenerateInput)
	}
	x = r3.Scale(1/lx, x)
	return frame{X: x, Y: r3.Cross(z, x), Z: z}, nil
}

// radial returns cos u·X + sin u·Y and its derivative by u.
func (f frame) radial(u float64) (r3.Vec, r3.Vec) {
	s, c := math.Sincos(u)
	return r3.Add(r3.Scale(c, f.X), r3.Scale(s, f.Y)),
		r3.Add(r3.Scale(-s, f.X), r3.Scale(c, f.Y))
}

func checkParams(u, v float64) error {
	if !tessel.IsFinite(u) || !tessel.IsFinite(v) {
		return fmt.Errorf("%w: parameter (%g,%g)", tessel.ErrNumericDegeneracy, u, v)
	}
	return nil
}

// --- Plane -----------------------------------------------------------------

// Plane is a bounded planar surface.
type Plane struct {
	Origin r3.Vec
	U, V   r3.Vec // directions of the u and v parameter lines
	domain r2.Box
}

// NewPlane creates a plane through origin, spanned by u and v, restricted to
// the given parameter domain.
func NewPlane(origin, u, v r3.Vec, domain r2.Box) (*Plane, error) {
	if r3.Norm(r3.Cross(u, v)) == 0 {
		return nil, fmt.Errorf("%w: plane directions are parallel", tessel.ErrDegenerateInput)
	}
	return &Plane{Origin: origin, U: u, V: v, domain: domain.Canon()}, nil
}

// Domain returns the parameter rectangle.
func (p *Plane) Domain() r2.Box { return p.domain }

// Periods returns 0, 0: a plane is open in both directions.
func (p *Plane) Periods() (float64, float64) { return 0, 0 }

// Evaluate returns the point and derivatives at (u,v).
func (p *Plane) Evaluate(u, v float64) (tessel.SurfacePoint, error) {
	if err := checkParams(u, v); err != nil {
		return tessel.SurfacePoint{}, err
	}
	pt := r3.Add(p.Origin, r3.Add(r3.Scale(u, p.U), r3.Scale(v, p.V)))
	return tessel.NewSurfacePoint(pt, p.U, p.V), nil
}

// --- Cylinder --------------------------------------------------------------

// Cylinder is a circular cylinder of finite height.
type Cylinder struct {
	Origin r3.Vec
	Radius float64
	frame  frame
	v0, v1 float64
}

// NewCylinder creates a cylinder around the axis through origin, with the
// seam u = 0 in direction refDir, extending from height v0 to v1.
func NewCylinder(origin, axis, refDir r3.Vec, radius, v0, v1 float64) (*Cylinder, error) {
	if !(radius > 0) || !tessel.IsFinite(radius) {
		return nil, fmt.Errorf("%w: cylinder radius %g", tessel.ErrDegenerateInput, radius)
	}
	if !(v1 > v0) {
		return nil, fmt.Errorf("%w: cylinder height [%g,%g]", tessel.ErrDegenerateInput, v0, v1)
	}
	f, err := newFrame(axis, refDir)
	if err != nil {
		return nil, err
	}
	return &Cylinder{Origin: origin, Radius: radius, frame: f, v0: v0, v1: v1}, nil
}

// Domain returns [0,2π] × [v0,v1].
func (c *Cylinder) Domain() r2.Box {
	return r2.Box{Min: r2.Vec{X: 0, Y: c.v0}, Max: r2.Vec{X: 2 * math.Pi, Y: c.v1}}
}

// Periods returns 2π for u.
func (c *Cylinder) Periods() (float64, float64) { return 2 * math.Pi, 0 }

// Evaluate returns the point and derivatives at (u,v).
func (c *Cylinder) Evaluate(u, v float64) (tessel.SurfacePoint, error) {
	if err := checkParams(u, v); err != nil {
		return tessel.SurfacePoint{}, err
	}
	rad, drad := c.frame.radial(u)
	pt := r3.Add(c.Origin, r3.Add(r3.Scale(c.Radius, rad), r3.Scale(v, c.frame.Z)))
	return tessel.NewSurfacePoint(pt, r3.Scale(c.Radius, drad), c.frame.Z), nil
}

// --- Sphere ----------------------------------------------------------------

// Sphere is a full sphere. The poles at v = ±π/2 are degenerate.
type Sphere struct {
	Center r3.Vec
	Radius float64
	frame  frame
}

// NewSphere creates a sphere with poles in direction ±axis and the seam
// u = 0 in direction refDir.
func NewSphere(center, axis, refDir r3.Vec, radius float64) (*Sphere, error) {
	if !(radius > 0) || !tessel.IsFinite(radius) {
		return nil, fmt.Errorf("%w: sphere radius %g", tessel.ErrDegenerateInput, radius)
	}
	f, err := newFrame(axis, refDir)
	if err != nil {
		return nil, err
	}
	return &Sphere{Center: center, Radius: radius, frame: f}, nil
}

// Domain returns [0,2π] × [-π/2,π/2].
func (s *Sphere) Domain() r2.Box {
	return r2.Box{Min: r2.Vec{X: 0, Y: -math.Pi / 2}, Max: r2.Vec{X: 2 * math.Pi, Y: math.Pi / 2}}
}

// Periods returns 2π for u. Latitude is not periodic.
func (s *Sphere) Periods() (float64, float64) { return 2 * math.Pi, 0 }

// Evaluate returns the point and derivatives at (u,v).
func (s *Sphere) Evaluate(u, v float64) (tessel.SurfacePoint, error) {
	if err := checkParams(u, v); err != nil {
		return tessel.SurfacePoint{}, err
	}
	rad, drad := s.frame.radial(u)
	sv, cv := math.Sincos(v)
	r := s.Radius
	pt := r3.Add(s.Center, r3.Add(r3.Scale(r*cv, rad), r3.Scale(r*sv, s.frame.Z)))
	du := r3.Scale(r*cv, drad)
	dv := r3.Add(r3.Scale(-r*sv, rad), r3.Scale(r*cv, s.frame.Z))
	sp := tessel.NewSurfacePoint(pt, du, dv)
	if math.Abs(cv) < poleEpsilon {
		sp.Degenerate = true
		sp.Normal = r3.Vec{}
	}
	return sp, nil
}
