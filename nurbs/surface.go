package nurbs

import (
	"fmt"
	"math"

	"github.com/npillmayer/tessel"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// SurfacePoint is a point on a surface together with its first partial
// derivatives and normal.
type SurfacePoint = tessel.SurfacePoint

// Surface is a tensor product B-spline surface, rational if weights are
// given. Control[i][j] is the control point with index i in u-direction and
// index j in v-direction.
type Surface struct {
	DegreeU, DegreeV int
	KnotsU, KnotsV   KnotVector
	Control          [][]r3.Vec
	Weights          [][]float64 // nil for a non-rational surface
}

// NewSurface creates a surface and validates it.
func NewSurface(degreeU, degreeV int, knotsU, knotsV KnotVector, control [][]r3.Vec,
	weights [][]float64) (*Surface, error) {
	//
	s := &Surface{
		DegreeU: degreeU, DegreeV: degreeV,
		KnotsU: knotsU, KnotsV: knotsV,
		Control: control, Weights: weights,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the consistency of degrees, knots, control net and
// weights.
func (s *Surface) Validate() error {
	nu := len(s.Control)
	if nu == 0 || len(s.Control[0]) == 0 {
		return ErrNoControlPoints
	}
	nv := len(s.Control[0])
	for i, row := range s.Control {
		if len(row) != nv {
			return fmt.Errorf("%w: control row %d has %d points, expected %d", ErrNoControlPoints, i, len(row), nv)
		}
		for j, p := range row {
			if !tessel.Finite3(p) {
				return fmt.Errorf("%w: control point (%d,%d)", ErrNonFinite, i, j)
			}
		}
	}
	if err := s.KnotsU.Validate(s.DegreeU, nu); err != nil {
		return fmt.Errorf("u-direction: %w", err)
	}
	if err := s.KnotsV.Validate(s.DegreeV, nv); err != nil {
		return fmt.Errorf("v-direction: %w", err)
	}
	if s.Weights == nil {
		return nil
	}
	if len(s.Weights) != nu {
		return fmt.Errorf("%w: %d weight rows for %d control rows", ErrWeight, len(s.Weights), nu)
	}
	for i, row := range s.Weights {
		if len(row) != nv {
			return fmt.Errorf("%w: weight row %d", ErrWeight, i)
		}
		for j, w := range row {
			if !(w > 0) || !tessel.IsFinite(w) {
				return fmt.Errorf("%w: weight (%d,%d) is %g", ErrWeight, i, j, w)
			}
		}
	}
	return nil
}

// IsRational is a predicate: does the surface carry weights?
func (s *Surface) IsRational() bool {
	return s.Weights != nil
}

// Domain returns the parameter rectangle of the surface.
func (s *Surface) Domain() r2.Box {
	u0, u1 := s.KnotsU.Domain(s.DegreeU)
	v0, v1 := s.KnotsV.Domain(s.DegreeV)
	return r2.Box{Min: r2.Vec{X: u0, Y: v0}, Max: r2.Vec{X: u1, Y: v1}}
}

func (s *Surface) weight(i, j int) float64 {
	if s.Weights == nil {
		return 1
	}
	return s.Weights[i][j]
}

func (s *Surface) homogeneous(i, j int) homog {
	return lift(s.Control[i][j], s.weight(i, j))
}

func (s *Surface) clamp(u, v float64) (float64, float64, error) {
	if math.IsNaN(u) || math.IsNaN(v) {
		return 0, 0, fmt.Errorf("%w: parameter is NaN", ErrNonFinite)
	}
	d := s.Domain()
	u = math.Max(d.Min.X, math.Min(d.Max.X, u))
	v = math.Max(d.Min.Y, math.Min(d.Max.Y, v))
	return u, v, nil
}

// Point computes the point of the surface at (u,v) by de Boor's algorithm,
// first along v for each affected control row, then along u.
func (s *Surface) Point(u, v float64) (r3.Vec, error) {
	u, v, err := s.clamp(u, v)
	if err != nil {
		return r3.Vec{}, err
	}
	p, q := s.DegreeU, s.DegreeV
	uspan := s.KnotsU.FindSpan(p, u)
	vspan := s.KnotsV.FindSpan(q, v)
	rows := make([]homog, p+1)
	d := make([]homog, q+1)
	for r := 0; r <= p; r++ {
		i := uspan - p + r
		for c := 0; c <= q; c++ {
			d[c] = s.homogeneous(i, vspan-q+c)
		}
		rows[r] = deBoor(s.KnotsV, q, vspan, v, d)
	}
	return deBoor(s.KnotsU, p, uspan, u, rows).project()
}

// Evaluate computes the point, the first partial derivatives and the
// normal at (u,v). Parameters are clamped to the domain.
func (s *Surface) Evaluate(u, v float64) (SurfacePoint, error) {
	pt, err := s.Point(u, v)
	if err != nil {
		return SurfacePoint{}, err
	}
	skl, err := s.Derivatives(u, v, 1)
	if err != nil {
		return SurfacePoint{}, err
	}
	return tessel.NewSurfacePoint(pt, skl[1][0], skl[0][1]), nil
}

// Derivatives computes all partial derivatives up to total order d at
// (u,v): skl[k][l] is the derivative k times by u and l times by v
// (A3.6 on the homogeneous net, then A4.4 for rational surfaces).
func (s *Surface) Derivatives(u, v float64, d int) ([][]r3.Vec, error) {
	u, v, err := s.clamp(u, v)
	if err != nil {
		return nil, err
	}
	p, q := s.DegreeU, s.DegreeV
	uspan := s.KnotsU.FindSpan(p, u)
	vspan := s.KnotsV.FindSpan(q, v)
	du, dv := min(d, p), min(d, q)
	Nu := s.KnotsU.DersBasisFuncs(uspan, p, du, u)
	Nv := s.KnotsV.DersBasisFuncs(vspan, q, dv, v)
	sklw := make([][]homog, d+1)
	for k := range sklw {
		sklw[k] = make([]homog, d+1)
	}
	temp := make([]homog, q+1)
	for k := 0; k <= du; k++ {
		for c := 0; c <= q; c++ {
			temp[c] = homog{}
			for r := 0; r <= p; r++ {
				temp[c] = temp[c].add(s.homogeneous(uspan-p+r, vspan-q+c).scale(Nu[k][r]))
			}
		}
		for l := 0; l <= min(d-k, dv); l++ {
			for c := 0; c <= q; c++ {
				sklw[k][l] = sklw[k][l].add(temp[c].scale(Nv[l][c]))
			}
		}
	}
	w0 := sklw[0][0].w
	if w0 == 0 || !tessel.IsFinite(w0) {
		return nil, fmt.Errorf("%w: weight at (%g,%g)", ErrNonFinite, u, v)
	}
	skl := make([][]r3.Vec, d+1)
	for k := range skl {
		skl[k] = make([]r3.Vec, d+1)
	}
	for k := 0; k <= d; k++ {
		for l := 0; l <= d-k; l++ {
			vec := sklw[k][l].p
			for j := 1; j <= l; j++ {
				vec = r3.Sub(vec, r3.Scale(binomial(l, j)*sklw[0][j].w, skl[k][l-j]))
			}
			for i := 1; i <= k; i++ {
				vec = r3.Sub(vec, r3.Scale(binomial(k, i)*sklw[i][0].w, skl[k-i][l]))
				var v2 r3.Vec
				for j := 1; j <= l; j++ {
					v2 = r3.Add(v2, r3.Scale(binomial(l, j)*sklw[i][j].w, skl[k-i][l-j]))
				}
				vec = r3.Sub(vec, r3.Scale(binomial(k, i), v2))
			}
			skl[k][l] = r3.Scale(1/w0, vec)
			if !tessel.Finite3(skl[k][l]) {
				return nil, fmt.Errorf("%w: derivative (%d,%d) at (%g,%g)", ErrNonFinite, k, l, u, v)
			}
		}
	}
	return skl, nil
}

// closureSamples is the number of samples compared along a boundary when
// testing for closedness.
const closureSamples = 9

// ClosedU is a predicate: do the boundaries u = min and u = max coincide
// within tol?
func (s *Surface) ClosedU(tol float64) bool {
	d := s.Domain()
	return s.closed(tol, func(t float64) (r2.Vec, r2.Vec) {
		v := d.Min.Y + t*(d.Max.Y-d.Min.Y)
		return r2.Vec{X: d.Min.X, Y: v}, r2.Vec{X: d.Max.X, Y: v}
	})
}

// ClosedV is a predicate: do the boundaries v = min and v = max coincide
// within tol?
func (s *Surface) ClosedV(tol float64) bool {
	d := s.Domain()
	return s.closed(tol, func(t float64) (r2.Vec, r2.Vec) {
		u := d.Min.X + t*(d.Max.X-d.Min.X)
		return r2.Vec{X: u, Y: d.Min.Y}, r2.Vec{X: u, Y: d.Max.Y}
	})
}

func (s *Surface) closed(tol float64, boundary func(t float64) (r2.Vec, r2.Vec)) bool {
	for i := 0; i < closureSamples; i++ {
		a, b := boundary(float64(i) / float64(closureSamples-1))
		pa, err1 := s.Point(a.X, a.Y)
		pb, err2 := s.Point(b.X, b.Y)
		if err1 != nil || err2 != nil || r3.Norm(r3.Sub(pa, pb)) > tol {
			return false
		}
	}
	return true
}

// Periods returns the period of the surface in u and v, i.e. the width of
// the domain in a closed direction, or 0 for an open direction. Closedness
// is tested relative to the size of the control net.
func (s *Surface) Periods() (float64, float64) {
	tol := 1e-9 * math.Max(s.controlDiagonal(), 1)
	d := s.Domain()
	var pu, pv float64
	if s.ClosedU(tol) {
		pu = d.Max.X - d.Min.X
	}
	if s.ClosedV(tol) {
		pv = d.Max.Y - d.Min.Y
	}
	return pu, pv
}

func (s *Surface) controlDiagonal() float64 {
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, row := range s.Control {
		for _, p := range row {
			lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	return r3.Norm(r3.Sub(hi, lo))
}
