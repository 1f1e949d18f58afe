package analytic

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/tessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	xAxis = r3.Vec{X: 1}
	yAxis = r3.Vec{Y: 1}
	zAxis = r3.Vec{Z: 1}
)

type evaluator interface {
	Evaluate(u, v float64) (tessel.SurfacePoint, error)
}

// checkDerivatives compares the derivatives with central differences.
func checkDerivatives(t *testing.T, s evaluator, u, v float64) {
	t.Helper()
	h := 1e-6
	sp, err := s.Evaluate(u, v)
	require.NoError(t, err)
	pu0, _ := s.Evaluate(u-h, v)
	pu1, _ := s.Evaluate(u+h, v)
	pv0, _ := s.Evaluate(u, v-h)
	pv1, _ := s.Evaluate(u, v+h)
	du := r3.Scale(1/(2*h), r3.Sub(pu1.Point, pu0.Point))
	dv := r3.Scale(1/(2*h), r3.Sub(pv1.Point, pv0.Point))
	assert.InDelta(t, 0, r3.Norm(r3.Sub(du, sp.DU)), 1e-5, "dU at (%g,%g)", u, v)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(dv, sp.DV)), 1e-5, "dV at (%g,%g)", u, v)
}

func TestPlane(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	dom := r2.Box{Max: r2.Vec{X: 1, Y: 1}}
	p, err := NewPlane(r3.Vec{Z: 3}, xAxis, yAxis, dom)
	require.NoError(t, err)
	sp, err := p.Evaluate(0.25, 0.5)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0.25, Y: 0.5, Z: 3}, sp.Point)
	assert.Equal(t, zAxis, sp.Normal)
	assert.Equal(t, dom, p.Domain())
	_, err = NewPlane(r3.Vec{}, xAxis, r3.Scale(2, xAxis), dom)
	assert.ErrorIs(t, err, tessel.ErrDegenerateInput)
	_, err = p.Evaluate(math.NaN(), 0)
	assert.ErrorIs(t, err, tessel.ErrNumericDegeneracy)
}

func TestCylinder(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	c, err := NewCylinder(r3.Vec{}, zAxis, xAxis, 2, 0, 5)
	require.NoError(t, err)
	pu, pv := c.Periods()
	assert.Equal(t, 2*math.Pi, pu)
	assert.Zero(t, pv)
	sp, err := c.Evaluate(math.Pi/2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(r3.Vec{Y: 2, Z: 1}, sp.Point)), 1e-12)
	assert.InDelta(t, 1, r3.Dot(sp.Normal, yAxis), 1e-12, "normal points outwards")
	for _, uv := range [][2]float64{{0.3, 1}, {2, 4}, {5.5, 0.1}} {
		checkDerivatives(t, c, uv[0], uv[1])
	}
	_, err = NewCylinder(r3.Vec{}, zAxis, zAxis, 1, 0, 1)
	assert.ErrorIs(t, err, tessel.ErrDegenerateInput)
	_, err = NewCylinder(r3.Vec{}, zAxis, xAxis, -1, 0, 1)
	assert.ErrorIs(t, err, tessel.ErrDegenerateInput)
}

func TestSphere(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	s, err := NewSphere(r3.Vec{X: 1}, zAxis, xAxis, 3)
	require.NoError(t, err)
	for _, uv := range [][2]float64{{0.3, 1}, {2, -0.4}, {5.5, 0.1}} {
		sp, err := s.Evaluate(uv[0], uv[1])
		require.NoError(t, err)
		assert.InDelta(t, 3, r3.Norm(r3.Sub(sp.Point, s.Center)), 1e-12)
		radial := r3.Unit(r3.Sub(sp.Point, s.Center))
		assert.InDelta(t, 1, r3.Dot(radial, sp.Normal), 1e-12, "normal points outwards")
		checkDerivatives(t, s, uv[0], uv[1])
	}
	north, err := s.Evaluate(1, math.Pi/2)
	require.NoError(t, err)
	assert.True(t, north.Degenerate)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(r3.Vec{X: 1, Z: 3}, north.Point)), 1e-12)
	south, err := s.Evaluate(0, -math.Pi/2)
	require.NoError(t, err)
	assert.True(t, south.Degenerate)
}
