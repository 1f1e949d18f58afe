package trim

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/nurbs"
	"github.com/npillmayer/tessel/predicates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBuilder(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	l := NullLoop().Knot(tessel.P2(0, 0)).Knot(tessel.P2(3, 0)).Knot(tessel.P2(1, 3)).Knot(tessel.P2(0, 0)).Cycle()
	tracer().Infof("l = %s", l)
	assert.Equal(t, 3, l.N())
	assert.Equal(t, predicates.Left, l.Orientation())
	assert.InDelta(t, 4.5, l.SignedArea(), 1e-12)
	assert.NoError(t, l.Validate())
}

func TestBox(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	box := Box(tessel.P2(0, 5), tessel.P2(4, 1))
	tracer().Infof("box = %s", box)
	require.Equal(t, 4, box.N())
	assert.Equal(t, predicates.Left, box.Orientation())
	assert.InDelta(t, 16, box.SignedArea(), 1e-12)
	bb := box.Bounds()
	assert.Equal(t, tessel.P2(0, 1), bb.Min)
	assert.Equal(t, tessel.P2(4, 5), bb.Max)
}

func TestNormalize(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	box := Box(tessel.P2(0, 0), tessel.P2(1, 1))
	outer := Boundary{Loop: box.Reverse(), Role: Outer}.Normalize()
	assert.Equal(t, predicates.Left, outer.Loop.Orientation())
	assert.Equal(t, box[0], outer.Loop[0])
	hole := Boundary{Loop: box, Role: Hole}.Normalize()
	assert.Equal(t, predicates.Right, hole.Loop.Orientation())
	assert.Equal(t, "hole", hole.Role.String())
	same := Boundary{Loop: box, Role: Outer}.Normalize()
	assert.Equal(t, box, same.Loop)
}

func TestValidate(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	assert.ErrorIs(t, Loop{tessel.P2(0, 0), tessel.P2(1, 0)}.Validate(), ErrTooFewPoints)
	line := Loop{tessel.P2(0, 0), tessel.P2(1, 0), tessel.P2(2, 0)}
	assert.ErrorIs(t, line.Validate(), ErrZeroArea)
	bowtie := Loop{tessel.P2(0, 0), tessel.P2(3, 3), tessel.P2(3, 0), tessel.P2(0, 2)}
	assert.True(t, bowtie.SelfIntersects())
	err := bowtie.Validate()
	assert.ErrorIs(t, err, ErrSelfIntersect)
	assert.Equal(t, tessel.KindDegenerateInput, tessel.KindOf(err))
	assert.False(t, Box(tessel.P2(0, 0), tessel.P2(1, 1)).SelfIntersects())
	// a spike running back along its own edge
	spike := Loop{tessel.P2(0, 0), tessel.P2(2, 0), tessel.P2(2, 2), tessel.P2(2, 1), tessel.P2(0, 2)}
	assert.True(t, spike.SelfIntersects())
	// touching a vertex of a non-adjacent edge
	touch := Loop{tessel.P2(0, 0), tessel.P2(4, 0), tessel.P2(4, 4), tessel.P2(2, 0), tessel.P2(0, 4)}
	assert.True(t, touch.SelfIntersects())
}

func TestDedup(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	l := Loop{tessel.P2(0, 0), tessel.P2(1, 0), tessel.P2(1, 1e-9), tessel.P2(1, 1), tessel.P2(1e-9, 0)}
	d := l.Dedup(1e-6)
	assert.Equal(t, 3, d.N())
	assert.Equal(t, 5, l.Dedup(0).N())
}

func squareWithHole(t *testing.T) *Region {
	t.Helper()
	r, err := NewRegion([]Boundary{
		{Loop: Box(tessel.P2(0, 0), tessel.P2(4, 4)), Role: Outer},
		{Loop: Box(tessel.P2(1, 1), tessel.P2(2, 2)), Role: Hole},
	})
	require.NoError(t, err)
	return r
}

func TestRegion(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	r := squareWithHole(t)
	require.Len(t, r.Holes, 1)
	assert.Equal(t, predicates.Right, r.Holes[0].Orientation())
	assert.Len(t, r.Loops(), 2)
	assert.InDelta(t, 15, r.Area(), 1e-12)
	assert.Equal(t, r2.Box{Max: tessel.P2(4, 4)}, r.Bounds())
	assert.True(t, r.Contains(tessel.P2(3, 3)))
	assert.True(t, r.Contains(tessel.P2(0.5, 1.5)))
	assert.False(t, r.Contains(tessel.P2(1.5, 1.5)), "inside the hole")
	assert.False(t, r.Contains(tessel.P2(5, 1)), "outside")
	assert.InDelta(t, 0.5, r.Distance(tessel.P2(0.5, 1.5)), 1e-12)
	assert.InDelta(t, 0.5, r.Distance(tessel.P2(1.5, 1.5)), 1e-12)
}

func TestRegionErrors(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	_, err := NewRegion([]Boundary{{Loop: Box(tessel.P2(0, 0), tessel.P2(1, 1)), Role: Hole}})
	assert.ErrorIs(t, err, ErrNoOuterLoop)
	_, err = NewRegion([]Boundary{
		{Loop: Box(tessel.P2(0, 0), tessel.P2(1, 1)), Role: Outer},
		{Loop: Box(tessel.P2(2, 0), tessel.P2(3, 1)), Role: Outer},
	})
	assert.ErrorIs(t, err, tessel.ErrDegenerateInput)
	_, err = NewRegion([]Boundary{{Loop: Loop{tessel.P2(0, 0), tessel.P2(1, 1)}, Role: Outer}})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestUnwrap(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	uw := Unwrap(Loop{tessel.P2(0.1, 0), tessel.P2(6.2, 0.5), tessel.P2(0.1, 1)}, tau, 0)
	require.Len(t, uw.Loop, 3)
	assert.InDelta(t, 6.2-tau, uw.Loop[1].X, 1e-12)
	assert.InDelta(t, 0.1, uw.Loop[2].X, 1e-12)
	assert.Zero(t, uw.WrapU)
	assert.Zero(t, uw.WrapV)
	// non-periodic directions are left alone
	uw = Unwrap(Loop{tessel.P2(0, 0.1), tessel.P2(0, 6.2), tessel.P2(1, 0.1)}, tau, 0)
	assert.Equal(t, 6.2, uw.Loop[1].Y)
	assert.Zero(t, Unwrap(nil, tau, 0).WrapU)
}

// circle returns the loop of a circle around a cylinder at height v, with
// n steps in direction dir (+1 or -1).
func circle(v float64, n int, dir float64) Loop {
	tau := 2 * math.Pi
	l := NullLoop()
	for k := 0; k < n; k++ {
		u := math.Mod(dir*float64(k)*tau/float64(n)+tau, tau)
		l = l.Knot(tessel.P2(u, v))
	}
	return l
}

func TestUnwrapCircle(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	assert.Equal(t, 1, Unwrap(circle(0, 8, 1), tau, 0).WrapU)
	uw := Unwrap(circle(1, 8, -1), tau, 0)
	assert.Equal(t, -1, uw.WrapU)
	assert.InDelta(t, -7*math.Pi/4, uw.Loop[7].X, 1e-12)
}

func TestCloseSeamsCylinder(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	domain := r2.Box{Max: tessel.P2(tau, 1)}
	bounds, err := CloseSeams([]Boundary{
		{Loop: circle(0, 8, 1), Role: Outer},
		{Loop: circle(1, 8, -1), Role: Hole},
	}, domain, tau, 0)
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	outer := bounds[0]
	tracer().Infof("outer = %s", outer.Loop)
	assert.Equal(t, Outer, outer.Role)
	assert.Equal(t, 18, outer.Loop.N())
	assert.NoError(t, outer.Loop.Validate())
	assert.Equal(t, predicates.Left, outer.Loop.Orientation())
	assert.InDelta(t, tau, outer.Loop.SignedArea(), 1e-9)
	bb := outer.Loop.Bounds()
	assert.InDelta(t, 0, bb.Min.X, 1e-12)
	assert.InDelta(t, tau, bb.Max.X, 1e-12)
	r, err := NewRegion(bounds)
	require.NoError(t, err)
	assert.True(t, r.Contains(tessel.P2(3, 0.5)))
}

func TestCloseSeamsSingleLoop(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	domain := r2.Box{Max: tessel.P2(tau, 1)}
	bounds, err := CloseSeams([]Boundary{{Loop: circle(0.25, 8, 1), Role: Outer}}, domain, tau, 0)
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	l := bounds[0].Loop
	assert.NoError(t, l.Validate())
	assert.Equal(t, predicates.Left, l.Orientation())
	assert.InDelta(t, 0.75*tau, l.SignedArea(), 1e-9)
	assert.Equal(t, 1.0, l.Bounds().Max.Y)
}

func TestCloseSeamsKeepsInnerLoops(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	domain := r2.Box{Max: tessel.P2(tau, 1)}
	inner := Box(tessel.P2(1, 0.2), tessel.P2(2, 0.8))
	shifted := Box(tessel.P2(7, 0.2), tessel.P2(8, 0.8))
	in := []Boundary{{Loop: inner, Role: Outer}, {Loop: shifted, Role: Hole}}
	bounds, err := CloseSeams(in, domain, tau, 0)
	require.NoError(t, err)
	require.Len(t, bounds, 2)
	assert.Equal(t, inner, bounds[0].Loop)
	assert.InDelta(t, 7-tau, bounds[1].Loop.Bounds().Min.X, 1e-12)
	assert.Equal(t, Hole, bounds[1].Role)
	same, err := CloseSeams(in, domain, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, in, same)
}

func TestCloseSeamsErrors(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	domain := r2.Box{Max: tessel.P2(tau, 1)}
	twice := NullLoop()
	for k := 0; k < 16; k++ {
		twice = twice.Knot(tessel.P2(float64(k)*math.Pi/4, 0))
	}
	_, err := CloseSeams([]Boundary{{Loop: twice, Role: Outer}}, domain, tau, 0)
	assert.ErrorIs(t, err, ErrSeam)
	_, err = CloseSeams([]Boundary{
		{Loop: circle(0, 8, 1), Role: Outer},
		{Loop: circle(1, 8, 1), Role: Hole},
	}, domain, tau, 0)
	assert.ErrorIs(t, err, ErrSeam, "both loops run in the same direction")
	_, err = CloseSeams([]Boundary{
		{Loop: circle(0, 8, 1), Role: Outer},
		{Loop: Box(tessel.P2(1, 0.2), tessel.P2(2, 0.8)), Role: Outer},
	}, domain, tau, 0)
	assert.ErrorIs(t, err, ErrSeam)
}

func line(t *testing.T, a, b tessel.Point2) *nurbs.Curve {
	t.Helper()
	c, err := nurbs.NewCurve(1, nurbs.KnotVector{0, 0, 1, 1},
		[]r3.Vec{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}, nil)
	require.NoError(t, err)
	return c
}

func TestFromCurves(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	p, q, r := tessel.P2(0, 0), tessel.P2(1, 0), tessel.P2(0, 1)
	l, err := FromCurves([]*nurbs.Curve{line(t, p, q), line(t, q, r), line(t, r, p)}, 1e-3, 1e-9)
	require.NoError(t, err)
	tracer().Infof("l = %s", l)
	assert.Equal(t, 6, l.N())
	assert.Equal(t, p, l[0])
	assert.NoError(t, l.Validate())
	assert.Equal(t, predicates.Left, l.Orientation())
	_, err = FromCurves([]*nurbs.Curve{line(t, p, q), line(t, tessel.P2(1, 0.1), r), line(t, r, p)}, 1e-3, 0.01)
	assert.ErrorIs(t, err, ErrOpenLoop)
	_, err = FromCurves([]*nurbs.Curve{line(t, p, q), line(t, q, r)}, 1e-3, 0.01)
	assert.ErrorIs(t, err, ErrOpenLoop)
	_, err = FromCurves(nil, 1e-3, 0.01)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestFromPeriodicCurves(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	tau := 2 * math.Pi
	around := line(t, tessel.P2(0, 0.5), tessel.P2(tau, 0.5))
	l, err := FromPeriodicCurves([]*nurbs.Curve{around}, 1e-3, 1e-9, tau, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, l.N(), 8)
	assert.Equal(t, 1, Unwrap(l, tau, 0).WrapU)
	_, err = FromCurves([]*nurbs.Curve{around}, 1e-3, 1e-9)
	assert.ErrorIs(t, err, ErrOpenLoop, "not closed without the period")
}
