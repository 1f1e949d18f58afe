package predicates

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

// --- brute force reference with rationals -----------------------------------

func rat(x float64) *big.Rat {
	return new(big.Rat).SetFloat64(x)
}

func ratOrient(a, b, c r2.Vec) int {
	acx := new(big.Rat).Sub(rat(a.X), rat(c.X))
	bcy := new(big.Rat).Sub(rat(b.Y), rat(c.Y))
	acy := new(big.Rat).Sub(rat(a.Y), rat(c.Y))
	bcx := new(big.Rat).Sub(rat(b.X), rat(c.X))
	l := new(big.Rat).Mul(acx, bcy)
	r := new(big.Rat).Mul(acy, bcx)
	return l.Sub(l, r).Sign()
}

func ratInCircle(a, b, c, d r2.Vec) int {
	row := func(p r2.Vec) [3]*big.Rat {
		dx := new(big.Rat).Sub(rat(p.X), rat(d.X))
		dy := new(big.Rat).Sub(rat(p.Y), rat(d.Y))
		l := new(big.Rat).Mul(dx, dx)
		l.Add(l, new(big.Rat).Mul(dy, dy))
		return [3]*big.Rat{dx, dy, l}
	}
	m := [3][3]*big.Rat{row(a), row(b), row(c)}
	minor := func(i, j, k, l *big.Rat) *big.Rat {
		x := new(big.Rat).Mul(i, l)
		return x.Sub(x, new(big.Rat).Mul(j, k))
	}
	det := new(big.Rat).Mul(m[0][0], minor(m[1][1], m[1][2], m[2][1], m[2][2]))
	det.Sub(det, new(big.Rat).Mul(m[0][1], minor(m[1][0], m[1][2], m[2][0], m[2][2])))
	det.Add(det, new(big.Rat).Mul(m[0][2], minor(m[1][0], m[1][1], m[2][0], m[2][1])))
	return det.Sign()
}

func perturb(rnd *rand.Rand, x float64) float64 {
	steps := rnd.Intn(7) - 3
	for ; steps > 0; steps-- {
		x = math.Nextafter(x, math.Inf(1))
	}
	for ; steps < 0; steps++ {
		x = math.Nextafter(x, math.Inf(-1))
	}
	return x
}

// --- Tests -----------------------------------------------------------------

func TestOrientSimple(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	a, b := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0}
	assert.Equal(t, Left, Orient(a, b, r2.Vec{X: 0.5, Y: 1}))
	assert.Equal(t, Right, Orient(a, b, r2.Vec{X: 0.5, Y: -1}))
	assert.Equal(t, Collinear, Orient(a, b, r2.Vec{X: 7, Y: 0}))
}

func TestOrientNearCollinear(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	rnd := rand.New(rand.NewSource(4711))
	for i := 0; i < 2000; i++ {
		// points on a line y = m*x + q, then perturbed by a few ulps
		m, q := rnd.Float64()*3-1.5, rnd.Float64()*10
		x0, x1, x2 := rnd.Float64()*100, rnd.Float64()*100, rnd.Float64()*100
		a := r2.Vec{X: perturb(rnd, x0), Y: perturb(rnd, m*x0+q)}
		b := r2.Vec{X: perturb(rnd, x1), Y: perturb(rnd, m*x1+q)}
		c := r2.Vec{X: perturb(rnd, x2), Y: perturb(rnd, m*x2+q)}
		want := ratOrient(a, b, c)
		if got := int(Orient(a, b, c)); got != want {
			t.Fatalf("orient(%v,%v,%v) = %d, exact sign is %d", a, b, c, got, want)
		}
	}
}

func TestOrientClassicFailure(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	// the classic example where naive float evaluation gets the sign wrong
	// (Kettner et al., "Classroom examples of robustness problems")
	b := r2.Vec{X: 12, Y: 12}
	c := r2.Vec{X: 24, Y: 24}
	_, exactBefore := Stats()
	for i := 0; i < 64; i++ {
		for j := 0; j < 64; j++ {
			a := r2.Vec{X: 0.5 + float64(i)*math.Pow(2, -53), Y: 0.5 + float64(j)*math.Pow(2, -53)}
			assert.Equal(t, ratOrient(a, b, c), int(Orient(a, b, c)))
		}
	}
	_, exactAfter := Stats()
	assert.Greater(t, exactAfter, exactBefore, "near-collinear input should need exact arithmetic")
}

func TestInCircleSimple(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	a, b, c := r2.Vec{X: 1, Y: 0}, r2.Vec{X: 0, Y: 1}, r2.Vec{X: -1, Y: 0}
	assert.Equal(t, Inside, InCircle(a, b, c, r2.Vec{X: 0, Y: 0}))
	assert.Equal(t, Inside, InCircle(c, b, a, r2.Vec{X: 0, Y: 0}), "winding must not matter")
	assert.Equal(t, Outside, InCircle(a, b, c, r2.Vec{X: 2, Y: 2}))
	assert.Equal(t, OnCircle, InCircle(a, b, c, r2.Vec{X: 0, Y: -1}))
	assert.Equal(t, Outside, InCircle(a, r2.Vec{X: 2, Y: 0}, r2.Vec{X: 3, Y: 0}, r2.Vec{X: 0, Y: 0}))
}

func TestInCircleNearCocircular(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	rnd := rand.New(rand.NewSource(815))
	for i := 0; i < 2000; i++ {
		cx, cy, r := rnd.Float64()*10, rnd.Float64()*10, 0.5+rnd.Float64()*5
		pt := func() r2.Vec {
			phi := rnd.Float64() * 2 * math.Pi
			return r2.Vec{X: perturb(rnd, cx+r*math.Cos(phi)), Y: perturb(rnd, cy+r*math.Sin(phi))}
		}
		a, b, c, d := pt(), pt(), pt(), pt()
		o := ratOrient(a, b, c)
		if o == 0 {
			continue
		}
		want := ratInCircle(a, b, c, d) * o
		if got := int(InCircle(a, b, c, d)); got != want {
			t.Fatalf("incircle(%v,%v,%v,%v) = %d, exact sign is %d", a, b, c, d, got, want)
		}
	}
}

func TestInCircleGrid(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	// corners of a unit square are exactly cocircular
	a, b, c, d := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0}, r2.Vec{X: 1, Y: 1}, r2.Vec{X: 0, Y: 1}
	assert.Equal(t, OnCircle, InCircle(a, b, c, d))
	scale := 0.1
	a2, b2, c2, d2 := r2.Scale(scale, a), r2.Scale(scale, b), r2.Scale(scale, c), r2.Scale(scale, d)
	assert.Equal(t, ratInCircle(a2, b2, c2, d2), int(InCircle(a2, b2, c2, d2)))
}

func TestSegments(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	p := func(x, y float64) r2.Vec { return r2.Vec{X: x, Y: y} }
	assert.True(t, SegmentsCross(p(0, 0), p(2, 2), p(0, 2), p(2, 0)))
	assert.False(t, SegmentsCross(p(0, 0), p(2, 2), p(1, 1), p(2, 0)), "touching is not crossing")
	assert.True(t, SegmentsIntersect(p(0, 0), p(2, 2), p(1, 1), p(2, 0)))
	assert.True(t, SegmentsIntersect(p(0, 0), p(2, 0), p(1, 0), p(3, 0)), "collinear overlap")
	assert.False(t, SegmentsIntersect(p(0, 0), p(1, 0), p(2, 0), p(3, 0)))
	assert.False(t, SegmentsIntersect(p(0, 0), p(1, 1), p(0, 1), p(0.4, 0.6)))
	assert.True(t, OnSegment(p(1, 1), p(0, 0), p(2, 2)))
	assert.False(t, OnSegment(p(2, 2), p(0, 0), p(2, 2)))
	assert.False(t, OnSegment(p(3, 3), p(0, 0), p(2, 2)))
	assert.Equal(t, 1, InTriangle(p(0.2, 0.2), p(0, 0), p(1, 0), p(0, 1)))
	assert.Equal(t, 0, InTriangle(p(0.5, 0), p(0, 0), p(1, 0), p(0, 1)))
	assert.Equal(t, -1, InTriangle(p(1, 1), p(0, 0), p(1, 0), p(0, 1)))
}
