package tessellate

import (
	"math"

	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/trim"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// evaluator evaluates a surface with a cache. Parameters outside of the
// domain in a periodic direction are wrapped into the domain.
type evaluator struct {
	surf   Surface
	domain r2.Box
	pu, pv float64
	cache  map[r2.Vec]tessel.SurfacePoint
}

func newEvaluator(s Surface) *evaluator {
	pu, pv := s.Periods()
	return &evaluator{
		surf:   s,
		domain: s.Domain(),
		pu:     pu,
		pv:     pv,
		cache:  make(map[r2.Vec]tessel.SurfacePoint),
	}
}

func (ev *evaluator) at(p r2.Vec) (tessel.SurfacePoint, error) {
	if sp, ok := ev.cache[p]; ok {
		return sp, nil
	}
	q := r2.Vec{
		X: wrap(p.X, ev.domain.Min.X, ev.domain.Max.X, ev.pu),
		Y: wrap(p.Y, ev.domain.Min.Y, ev.domain.Max.Y, ev.pv),
	}
	sp, err := ev.surf.Evaluate(q.X, q.Y)
	if err != nil {
		return sp, err
	}
	ev.cache[p] = sp
	return sp, nil
}

// wrap moves x into [lo,hi] by whole periods.
func wrap(x, lo, hi, period float64) float64 {
	if period <= 0 || (x >= lo && x <= hi) {
		return x
	}
	return lo + math.Mod(math.Mod(x-lo, period)+period, period)
}

// diagonal is the length of the diagonal of the domain.
func (ev *evaluator) diagonal() float64 {
	return r2.Norm(r2.Sub(ev.domain.Max, ev.domain.Min))
}

// normalAngle returns the angle between two normals, or 0 if either is
// undefined. Angles below ε are 0.
func normalAngle(a, b tessel.SurfacePoint) float64 {
	if a.Degenerate || b.Degenerate {
		return 0
	}
	return tessel.Zap(math.Acos(math.Max(-1, math.Min(1, r3.Dot(a.Normal, b.Normal)))))
}

// chordDeviation returns the distance of the surface point at the middle
// of p and q from the midpoint of the chord between them.
func (ev *evaluator) chordDeviation(p, q r2.Vec, sp, sq tessel.SurfacePoint) (float64, error) {
	m, err := ev.at(r2.Scale(0.5, r2.Add(p, q)))
	if err != nil {
		return 0, err
	}
	mid := r3.Scale(0.5, r3.Add(sp.Point, sq.Point))
	return r3.Norm(r3.Sub(m.Point, mid)), nil
}

// cell is a cell of the sampling quadtree.
type cell struct {
	box   r2.Box
	depth int
}

// samples maps sample positions to the smallest extent of the cells they
// are a corner of.
type samples map[r2.Vec]float64

func (s samples) add(p r2.Vec, spacing float64) {
	if d, ok := s[p]; !ok || spacing < d {
		s[p] = spacing
	}
}

// sampleRegion samples the part of the surface within the bounds of a
// region on a quadtree. Starting from a grid of MinDivisions² cells, a cell
// is split in u or v if the chord deviation of its u- or v-edges exceeds
// the tolerance, and in both directions if the deviation at its centre or
// the angle between its corner normals is too large. Cells outside of the
// region are not split. The corners of the final cells are the samples.
func sampleRegion(ev *evaluator, region *trim.Region, opts Options) (samples, error) {
	bounds := region.Bounds()
	work := arraystack.New()
	n := opts.MinDivisions
	du := (bounds.Max.X - bounds.Min.X) / float64(n)
	dv := (bounds.Max.Y - bounds.Min.Y) / float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lo := r2.Vec{X: bounds.Min.X + float64(i)*du, Y: bounds.Min.Y + float64(j)*dv}
			hi := r2.Vec{X: bounds.Min.X + float64(i+1)*du, Y: bounds.Min.Y + float64(j+1)*dv}
			if i == n-1 {
				hi.X = bounds.Max.X
			}
			if j == n-1 {
				hi.Y = bounds.Max.Y
			}
			work.Push(cell{box: r2.Box{Min: lo, Max: hi}})
		}
	}
	result := make(samples)
	for !work.Empty() {
		v, _ := work.Pop()
		c := v.(cell)
		splitU, splitV, err := ev.refineCell(c, region, opts)
		if err != nil {
			return nil, err
		}
		if c.depth >= opts.MaxDepth {
			splitU, splitV = false, false
		}
		if !splitU && !splitV {
			b := c.box
			spacing := math.Min(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
			result.add(b.Min, spacing)
			result.add(r2.Vec{X: b.Max.X, Y: b.Min.Y}, spacing)
			result.add(b.Max, spacing)
			result.add(r2.Vec{X: b.Min.X, Y: b.Max.Y}, spacing)
			continue
		}
		for _, child := range c.split(splitU, splitV) {
			work.Push(child)
		}
	}
	tracer().Debugf("sampled surface with %d points", len(result))
	return result, nil
}

// refineCell decides whether a cell has to be split in u and in v.
func (ev *evaluator) refineCell(c cell, region *trim.Region, opts Options) (bool, bool, error) {
	b := c.box
	p00, p10 := b.Min, r2.Vec{X: b.Max.X, Y: b.Min.Y}
	p11, p01 := b.Max, r2.Vec{X: b.Min.X, Y: b.Max.Y}
	centre := r2.Scale(0.5, r2.Add(b.Min, b.Max))
	if !region.Contains(centre) && region.Distance(centre) > 0.5*r2.Norm(r2.Sub(b.Max, b.Min)) {
		return false, false, nil // no trim loop passes through the cell
	}
	var s [4]tessel.SurfacePoint
	for i, p := range []r2.Vec{p00, p10, p11, p01} {
		sp, err := ev.at(p)
		if err != nil {
			return false, false, err
		}
		s[i] = sp
	}
	devU, err := maxDeviation(ev, [][2]int{{0, 1}, {3, 2}}, []r2.Vec{p00, p10, p11, p01}, s[:])
	if err != nil {
		return false, false, err
	}
	devV, err := maxDeviation(ev, [][2]int{{0, 3}, {1, 2}}, []r2.Vec{p00, p10, p11, p01}, s[:])
	if err != nil {
		return false, false, err
	}
	sc, err := ev.at(centre)
	if err != nil {
		return false, false, err
	}
	avg := r3.Scale(0.25, r3.Add(r3.Add(s[0].Point, s[1].Point), r3.Add(s[2].Point, s[3].Point)))
	devC := r3.Norm(r3.Sub(sc.Point, avg))
	angle := 0.0
	for i := 0; i < 4; i++ {
		angle = math.Max(angle, normalAngle(s[i], sc))
		angle = math.Max(angle, normalAngle(s[i], s[(i+2)%4]))
	}
	if devC > opts.Tolerance || angle > opts.MaxNormalAngle {
		return true, true, nil
	}
	return devU > opts.Tolerance, devV > opts.Tolerance, nil
}

func maxDeviation(ev *evaluator, edges [][2]int, corners []r2.Vec, s []tessel.SurfacePoint) (float64, error) {
	dev := 0.0
	for _, e := range edges {
		d, err := ev.chordDeviation(corners[e[0]], corners[e[1]], s[e[0]], s[e[1]])
		if err != nil {
			return 0, err
		}
		dev = math.Max(dev, d)
	}
	return dev, nil
}

func (c cell) split(inU, inV bool) []cell {
	b := c.box
	mid := r2.Scale(0.5, r2.Add(b.Min, b.Max))
	us := []float64{b.Min.X, b.Max.X}
	if inU {
		us = []float64{b.Min.X, mid.X, b.Max.X}
	}
	vs := []float64{b.Min.Y, b.Max.Y}
	if inV {
		vs = []float64{b.Min.Y, mid.Y, b.Max.Y}
	}
	var children []cell
	for i := 0; i+1 < len(us); i++ {
		for j := 0; j+1 < len(vs); j++ {
			children = append(children, cell{
				box:   r2.Box{Min: r2.Vec{X: us[i], Y: vs[j]}, Max: r2.Vec{X: us[i+1], Y: vs[j+1]}},
				depth: c.depth + 1,
			})
		}
	}
	return children
}

// refineEdge appends the interior points of edge ab. The deviation is
// checked at the quarter points, so that a symmetric bulge is not missed.
func (ev *evaluator) refineEdge(a, b r2.Vec, out trim.Loop, depth int, opts Options) (trim.Loop, error) {
	if depth >= opts.MaxDepth {
		return out, nil
	}
	sa, err := ev.at(a)
	if err != nil {
		return nil, err
	}
	sb, err := ev.at(b)
	if err != nil {
		return nil, err
	}
	split := normalAngle(sa, sb) > opts.MaxNormalAngle
	for _, t := range []float64{0.25, 0.5, 0.75} {
		if split {
			break
		}
		st, err := ev.at(r2.Add(a, r2.Scale(t, r2.Sub(b, a))))
		if err != nil {
			return nil, err
		}
		chord := r3.Add(sa.Point, r3.Scale(t, r3.Sub(sb.Point, sa.Point)))
		split = r3.Norm(r3.Sub(st.Point, chord)) > opts.Tolerance
	}
	if !split {
		return out, nil
	}
	m := r2.Scale(0.5, r2.Add(a, b))
	if out, err = ev.refineEdge(a, m, out, depth+1, opts); err != nil {
		return nil, err
	}
	out = out.Knot(m)
	return ev.refineEdge(m, b, out, depth+1, opts)
}
