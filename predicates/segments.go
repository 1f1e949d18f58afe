package predicates

import "gonum.org/v1/gonum/spatial/r2"

// SegmentsCross is a predicate: do segments ab and cd cross in a single
// point which is interior to both of them? Touching at an endpoint and
// collinear overlap do not count as crossing.
func SegmentsCross(a, b, c, d r2.Vec) bool {
	abc, abd := Orient(a, b, c), Orient(a, b, d)
	if abc == Collinear || abd == Collinear || abc == abd {
		return false
	}
	cda, cdb := Orient(c, d, a), Orient(c, d, b)
	if cda == Collinear || cdb == Collinear || cda == cdb {
		return false
	}
	return true
}

// SegmentsIntersect is a predicate: do the closed segments ab and cd have
// at least one point in common?
func SegmentsIntersect(a, b, c, d r2.Vec) bool {
	abc, abd := Orient(a, b, c), Orient(a, b, d)
	cda, cdb := Orient(c, d, a), Orient(c, d, b)
	if abc != abd && cda != cdb && abc*abd <= 0 && cda*cdb <= 0 {
		if abc != Collinear || abd != Collinear {
			return true
		}
	}
	if abc == Collinear && abd == Collinear { // all four points collinear
		return inBox(c, a, b) || inBox(d, a, b) || inBox(a, c, d) || inBox(b, c, d)
	}
	switch {
	case abc == Collinear && inBox(c, a, b):
		return true
	case abd == Collinear && inBox(d, a, b):
		return true
	case cda == Collinear && inBox(a, c, d):
		return true
	case cdb == Collinear && inBox(b, c, d):
		return true
	}
	return false
}

// OnSegment is a predicate: is p collinear with a and b, and strictly between
// them? Endpoints do not count.
func OnSegment(p, a, b r2.Vec) bool {
	if p == a || p == b {
		return false
	}
	return Orient(a, b, p) == Collinear && inBox(p, a, b)
}

// InTriangle reports whether p is inside (1), on the boundary (0) or outside
// (-1) of the counter-clockwise triangle a, b, c.
func InTriangle(p, a, b, c r2.Vec) int {
	o1, o2, o3 := Orient(a, b, p), Orient(b, c, p), Orient(c, a, p)
	if o1 == Right || o2 == Right || o3 == Right {
		return -1
	}
	if o1 == Collinear || o2 == Collinear || o3 == Collinear {
		return 0
	}
	return 1
}

// inBox checks whether p is within the closed axis-aligned box spanned by a
// and b. For a point collinear with a and b this means p is on segment ab.
func inBox(p, a, b r2.Vec) bool {
	return between(p.X, a.X, b.X) && between(p.Y, a.Y, b.Y)
}

func between(x, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return a <= x && x <= b
}
