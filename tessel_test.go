package tessel

import (
	"fmt"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
)

func TestNumericBasic(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	a := 0.000000008
	if !Is0(a) {
		t.Errorf("Expected a to be zero, is not")
	}
	if Zap(a) != 0 {
		t.Errorf("Expected zapped a to be exactly zero, is %g", Zap(a))
	}
}

func TestTranslation(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	p := Translation(P2(-1, -1)).Transform(P2(1, 1))
	if !Is0(p.X) || !Is0(p.Y) {
		t.Errorf("Expected (1,1) shifted (-1,-1) to be origin, is %s", PointString(p))
	}
}

func TestCombine(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	m := Translation(P2(2, 0)).Combine(Translation(P2(-0.5, 3)))
	p := m.Transform(P2(1, 1))
	assert.InDelta(t, 2.5, p.X, 1e-12)
	assert.InDelta(t, 4.0, p.Y, 1e-12)
	assert.True(t, m.Combine(Translation(P2(-1.5, -3))).IsIdentity())
	assert.True(t, Identity().IsIdentity())
	assert.False(t, m.IsIdentity())
}

func TestKindOf(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	err := fmt.Errorf("%w: loop 3 is open", ErrDegenerateInput)
	assert.Equal(t, KindDegenerateInput, KindOf(err))
	assert.Equal(t, KindNumericDegeneracy, KindOf(fmt.Errorf("span: %w", ErrNumericDegeneracy)))
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindOther, KindOf(fmt.Errorf("something else")))
	assert.Equal(t, "DegenerateInput", KindDegenerateInput.String())
}
