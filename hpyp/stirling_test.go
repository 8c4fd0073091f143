package hpyp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogKramp_MatchesDirectProduct(t *testing.T) {
	a, b := 1.5, 0.3
	direct := 1.0
	for i := 0; i < 6; i++ {
		direct *= a + float64(i)*b
	}
	assert.InDelta(t, math.Log(direct), logKramp(a, b, 6), 1e-12)
	assert.Equal(t, 0.0, logKramp(a, b, 0))
}

func TestLogStirling_SmallValues(t *testing.T) {
	d := 0.3
	st := stirlingFor(d, 4)

	// S_d(1,1) = 1
	assert.InDelta(t, 0.0, st.logStirling(1, 1), 1e-12)
	// S_d(2,1) = 1-d, S_d(2,2) = 1
	assert.InDelta(t, math.Log(1-d), st.logStirling(2, 1), 1e-12)
	assert.InDelta(t, 0.0, st.logStirling(2, 2), 1e-12)
	// S_d(3,2) = S_d(2,1) + (2-2d) S_d(2,2) = 3(1-d)
	assert.InDelta(t, math.Log(3*(1-d)), st.logStirling(3, 2), 1e-12)
	// S_d(3,1) = (1-d)(2-d)
	assert.InDelta(t, math.Log((1-d)*(2-d)), st.logStirling(3, 1), 1e-12)
	// out of range
	assert.True(t, math.IsInf(st.logStirling(3, 0), -1))
	assert.True(t, math.IsInf(st.logStirling(2, 3), -1))
}

func TestStirlingCache_ReusesTables(t *testing.T) {
	a := stirlingFor(0.25, 3)
	b := stirlingFor(0.25, 5)
	assert.Same(t, a, b)
	assert.InDelta(t, a.logStirling(3, 2), b.logStirling(3, 2), 0)
}

// Hyperparameter resampling draws a fresh continuous discount per depth
// every sweep; tables cached for abandoned discounts must be evicted, or
// the cache grows without bound over a training run.
func TestStirlingCache_BoundedUnderResampling(t *testing.T) {
	seq := []int{0, 1, 2, 1, 2, 0, 1, 2, 1, 0, 2, 2, 1, 0, 1}
	model, _, _ := newTestModel(t, VariantCompactStirling, seq, 3, 3, 51)
	for sweep := 0; sweep < 30; sweep++ {
		require.NoError(t, model.RunGibbsSampler(true))
	}
	globalStirling.mu.Lock()
	cached := len(globalStirling.tables)
	globalStirling.mu.Unlock()
	// at most one live discount per depth
	assert.LessOrEqual(t, cached, 4)
}

func TestLogAdd(t *testing.T) {
	assert.InDelta(t, math.Log(3), logAdd(math.Log(1), math.Log(2)), 1e-12)
	assert.InDelta(t, math.Log(2), logAdd(math.Inf(-1), math.Log(2)), 0)
	assert.InDelta(t, math.Log(2), logAdd(math.Log(2), math.Inf(-1)), 0)
}
