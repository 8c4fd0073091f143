package hpyp

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, v Variant, seq []int, numTypes, maxDepth int, seed int64) (*Model, *NodeManager, *Factory) {
	t.Helper()
	factory, err := NewFactory(v)
	require.NoError(t, err)
	nm, err := NewNodeManager(factory, numTypes, maxDepth)
	require.NoError(t, err)
	params, err := NewSimpleParameters(maxDepth, 0.5, 1.0, 1, 1, 1, 1)
	require.NoError(t, err)
	model, err := NewModel(seq, nm, params, seed)
	require.NoError(t, err)
	return model, nm, factory
}

func TestNewModel_RejectsOutOfRangeSymbols(t *testing.T) {
	factory, _ := NewFactory(VariantFull)
	nm, _ := NewNodeManager(factory, 2, 3)
	params, _ := NewSimpleParameters(3, 0.5, 1.0, 1, 1, 1, 1)

	var cfgErr *ConfigurationError
	_, err := NewModel([]int{0, 1, 2}, nm, params, 1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = NewModel([]int{0, -1}, nm, params, 1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

// Every variant yields the same closed-form answer after a single seated
// observation: one customer at one table in the root, no deeper context.
func TestModel_SingleObservationProbability(t *testing.T) {
	for _, v := range allVariants() {
		t.Run(v.String(), func(t *testing.T) {
			model, _, _ := newTestModel(t, v, []int{0}, 3, 2, 1)
			model.BuildTree(1)

			dist, err := model.PredictiveDistribution(0, 0)
			if err != nil {
				t.Fatal(err)
			}
			// (1-d)/(1+theta) + (theta+d)/(1+theta) * 1/3 with d=0.5, theta=1
			if math.Abs(dist[0]-0.5) > 1e-12 {
				t.Errorf("p(0) = %v, want 0.5", dist[0])
			}
			if math.Abs(dist[1]-0.25) > 1e-12 {
				t.Errorf("p(1) = %v, want 0.25", dist[1])
			}
			if math.Abs(dist[2]-0.25) > 1e-12 {
				t.Errorf("p(2) = %v, want 0.25", dist[2])
			}
		})
	}
}

func TestModel_PredictiveDistributionSumsToOne(t *testing.T) {
	seq := []int{0, 1, 2, 1, 2, 0, 1, 2, 2, 1}
	for _, v := range allVariants() {
		t.Run(v.String(), func(t *testing.T) {
			model, _, _ := newTestModel(t, v, seq, 3, 3, 5)
			for sweep := 0; sweep < 5; sweep++ {
				require.NoError(t, model.RunGibbsSampler(false))
			}
			for end := 0; end <= len(seq); end++ {
				dist, err := model.PredictiveDistribution(0, end)
				require.NoError(t, err)
				sum := 0.0
				for _, p := range dist {
					sum += p
				}
				assert.InDelta(t, 1.0, sum, 1e-9, "context end %d", end)
			}
		})
	}
}

// End-to-end: the documented five-symbol scenario. Fresh losses must be
// finite, fifty sweeps must not diverge, and the seating must stay
// consistent throughout.
func TestModel_EndToEnd(t *testing.T) {
	seq := []int{0, 1, 2, 1, 2}
	for _, v := range allVariants() {
		t.Run(v.String(), func(t *testing.T) {
			model, _, _ := newTestModel(t, v, seq, 3, 4, 42)

			sweepLosses := make([]float64, 0, 50)
			for sweep := 0; sweep < 50; sweep++ {
				require.NoError(t, model.RunGibbsSampler(true))
				loss, err := model.ComputeLosses(0, len(seq))
				require.NoError(t, err)
				require.False(t, math.IsInf(loss, 0) || math.IsNaN(loss), "sweep %d", sweep)
				sweepLosses = append(sweepLosses, loss)
			}
			require.True(t, model.CheckConsistency())

			tail := 0.0
			for _, l := range sweepLosses[40:] {
				tail += l
			}
			tail /= 10
			assert.LessOrEqual(t, tail, sweepLosses[0],
				"loss diverged: first sweep %v, last-10 average %v", sweepLosses[0], tail)

			losses, err := model.ComputeLossVector(0, len(seq))
			require.NoError(t, err)
			require.Len(t, losses, len(seq))
			for i, l := range losses {
				assert.Greater(t, l, 0.0, "position %d", i)
			}

			next, err := model.Predict(0, len(seq))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, next, 0)
			assert.Less(t, next, 3)

			drawn, err := model.Sample(0, len(seq))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, drawn, 0)
			assert.Less(t, drawn, 3)
		})
	}
}

func TestModel_LossRangeValidation(t *testing.T) {
	model, _, _ := newTestModel(t, VariantFull, []int{0, 1}, 2, 2, 1)
	model.BuildTree(2)

	var cfgErr *ConfigurationError
	_, err := model.ComputeLosses(-1, 2)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = model.ComputeLosses(0, 3)
	require.Error(t, err)
	_, err = model.PredictiveDistribution(2, 1)
	require.Error(t, err)
}

// ResampleSeating re-draws table counts for the compact variants while
// keeping leaf customer counts and the cross-level invariant intact.
func TestModel_ResampleSeating(t *testing.T) {
	seq := []int{0, 1, 0, 1, 0, 1, 2, 0, 1, 2, 0, 0, 1}
	for _, v := range []Variant{VariantCompactReinstantiating, VariantCompactStirling} {
		t.Run(v.String(), func(t *testing.T) {
			model, nm, _ := newTestModel(t, v, seq, 3, 2, 9)
			for sweep := 0; sweep < 3; sweep++ {
				require.NoError(t, model.RunGibbsSampler(false))
			}
			before := make(map[int]float64)
			nm.VisitDFS(func(n *Node) {
				if len(n.children) == 0 {
					before[n.id] = n.rest.Customers()
				}
			})

			model.ResampleSeating()

			require.True(t, model.CheckConsistency())
			nm.VisitDFS(func(n *Node) {
				if want, ok := before[n.id]; ok && len(n.children) == 0 {
					assert.Equal(t, want, n.rest.Customers(), "leaf %d", n.id)
				}
			})
			_, err := model.ComputeLosses(0, len(seq))
			require.NoError(t, err)
		})
	}
}

func TestModel_StringDump(t *testing.T) {
	model, _, _ := newTestModel(t, VariantFull, []int{0, 1, 0}, 2, 2, 1)
	model.BuildTree(3)
	dump := model.String()
	assert.Contains(t, dump, "(root)")
	assert.Contains(t, dump, "c=")
}
