package blend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjective_FeasibleCostIsUnitCost(t *testing.T) {
	tanks := sampleTanks()
	alloc := Allocation{1000, 500, 250}
	obj := NewObjective(tanks, permissiveTarget())

	b, _, err := Compute(tanks, alloc)
	require.NoError(t, err)

	cost, verdict := obj.Explain(alloc)
	assert.True(t, verdict.Pass)
	assert.Equal(t, b.UnitCost(), cost)
	assert.Equal(t, cost, obj.Evaluate(alloc))
	assert.False(t, Infeasible(cost))
}

func TestObjective_PenaltyIsFlat(t *testing.T) {
	tanks := sampleTanks()
	alloc := Allocation{1000, 500, 250}

	b, _, err := Compute(tanks, alloc)
	require.NoError(t, err)

	slightly := permissiveTarget()
	slightly.SulfurPcnt = Round(b.SulfurPcnt) - 1
	far := permissiveTarget()
	far.SulfurPcnt = -1e6

	assert.Equal(t, float64(PenaltyCost), NewObjective(tanks, slightly).Evaluate(alloc))
	assert.Equal(t, float64(PenaltyCost), NewObjective(tanks, far).Evaluate(alloc))
}

func TestObjective_OutOfBoundsVolumeIsPenalized(t *testing.T) {
	tanks := sampleTanks()
	obj := NewObjective(tanks, permissiveTarget())

	assert.Equal(t, float64(PenaltyCost), obj.Evaluate([]float64{5001, 500, 0}))
	assert.Equal(t, float64(PenaltyCost), obj.Evaluate([]float64{-1, 500, 0}))
}

func TestObjective_UncomputableBlendIsPenalized(t *testing.T) {
	tanks := []Tank{{API: 20, MinimumVolume: 0, MaximumVolume: 10}}
	obj := NewObjective(tanks, permissiveTarget())

	cost, verdict := obj.Explain([]float64{0})
	assert.Equal(t, float64(PenaltyCost), cost)
	assert.Equal(t, "blend", verdict.Violated)
	assert.True(t, Infeasible(cost))
}

func TestObjective_Bounds(t *testing.T) {
	obj := NewObjective(sampleTanks(), permissiveTarget())
	lower, upper := obj.Bounds()

	assert.Equal(t, []float64{0, 100, 0}, lower)
	assert.Equal(t, []float64{5000, 2000, 3000}, upper)
}
