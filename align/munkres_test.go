package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveAssignmentSimple(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	assignment, err := SolveAssignment(cost)
	require.NoError(t, err)
	//optimal total is 1+2+2 = 5
	assert.Equal(t, []int{1, 0, 2}, assignment)
}

func TestSolveAssignmentIdentity(t *testing.T) {
	cost := [][]float64{
		{0, 9, 9},
		{9, 0, 9},
		{9, 9, 0},
	}
	assignment, err := SolveAssignment(cost)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, assignment)
}

func TestSolveAssignmentInfeasible(t *testing.T) {
	cost := [][]float64{
		{Sentinel, Sentinel},
		{1, Sentinel},
	}
	_, err := SolveAssignment(cost)
	require.Error(t, err)
	assert.IsType(t, InfeasibleError{}, err)
}

func TestSolveAssignmentRejectsRagged(t *testing.T) {
	_, err := SolveAssignment([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestCostKernels(t *testing.T) {
	d, n := 2.0, 3.0
	assert.Equal(t, 4.0, Cost(d, n, 1))
	assert.Equal(t, 2.0, Cost(d, n, 2))
	assert.Equal(t, 5.0, Cost(d, n, 3))
	assert.Equal(t, 13.0, Cost(d, n, 4))
	assert.Equal(t, 6.0, Cost(d, n, 5))
	assert.Equal(t, 36.0, Cost(d, n, 6))
	//out of range falls back to squared distance
	assert.Equal(t, 4.0, Cost(d, n, 42))
}
