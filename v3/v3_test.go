package v3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(t *testing.T) {
	m, err := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 2, m.NVecs())
	assert.Equal(t, 5.0, m.At(1, 1))

	_, err = NewMatrix([]float64{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestVecViewShares(t *testing.T) {
	m, _ := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	v := m.VecView(1)
	v.Set(0, 0, 42)
	assert.Equal(t, 42.0, m.At(1, 0))
}

func TestSomeVecs(t *testing.T) {
	m, _ := NewMatrix([]float64{1, 1, 1, 2, 2, 2, 3, 3, 3})
	sub := m.SomeVecs([]int{2, 0})
	assert.Equal(t, 3.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(1, 0))
}

func TestCross(t *testing.T) {
	x, _ := NewMatrix([]float64{1, 0, 0})
	y, _ := NewMatrix([]float64{0, 1, 0})
	z := Zeros(1)
	z.Cross(x, y)
	assert.InDelta(t, 0.0, z.At(0, 0), 1e-14)
	assert.InDelta(t, 0.0, z.At(0, 1), 1e-14)
	assert.InDelta(t, 1.0, z.At(0, 2), 1e-14)
	assert.InDelta(t, 1.0, x.Dot(x), 1e-14)
}

func TestDet(t *testing.T) {
	m, _ := NewMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.InDelta(t, 1.0, Det(m), 1e-14)
	refl, _ := NewMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	assert.InDelta(t, -1.0, Det(refl), 1e-14)
}

func TestAddSubVec(t *testing.T) {
	m, _ := NewMatrix([]float64{1, 1, 1, 2, 2, 2})
	shift, _ := NewMatrix([]float64{1, 0, -1})
	out := Zeros(2)
	out.AddVec(m, shift)
	assert.Equal(t, 2.0, out.At(0, 0))
	assert.Equal(t, 0.0, out.At(0, 2))
	back := Zeros(2)
	back.SubVec(out, shift)
	assert.Equal(t, 1.0, back.At(0, 0))
}
