package curcuma

import (
	"math"
	"testing"

	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//water in a reasonable geometry, Angstrom
func waterCoords() *v3.Matrix {
	c, _ := v3.NewMatrix([]float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
	})
	return c
}

func waterMolecule(t *testing.T) *Molecule {
	mol, err := NewMolecule([]int{8, 1, 1}, waterCoords())
	require.NoError(t, err)
	return mol
}

func rotateBy(coords *v3.Matrix, angle float64) *v3.Matrix {
	s, c := math.Sin(angle), math.Cos(angle)
	R, _ := v3.NewMatrix([]float64{c, -s, 0, s, c, 0, 0, 0, 1})
	out := v3.Zeros(coords.NVecs())
	out.Mul(coords, R)
	return out
}

func TestRMSDIdentity(t *testing.T) {
	w := waterCoords()
	rmsd, err := RMSD(w, w)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rmsd)
}

func TestBestFitRecoversRotation(t *testing.T) {
	w := waterCoords()
	rotated := rotateBy(w, 0.83)
	rmsd, R, err := BestFitRMSD(rotated, w)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rmsd, 1e-10)
	//R must be a proper rotation
	assert.InDelta(t, 1.0, v3.Det(R), 1e-10)
}

func TestBestFitSymmetry(t *testing.T) {
	a := waterCoords()
	b := rotateBy(waterCoords(), 0.4)
	b.Set(0, 0, b.At(0, 0)+0.2) //now genuinely different
	ab, _, err := BestFitRMSD(a, b)
	require.NoError(t, err)
	ba, _, err := BestFitRMSD(b, a)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestCentroid(t *testing.T) {
	m, _ := v3.NewMatrix([]float64{1, 0, 0, -1, 0, 0})
	c := Centroid(m, nil)
	assert.InDelta(t, 0.0, c.At(0, 0), 1e-14)

	weighted := Centroid(m, []float64{3, 1})
	assert.InDelta(t, 0.5, weighted.At(0, 0), 1e-14)
}

func TestLowerDistanceVector(t *testing.T) {
	m, _ := v3.NewMatrix([]float64{0, 0, 0, 1, 0, 0, 0, 1, 0})
	lower := LowerDistanceVector(m)
	require.Len(t, lower, 3)
	assert.InDelta(t, 1.0, lower[0], 1e-14)
	assert.InDelta(t, 1.0, lower[1], 1e-14)
	assert.InDelta(t, math.Sqrt2, lower[2], 1e-14)
}

func TestApplyOrder(t *testing.T) {
	mol := waterMolecule(t)
	perm := Permutation{1, 2, 0}
	require.True(t, perm.Valid(3))
	reordered, err := mol.ApplyOrder(perm)
	require.NoError(t, err)
	assert.Equal(t, 1, reordered.Z(0))
	assert.Equal(t, 8, reordered.Z(2))
	assert.Equal(t, mol.Coords().At(1, 1), reordered.Coords().At(0, 1))

	_, err = mol.ApplyOrder(Permutation{0, 0, 1})
	assert.Error(t, err)
}

func TestPermutationString(t *testing.T) {
	p := Permutation{2, 0, 1}
	back, err := ParsePermutation(p.String())
	require.NoError(t, err)
	assert.True(t, p.Equal(back))
}

func TestFragments(t *testing.T) {
	//water dimer, two separate molecules 3 A apart
	coords, _ := v3.NewMatrix([]float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
		3.000, 0.000, 0.117,
		3.000, 0.757, -0.469,
		3.000, -0.757, -0.469,
	})
	mol, err := NewMolecule([]int{8, 1, 1, 8, 1, 1}, coords)
	require.NoError(t, err)
	frags := mol.Fragments()
	require.Len(t, frags, 2)
	assert.Equal(t, []int{0, 1, 2}, frags[0])
	assert.Equal(t, []int{3, 4, 5}, frags[1])

	bonds := mol.BondMatrix()
	assert.True(t, bonds[0][1])
	assert.True(t, bonds[0][2])
	assert.False(t, bonds[0][3])
}
