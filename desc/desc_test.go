package desc

import (
	"math"
	"testing"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func water(t *testing.T) *curcuma.Molecule {
	c, _ := v3.NewMatrix([]float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
	})
	mol, err := curcuma.NewMolecule([]int{8, 1, 1}, c)
	require.NoError(t, err)
	return mol
}

func TestRotationalConstantsOrdered(t *testing.T) {
	rot := RotationalConstants(water(t))
	assert.Greater(t, rot[0], rot[1])
	assert.Greater(t, rot[1], rot[2])
	assert.Greater(t, rot[2], 0.0)
}

func TestRotationalConstantsRigidInvariance(t *testing.T) {
	mol := water(t)
	rot := RotationalConstants(mol)

	angle := 0.7
	s, c := math.Sin(angle), math.Cos(angle)
	R, _ := v3.NewMatrix([]float64{c, -s, 0, s, c, 0, 0, 0, 1})
	rotated := v3.Zeros(3)
	rotated.Mul(mol.Coords(), R)
	mol2, _ := curcuma.NewMolecule([]int{8, 1, 1}, rotated)
	rot2 := RotationalConstants(mol2)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, rot[k], rot2[k], 1e-6)
	}
}

func TestPersistencePairsCount(t *testing.T) {
	mol := water(t)
	pairs := PersistencePairs(curcuma.LowerDistanceVector(mol.Coords()), mol.Len())
	//n points merge into one component through n-1 edges
	require.Len(t, pairs, 2)
	for _, d := range pairs {
		assert.Greater(t, d, 0.0)
	}
}

func TestPersistenceImagePermutationInvariant(t *testing.T) {
	mol := water(t)
	img := PersistenceImage(mol, DefaultImageConfig())

	permuted, err := mol.ApplyOrder(curcuma.Permutation{2, 0, 1})
	require.NoError(t, err)
	img2 := PersistenceImage(permuted, DefaultImageConfig())
	assert.InDelta(t, 0.0, ImageDistance(img, img2), 1e-12)
}

func TestImageDistancePositive(t *testing.T) {
	mol := water(t)
	img := PersistenceImage(mol, DefaultImageConfig())

	stretched := v3.Zeros(3)
	stretched.Copy(mol.Coords())
	stretched.Set(1, 1, 1.8)
	mol2, _ := curcuma.NewMolecule([]int{8, 1, 1}, stretched)
	img2 := PersistenceImage(mol2, DefaultImageConfig())
	assert.Greater(t, ImageDistance(img, img2), 0.0)
}
