package qm

import (
	"testing"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argonDimer(t *testing.T, d float64) *curcuma.Molecule {
	c, _ := v3.NewMatrix([]float64{0, 0, 0, 0, 0, d})
	mol, err := curcuma.NewMolecule([]int{18, 18}, c)
	require.NoError(t, err)
	return mol
}

func TestNewUnknownMethod(t *testing.T) {
	_, err := New("dft-imaginary", nil, "test")
	assert.Error(t, err)
}

func TestLJMinimum(t *testing.T) {
	calc, err := NewLennardJones(nil)
	require.NoError(t, err)
	//near the LJ minimum 2^(1/6)*sigma the energy is close to -eps
	mol := argonDimer(t, 3.822)
	require.NoError(t, calc.SetMolecule(mol))
	calc.UpdateGeometry(mol.Coords())
	e := calc.CalculateEnergy(true)
	eps := 119.8 * curcuma.KbEh
	assert.InDelta(t, -eps, e, eps*0.01)
	assert.False(t, calc.Error())
	assert.False(t, calc.HasNan())
}

func TestLJGradientMatchesNumerical(t *testing.T) {
	calc, err := NewLennardJones(nil)
	require.NoError(t, err)
	mol := argonDimer(t, 3.5)
	require.NoError(t, calc.SetMolecule(mol))

	calc.UpdateGeometry(mol.Coords())
	calc.CalculateEnergy(true)
	grad := v3.Zeros(2)
	grad.Copy(calc.Gradient())

	const h = 1e-6
	for i := 0; i < 2; i++ {
		for k := 0; k < 3; k++ {
			plus := v3.Zeros(2)
			plus.Copy(mol.Coords())
			plus.Set(i, k, plus.At(i, k)+h)
			calc.UpdateGeometry(plus)
			ep := calc.CalculateEnergy(false)

			minus := v3.Zeros(2)
			minus.Copy(mol.Coords())
			minus.Set(i, k, minus.At(i, k)-h)
			calc.UpdateGeometry(minus)
			em := calc.CalculateEnergy(false)

			assert.InDelta(t, (ep-em)/(2*h), grad.At(i, k), 1e-8)
		}
	}
}

func TestLJBondedHarmonic(t *testing.T) {
	//water: O-H pairs are bonded and harmonic around the input
	//geometry, so the initial structure is an energy minimum of the
	//stretch terms
	c, _ := v3.NewMatrix([]float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
	})
	mol, err := curcuma.NewMolecule([]int{8, 1, 1}, c)
	require.NoError(t, err)
	calc, _ := NewLennardJones(nil)
	require.NoError(t, calc.SetMolecule(mol))
	calc.UpdateGeometry(mol.Coords())
	e0 := calc.CalculateEnergy(false)

	stretched := v3.Zeros(3)
	stretched.Copy(mol.Coords())
	stretched.Set(1, 1, 0.9)
	calc.UpdateGeometry(stretched)
	assert.Greater(t, calc.CalculateEnergy(false), e0)
}
