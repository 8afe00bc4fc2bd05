package align

import (
	"math"
	"testing"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMolecule(t *testing.T, zs []int, coords []float64) *curcuma.Molecule {
	m, err := v3.NewMatrix(coords)
	require.NoError(t, err)
	mol, err := curcuma.NewMolecule(zs, m)
	require.NoError(t, err)
	return mol
}

func waterDimer(t *testing.T) *curcuma.Molecule {
	return mustMolecule(t, []int{8, 1, 1, 8, 1, 1}, []float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
		2.900, 0.000, 0.117,
		2.900, 0.700, -0.500,
		2.900, -0.700, -0.500,
	})
}

//S1: homonuclear diatomic with swapped atoms must align exactly.
func TestTwoAtomSelfAlignment(t *testing.T) {
	ref := mustMolecule(t, []int{1, 1}, []float64{0, 0, 0, 0, 0, 0.74})
	tar := mustMolecule(t, []int{1, 1}, []float64{0, 0, 0.74, 0, 0, 0})
	for _, method := range []string{"free", "incremental", "distance"} {
		conf := DefaultConfig()
		conf.Method = method
		driver := NewDriver(conf)
		driver.SetReference(ref)
		driver.SetTarget(tar)
		rmsd, err := driver.RMSD()
		require.NoError(t, err, method)
		assert.InDelta(t, 0.0, rmsd, 1e-10, method)
		assert.True(t, driver.ReorderRules().Valid(2), method)
	}
}

//with distinct elements the swap is the only valid mapping
func TestHeteronuclearSwapRecoversPermutation(t *testing.T) {
	ref := mustMolecule(t, []int{1, 9}, []float64{0, 0, 0, 0, 0, 0.92})
	tar := mustMolecule(t, []int{9, 1}, []float64{0, 0, 0.92, 0, 0, 0})
	driver := NewDriver(nil)
	driver.SetReference(ref)
	driver.SetTarget(tar)
	rmsd, err := driver.RMSD()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rmsd, 1e-10)
	assert.True(t, driver.ReorderRules().Equal(curcuma.Permutation{1, 0}))
}

func TestReorderRecoversShuffledDimer(t *testing.T) {
	ref := waterDimer(t)
	perm := curcuma.Permutation{3, 5, 4, 0, 2, 1}
	tar, err := ref.ApplyOrder(perm)
	require.NoError(t, err)

	for _, method := range []string{"free", "incremental", "heavy"} {
		conf := DefaultConfig()
		conf.Method = method
		driver := NewDriver(conf)
		driver.SetReference(ref)
		driver.SetTarget(tar)
		rmsd, err := driver.RMSD()
		require.NoError(t, err, method)
		assert.InDelta(t, 0.0, rmsd, 1e-8, method)

		rules := driver.ReorderRules()
		require.True(t, rules.Valid(6), method)
		//the permutation must map elements onto identical elements
		reordered, err := tar.ApplyOrder(rules)
		require.NoError(t, err, method)
		for i := 0; i < ref.Len(); i++ {
			assert.Equal(t, ref.Z(i), reordered.Z(i), method)
		}
	}
}

//property 4: Rules2RMSD matches apply-then-align
func TestRules2RMSDMatchesManual(t *testing.T) {
	ref := waterDimer(t)
	perm := curcuma.Permutation{1, 2, 0, 4, 5, 3}
	tar, err := ref.ApplyOrder(curcuma.Permutation{1, 0, 2, 4, 3, 5})
	require.NoError(t, err)

	driver := NewDriver(nil)
	driver.SetReference(ref)
	driver.SetTarget(tar)
	viaDriver, err := driver.Rules2RMSD(perm)
	require.NoError(t, err)

	manual, err := tar.ApplyOrder(perm)
	require.NoError(t, err)
	expected, _, err := curcuma.BestFitRMSD(manual.Coords(), ref.Coords())
	require.NoError(t, err)
	assert.InDelta(t, expected, viaDriver, 1e-10)
}

func TestRMSDSymmetry(t *testing.T) {
	a := waterDimer(t)
	b := waterDimer(t).Copy()
	c := v3.Zeros(b.Len())
	c.Copy(b.Coords())
	c.Set(4, 1, c.At(4, 1)+0.3)
	require.NoError(t, b.SetCoords(c))

	d1 := NewDriver(nil)
	d1.SetReference(a)
	d1.SetTarget(b)
	ab, err := d1.BestFitRMSD()
	require.NoError(t, err)

	d2 := NewDriver(nil)
	d2.SetReference(b)
	d2.SetTarget(a)
	ba, err := d2.BestFitRMSD()
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestInputMismatch(t *testing.T) {
	water := mustMolecule(t, []int{8, 1, 1}, []float64{
		0, 0, 0.117, 0, 0.757, -0.469, 0, -0.757, -0.469,
	})
	hf := mustMolecule(t, []int{1, 9}, []float64{0, 0, 0, 0, 0, 0.92})
	driver := NewDriver(nil)
	driver.SetReference(water)
	driver.SetTarget(hf)
	_, err := driver.RMSD()
	require.Error(t, err)
	assert.IsType(t, InputMismatchError{}, err)
}

//the bias potential chains through this gradient; check it against a
//numerical derivative of the best-fit RMSD
func TestGradientNumerical(t *testing.T) {
	ref := waterDimer(t)
	tarCoords := v3.Zeros(6)
	tarCoords.Copy(ref.Coords())
	tarCoords.Set(1, 1, tarCoords.At(1, 1)+0.25)
	tarCoords.Set(4, 2, tarCoords.At(4, 2)-0.2)
	tar, err := curcuma.NewMolecule(ref.Zs(), tarCoords)
	require.NoError(t, err)

	driver := NewDriver(nil)
	driver.SetReference(ref)
	driver.SetTarget(tar)
	_, err = driver.BestFitRMSD()
	require.NoError(t, err)
	grad := driver.Gradient()
	require.NotNil(t, grad)

	const h = 1e-6
	rmsdAt := func(coords *v3.Matrix) float64 {
		m, _ := curcuma.NewMolecule(ref.Zs(), coords)
		d := NewDriver(nil)
		d.SetReference(ref)
		d.SetTarget(m)
		r, err := d.BestFitRMSD()
		require.NoError(t, err)
		return r
	}
	for i := 0; i < 6; i++ {
		for k := 0; k < 3; k++ {
			plus := v3.Zeros(6)
			plus.Copy(tarCoords)
			plus.Set(i, k, plus.At(i, k)+h)
			minus := v3.Zeros(6)
			minus.Copy(tarCoords)
			minus.Set(i, k, minus.At(i, k)-h)
			numerical := (rmsdAt(plus) - rmsdAt(minus)) / (2 * h)
			assert.InDelta(t, numerical, grad.At(i, k), 1e-4,
				"atom %d component %d", i, k)
		}
	}
}

func TestRefineRotationImproves(t *testing.T) {
	ref := waterDimer(t)
	cref := curcuma.Center(ref.Coords(), nil)
	rotated := v3.Zeros(6)
	angle := 0.5
	s, c := math.Sin(angle), math.Cos(angle)
	R, _ := v3.NewMatrix([]float64{c, -s, 0, s, c, 0, 0, 0, 1})
	rotated.Mul(cref, R)

	zs := ref.Zs()
	all := []int{0, 1, 2, 3, 4, 5}
	before, _ := MakeCostMatrix(cref, rotated, zs, zs, all, all, 1)
	refined := refineRotation(cref, rotated, zs, zs, all, all, 1)
	fixed := curcuma.Rotate(rotated, refined)
	after, _ := MakeCostMatrix(cref, fixed, zs, zs, all, all, 1)
	assert.LessOrEqual(t, after, before+1e-12)
}
