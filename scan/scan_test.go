package scan

import (
	"os"
	"testing"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/align"
	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(old) })
}

func testConfig() *Config {
	conf := DefaultConfig()
	conf.RMSDThreshold = 0.1
	conf.LooseThresh = 0
	conf.TightThresh = 0
	conf.SLE = []float64{1.0}
	conf.SLI = []float64{1.0}
	conf.SLH = []float64{1.0}
	conf.RMSD = align.DefaultConfig()
	conf.RMSD.Method = "free"
	return conf
}

//dimer with the second water at the given separation
func dimerAt(t *testing.T, sep float64) *curcuma.Molecule {
	coords, err := v3.NewMatrix([]float64{
		0.000, 0.000, 0.117,
		0.000, 0.757, -0.469,
		0.000, -0.757, -0.469,
		sep, 0.000, 0.117,
		sep, 0.700, -0.500,
		sep, -0.700, -0.500,
	})
	require.NoError(t, err)
	mol, err := curcuma.NewMolecule([]int{8, 1, 1, 8, 1, 1}, coords)
	require.NoError(t, err)
	return mol
}

//S2: identical geometries with permuted atom indexes collapse to one
//accepted structure, caught by the reorder pass and the rule cache.
func TestScannerDeduplicatesPermutedCopies(t *testing.T) {
	inTempDir(t)
	perm := curcuma.Permutation{3, 5, 4, 0, 2, 1}
	scanner := NewScanner(testConfig(), nil)
	base := dimerAt(t, 2.9)
	scanner.AddMolecule(base)
	for i := 0; i < 7; i++ {
		dup, err := base.ApplyOrder(perm)
		require.NoError(t, err)
		scanner.AddMolecule(dup)
	}
	require.NoError(t, scanner.Run())
	assert.Len(t, scanner.Accepted(), 1)
	assert.GreaterOrEqual(t, len(scanner.Rules()), 1)
}

//distinct geometries all survive, even with permuted duplicates of
//each mixed in
func TestScannerKeepsDistinctConformers(t *testing.T) {
	inTempDir(t)
	perm := curcuma.Permutation{0, 2, 1, 3, 5, 4}
	scanner := NewScanner(testConfig(), nil)
	separations := []float64{2.7, 3.3, 3.9, 4.5, 5.1}
	for k, sep := range separations {
		mol := dimerAt(t, sep)
		mol.SetEnergy(float64(k) * 1e-3)
		scanner.AddMolecule(mol)
		for j := 0; j < 2; j++ {
			dup, err := mol.ApplyOrder(perm)
			require.NoError(t, err)
			dup.SetEnergy(mol.Energy() + float64(j+1)*1e-6)
			scanner.AddMolecule(dup)
		}
	}
	require.NoError(t, scanner.Run())
	assert.Len(t, scanner.Accepted(), len(separations))
}

//property 6: a deduplicated ensemble passes through unchanged
func TestScannerIdempotent(t *testing.T) {
	inTempDir(t)
	scanner := NewScanner(testConfig(), nil)
	for k, sep := range []float64{2.7, 3.5, 4.3} {
		mol := dimerAt(t, sep)
		mol.SetEnergy(float64(k) * 1e-3)
		scanner.AddMolecule(mol)
	}
	require.NoError(t, scanner.Run())
	assert.Len(t, scanner.Accepted(), 3)
}

//property 7: the accepted set is non-decreasing in energy
func TestScannerEnergyOrdering(t *testing.T) {
	inTempDir(t)
	scanner := NewScanner(testConfig(), nil)
	energies := []float64{3e-3, 1e-3, 2e-3, 0}
	for k, sep := range []float64{2.7, 3.3, 3.9, 4.5} {
		mol := dimerAt(t, sep)
		mol.SetEnergy(energies[k])
		scanner.AddMolecule(mol)
	}
	require.NoError(t, scanner.Run())
	accepted := scanner.Accepted()
	require.Len(t, accepted, 4)
	for i := 1; i < len(accepted); i++ {
		assert.GreaterOrEqual(t, accepted[i].Energy(), accepted[i-1].Energy())
	}
}

func TestScannerMaxRank(t *testing.T) {
	inTempDir(t)
	conf := testConfig()
	conf.MaxRank = 2
	scanner := NewScanner(conf, nil)
	for k, sep := range []float64{2.7, 3.3, 3.9, 4.5} {
		mol := dimerAt(t, sep)
		mol.SetEnergy(float64(k) * 1e-3)
		scanner.AddMolecule(mol)
	}
	require.NoError(t, scanner.Run())
	assert.LessOrEqual(t, len(scanner.Accepted()), 2)
}

func TestScannerRestartRoundTrip(t *testing.T) {
	inTempDir(t)
	perm := curcuma.Permutation{3, 5, 4, 0, 2, 1}
	conf := testConfig()
	scanner := NewScanner(conf, nil)
	base := dimerAt(t, 2.9)
	scanner.AddMolecule(base)
	dup, err := base.ApplyOrder(perm)
	require.NoError(t, err)
	scanner.AddMolecule(dup)
	require.NoError(t, scanner.Run())
	require.GreaterOrEqual(t, len(scanner.Rules()), 1)

	//a fresh scanner with the same basename picks the rules up
	fresh := NewScanner(testConfig(), nil)
	fresh.AddMolecule(dimerAt(t, 2.9))
	fresh.sortByEnergy()
	fresh.loadRestart()
	assert.Equal(t, len(scanner.Rules()), len(fresh.Rules()))
}

func TestScannerRestartCorrupt(t *testing.T) {
	inTempDir(t)
	conf := testConfig()
	require.NoError(t, os.WriteFile(conf.Basename+".restart.json", []byte("{broken"), 0644))
	scanner := NewScanner(conf, nil)
	scanner.AddMolecule(dimerAt(t, 2.9))
	//corrupt restart is skipped, the scan proceeds from defaults
	require.NoError(t, scanner.Run())
	assert.Len(t, scanner.Accepted(), 1)
}

func TestScannerStopRequest(t *testing.T) {
	inTempDir(t)
	scanner := NewScanner(testConfig(), nil)
	for k, sep := range []float64{2.7, 3.3, 3.9} {
		mol := dimerAt(t, sep)
		mol.SetEnergy(float64(k) * 1e-3)
		scanner.AddMolecule(mol)
	}
	scanner.SetStopCheck(func() bool { return true })
	require.NoError(t, scanner.Run())
	//the restart record was written on the way out
	_, err := os.Stat(scanner.restartFile())
	assert.NoError(t, err)
}

func TestMaskOf(t *testing.T) {
	assert.Equal(t, 0, maskOf(false, false, false))
	assert.Equal(t, MaskRotational|MaskEnergy, maskOf(true, false, true))
	assert.Equal(t, MaskRotational|MaskRipser|MaskEnergy, maskOf(true, true, true))
}
