package curcuma

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXYZRoundTrip(t *testing.T) {
	mol := waterMolecule(t)
	mol.SetEnergy(-76.4)
	mol.SetName("water")
	name := filepath.Join(t.TempDir(), "water.xyz")
	require.NoError(t, mol.WriteXYZ(name))

	back, err := ReadXYZ(name)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Len())
	assert.Equal(t, 8, back.Z(0))
	assert.InDelta(t, -76.4, back.Energy(), 1e-9)
	assert.InDelta(t, 0.757, back.Coords().At(1, 1), 1e-6)
}

func TestXYZIterator(t *testing.T) {
	mol := waterMolecule(t)
	name := filepath.Join(t.TempDir(), "traj.xyz")
	for i := 0; i < 3; i++ {
		mol.SetEnergy(float64(i))
		require.NoError(t, mol.AppendXYZ(name))
	}
	it, err := NewXYZIterator(name)
	require.NoError(t, err)
	defer it.Close()
	count := 0
	for !it.AtEnd() {
		frame, err := it.Next()
		require.NoError(t, err)
		assert.InDelta(t, float64(count), frame.Energy(), 1e-9)
		count++
	}
	assert.Equal(t, 3, count)
}

func TestCompressedTrajectory(t *testing.T) {
	mol := waterMolecule(t)
	name := filepath.Join(t.TempDir(), "traj.xyz.zst")
	w, err := NewTrajWriter(name)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		mol.SetEnergy(float64(i))
		require.NoError(t, w.WNext(mol))
	}
	require.NoError(t, w.Close())

	mols, err := ReadEnsemble(name)
	require.NoError(t, err)
	require.Len(t, mols, 5)
	assert.InDelta(t, 4.0, mols[4].Energy(), 1e-9)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadXYZ(filepath.Join(t.TempDir(), "nope.xyz"))
	assert.Error(t, err)
}

func TestReadMalformed(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.xyz")
	require.NoError(t, os.WriteFile(name, []byte("not a number\ncomment\n"), 0644))
	_, err := ReadXYZ(name)
	assert.Error(t, err)
}
