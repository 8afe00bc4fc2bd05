package md

import (
	"math"
	"os"
	"testing"

	curcuma "github.com/awvwgk/curcuma"
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

func argonDimer(t *testing.T, d float64) *curcuma.Molecule {
	c, _ := v3.NewMatrix([]float64{0, 0, 0, 0, 0, d})
	mol, err := curcuma.NewMolecule([]int{18, 18}, c)
	require.NoError(t, err)
	return mol
}

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

func nveConfig(maxTime float64) *Config {
	conf := DefaultConfig()
	conf.Thermostat = "none"
	conf.DT = 1.0
	conf.MaxTime = maxTime
	conf.T0 = 10
	conf.Seed = 42
	conf.RmCOM = 0
	conf.Dump = 0
	conf.Print = 0
	conf.WriteXYZ = false
	conf.Unique = false
	return conf
}

func runDimer(t *testing.T, conf *Config) *Driver {
	driver := NewDriver(conf, nil)
	driver.SetMolecule(argonDimer(t, 3.822))
	driver.SetStopCheck(func() bool { return false })
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())
	return driver
}

//S4: with no thermostat and no wall the total energy is conserved.
//Two runs from the same seed are deterministic, so the drift is the
//difference between a short and a long trajectory.
func TestVerletEnergyConservation(t *testing.T) {
	inTempDir(t)
	short := runDimer(t, nveConfig(2))
	long := runDimer(t, nveConfig(2000))
	drift := math.Abs(long.TotalEnergy() - short.TotalEnergy())
	assert.Less(t, drift, 1e-6, "NVE drift %g Eh over 2 ps", drift)
	if e0 := math.Abs(short.TotalEnergy()); e0 > 0 {
		assert.Less(t, drift/e0, 1e-3)
	}
}

//S5: RATTLE keeps every constrained distance at its reference value.
func TestRattleBondConservation(t *testing.T) {
	inTempDir(t)
	conf := DefaultConfig()
	conf.Thermostat = "csvr"
	conf.DT = 2.0
	conf.MaxTime = 2000
	conf.T0 = 300
	conf.Coupling = 20
	conf.Seed = 7
	conf.Rattle = 1
	conf.Rattle12 = true
	conf.Rattle13 = true
	conf.Dump = 0
	conf.Print = 0
	conf.WriteXYZ = false
	conf.RmCOM = 100

	mol := water(t)
	d01 := curcuma.Distance(mol.Coords(), 0, 1)
	d02 := curcuma.Distance(mol.Coords(), 0, 2)
	d12 := curcuma.Distance(mol.Coords(), 1, 2)

	driver := NewDriver(conf, nil)
	driver.SetMolecule(mol)
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())

	final := driver.Positions()
	assert.InDelta(t, d01, curcuma.Distance(final, 0, 1), 1e-3)
	assert.InDelta(t, d02, curcuma.Distance(final, 0, 2), 1e-3)
	assert.InDelta(t, d12, curcuma.Distance(final, 1, 2), 1e-3)
}

//property 10: the running average temperature settles at T0.
func TestBerendsenEquilibration(t *testing.T) {
	inTempDir(t)
	conf := DefaultConfig()
	conf.Thermostat = "berendson"
	conf.DT = 0.5
	conf.MaxTime = 2500
	conf.T0 = 300
	conf.Coupling = 50
	conf.Seed = 11
	conf.Dump = 0
	conf.Print = 0
	conf.WriteXYZ = false
	conf.RmCOM = 100

	driver := NewDriver(conf, nil)
	driver.SetMolecule(water(t))
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())
	assert.InDelta(t, 300.0, driver.AverageTemperature(), 40)
}

//property 11: a spherical log-Fermi wall keeps the atoms bounded.
func TestSphericWallConfines(t *testing.T) {
	inTempDir(t)
	conf := nveConfig(2000)
	conf.Thermostat = "berendson"
	conf.T0 = 300
	conf.Wall = "spheric"
	conf.WallType = "logfermi"
	conf.WallRadius = 5
	conf.WallTemp = 300
	conf.WallBeta = 6
	conf.Seed = 3

	driver := NewDriver(conf, nil)
	driver.SetMolecule(argonDimer(t, 6.0))
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())

	final := driver.Positions()
	for i := 0; i < final.NVecs(); i++ {
		r := final.RawRowView(i)
		dist := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
		assert.Less(t, dist, conf.WallRadius+3.0, "atom %d escaped to %g A", i, dist)
	}
}

//property 12: serialise, deserialise, continue: the next gradient is
//bit for bit the one of an uninterrupted run.
func TestRestartRoundTrip(t *testing.T) {
	inTempDir(t)
	short := runDimer(t, nveConfig(10))
	require.NoError(t, os.Rename("curcuma_final.json", "state10.json"))

	long := runDimer(t, nveConfig(15))

	conf := nveConfig(15)
	resumed := NewDriver(conf, nil)
	resumed.SetMolecule(argonDimer(t, 3.822))
	resumed.SetStopCheck(func() bool { return false })
	require.NoError(t, resumed.Initialise())
	require.NoError(t, resumed.LoadRestartFile("state10.json"))
	assert.Equal(t, short.Step(), resumed.Step())
	require.NoError(t, resumed.Run())

	assert.Equal(t, long.Step(), resumed.Step())
	gLong := flatten(long.GradientAU())
	gResumed := flatten(resumed.GradientAU())
	assert.Equal(t, gLong, gResumed)
	xLong := flatten(long.Positions())
	xResumed := flatten(resumed.Positions())
	assert.Equal(t, xLong, xResumed)
}

//a collapsed geometry blows up immediately and aborts with the
//restart dump written
func TestInstabilityAborts(t *testing.T) {
	inTempDir(t)
	conf := nveConfig(100)
	conf.DT = 5
	driver := NewDriver(conf, nil)
	driver.SetMolecule(argonDimer(t, 0.5))
	driver.SetStopCheck(func() bool { return false })
	require.NoError(t, driver.Initialise())
	err := driver.Run()
	require.Error(t, err)
	assert.IsType(t, InstabilityError{}, err)
	_, statErr := os.Stat("unstable_curcuma.json")
	assert.NoError(t, statErr)
}

//metadynamics deposits structures as long as the bias stays low
//relative to the deposit count
func TestMetadynamicsDeposits(t *testing.T) {
	inTempDir(t)
	conf := DefaultConfig()
	conf.Thermostat = "berendson"
	conf.DT = 1.0
	conf.MaxTime = 300
	conf.T0 = 100
	conf.Seed = 5
	conf.Dump = 0
	conf.Print = 0
	conf.WriteXYZ = false
	conf.RmCOM = 0
	conf.RMSDMTD = true
	conf.MTDSteps = 20
	conf.KRMSD = 1e-4
	conf.AlphaRMSD = 1
	conf.RMSDEconv = 1
	conf.NoColvarFile = true

	driver := NewDriver(conf, nil)
	driver.SetMolecule(argonDimer(t, 3.822))
	driver.SetStopCheck(func() bool { return false })
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())
	assert.GreaterOrEqual(t, driver.BiasStructureCount(), 2)
	for _, s := range driver.BiasStructures() {
		assert.GreaterOrEqual(t, s.Counter, 1)
	}
	_, err := os.Stat(conf.Basename + ".mtd.xyz")
	assert.NoError(t, err)
}

//the stop file ends the run gracefully with a restart written
func TestStopRequest(t *testing.T) {
	inTempDir(t)
	conf := nveConfig(1000)
	driver := NewDriver(conf, nil)
	driver.SetMolecule(argonDimer(t, 3.822))
	steps := 0
	driver.SetStopCheck(func() bool {
		steps++
		return steps > 5
	})
	require.NoError(t, driver.Initialise())
	require.NoError(t, driver.Run())
	assert.Less(t, driver.Step(), 10)
	_, err := os.Stat(conf.Basename + ".restart.json")
	assert.NoError(t, err)
}

func TestAndersonAndNoseHooverRun(t *testing.T) {
	inTempDir(t)
	for _, thermostat := range []string{"anderson", "nosehover"} {
		conf := DefaultConfig()
		conf.Thermostat = thermostat
		conf.DT = 0.25
		conf.MaxTime = 100
		conf.T0 = 200
		conf.Seed = 9
		conf.Dump = 0
		conf.Print = 0
		conf.WriteXYZ = false
		conf.RmCOM = 50
		driver := NewDriver(conf, nil)
		driver.SetMolecule(water(t))
		driver.SetStopCheck(func() bool { return false })
		require.NoError(t, driver.Initialise(), thermostat)
		require.NoError(t, driver.Run(), thermostat)
		assert.Greater(t, driver.Temperature(), 0.0, thermostat)
	}
}
