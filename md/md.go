/*
 * md.go, part of curcuma
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 */

package md

import (
	"math"
	"os"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/qm"
	v3 "github.com/awvwgk/curcuma/v3"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

//InstabilityError reports a blown-up simulation: runaway temperature,
//NaN coordinates, or a backend failure. The last stable state has
//been dumped when this error surfaces.
type InstabilityError struct {
	Reason string
}

func (e InstabilityError) Error() string {
	return "md: simulation unstable: " + e.Reason
}

func (e InstabilityError) Critical() bool           { return true }
func (e InstabilityError) Decorate(string) []string { return nil }

//constraint is one holonomic distance constraint between two atoms,
//with the squared reference distance (Bohr^2) captured at
//initialisation and never mutated afterwards.
type constraint struct {
	i, j int
	d2   float64
}

//Driver owns the full MD state. All internal quantities are in
//Hartree atomic units: positions Bohr, velocities Bohr per atomic
//time unit, masses electron masses, energies Hartree.
type Driver struct {
	conf *Config
	log  *zap.SugaredLogger

	mol  *curcuma.Molecule //Angstrom mirror for I/O and fragments
	calc qm.Calculator

	natoms  int
	zs      []int
	mass    []float64
	invMass []float64

	x, v, g *v3.Matrix
	xAng    *v3.Matrix //scratch Angstrom copy for the backend

	dtAu, dt2 float64
	dof       int
	step      int
	curTime   float64 //fs

	T, Ekin, Epot, Etot float64
	wallPot, virial     float64
	averT, averEpot     float64
	averEkin, averEtot  float64
	averWall, averVir   float64
	ekinExchange        float64
	unstable            bool

	//Nose-Hoover chain state
	xi, Q []float64
	eta   float64

	bonds12, bonds13 []constraint
	rattleTol12      float64
	rattleCounter    int
	rattleAverT      float64

	seed   uint64
	src    *rand.Rand
	normal distuv.Normal

	thermostat func()
	wallFn     func() float64
	integrate  func() error

	wall wallParams
	bias *biasPool

	rmCOMStep int
	rescues   int
	states    []restartRecord

	stopCheck func() bool

	unique []*curcuma.Molecule
}

//NewDriver builds a driver; nil conf selects defaults, nil logger a
//no-op one.
func NewDriver(conf *Config, logger *zap.Logger) *Driver {
	if conf == nil {
		conf = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		conf: conf,
		log:  logger.Sugar(),
		stopCheck: func() bool {
			_, err := os.Stat("curcuma.stop")
			return err == nil
		},
	}
}

//SetStopCheck replaces the stop-request probe; it is polled only
//between MD steps.
func (D *Driver) SetStopCheck(f func() bool) { D.stopCheck = f }

//SetMolecule hands the initial structure to the driver.
func (D *Driver) SetMolecule(mol *curcuma.Molecule) { D.mol = mol }

//Initialise allocates the state, builds the energy backend, draws
//initial velocities and prepares constraints, walls, thermostat and
//bias. It must be called once before Run.
func (D *Driver) Initialise() error {
	if D.mol == nil || D.mol.Len() == 0 {
		return curcuma.NewError("md.Initialise", "no molecule given")
	}
	conf := D.conf
	D.natoms = D.mol.Len()
	D.zs = D.mol.Zs()

	D.mass = make([]float64, D.natoms)
	D.invMass = make([]float64, D.natoms)
	for i, z := range D.zs {
		m := curcuma.Mass(z) * curcuma.Amu2Au
		if z == 1 && conf.HMass > 0 {
			m *= conf.HMass
		}
		D.mass[i] = m
		D.invMass[i] = 1 / m
	}

	if !conf.NoCenter {
		centered := curcuma.Center(D.mol.Coords(), D.mol.Masses())
		D.mol.SetCoords(centered)
	}

	D.x = v3.Zeros(D.natoms)
	D.x.Copy(D.mol.Coords())
	D.x.Scale(curcuma.A2Bohr, D.x)
	D.v = v3.Zeros(D.natoms)
	D.g = v3.Zeros(D.natoms)
	D.xAng = v3.Zeros(D.natoms)

	D.dtAu = conf.DT * curcuma.Fs2Au
	D.dt2 = D.dtAu * D.dtAu
	if conf.Coupling < conf.DT {
		conf.Coupling = conf.DT
	}
	D.rmCOMStep = int(conf.RmCOM / conf.DT)
	D.rattleTol12 = conf.RattleTol12

	D.seed = uint64(conf.Seed)
	if conf.Seed <= 0 {
		D.seed = uint64(D.natoms)*uint64(conf.T0) + 1
	}
	D.src = rand.New(rand.NewSource(D.seed))
	D.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: D.src}

	var err error
	D.calc, err = qm.New(conf.Method, conf.EnergyConfig, conf.Basename)
	if err != nil {
		return err
	}
	if err := D.calc.SetMolecule(D.mol); err != nil {
		return err
	}

	D.dof = 3 * D.natoms
	D.initConstraints()
	if conf.Rattle > 0 {
		D.integrate = D.rattle
		D.dof -= len(D.bonds12) + len(D.bonds13)
		if D.dof < 1 {
			D.dof = 1
		}
		D.log.Infow("rattle constraints active",
			"bonds_12", len(D.bonds12), "bonds_13", len(D.bonds13), "dof", D.dof)
	} else {
		D.integrate = D.verlet
	}

	D.initWalls()
	D.initThermostat()
	D.initVelocities(conf.Velo)

	D.xi = make([]float64, conf.ChainLength)
	D.Q = make([]float64, conf.ChainLength)
	for i := range D.xi {
		D.xi[i] = math.Pow(10, float64(i)) - 1
		D.Q[i] = math.Pow(10, float64(i)) * curcuma.KbEh * conf.T0 * float64(D.dof) * 100
	}

	if conf.RMSDMTD {
		if conf.MTDSteps < 1 {
			conf.MTDSteps = 1
		}
		if err := D.initBias(); err != nil {
			return err
		}
	}
	return nil
}

//initConstraints captures 1-2 and optionally 1-3 squared reference
//distances from the bond topology of the initial structure.
func (D *Driver) initConstraints() {
	if D.conf.Rattle == 0 || (!D.conf.Rattle12 && !D.conf.Rattle13) {
		return
	}
	bonds := D.mol.BondMatrix()
	for i := 0; i < D.natoms; i++ {
		for j := 0; j < i; j++ {
			if !bonds[i][j] {
				continue
			}
			if D.conf.Rattle == 2 && D.zs[i] != 1 && D.zs[j] != 1 {
				continue
			}
			if D.conf.Rattle12 || D.conf.Rattle13 {
				d := curcuma.Distance(D.mol.Coords(), i, j) * curcuma.A2Bohr
				D.bonds12 = append(D.bonds12, constraint{i, j, d * d})
			}
		}
	}
	//1-3 pairs: every two neighbours of a common center. Fixing the
	//1-3 distance is an angle constraint only because the two 1-2
	//bonds are rigid as well.
	if D.conf.Rattle13 {
		for center := 0; center < D.natoms; center++ {
			var neighbors []int
			for k := 0; k < D.natoms; k++ {
				if bonds[center][k] {
					neighbors = append(neighbors, k)
				}
			}
			for a := 0; a < len(neighbors); a++ {
				for b := 0; b < a; b++ {
					i, k := neighbors[a], neighbors[b]
					if D.conf.Rattle == 2 && D.zs[i] != 1 && D.zs[k] != 1 {
						continue
					}
					d := curcuma.Distance(D.mol.Coords(), i, k) * curcuma.A2Bohr
					D.bonds13 = append(D.bonds13, constraint{i, k, d * d})
				}
			}
		}
	}
}

//initVelocities draws Maxwell-Boltzmann velocities for T0, removes
//net translation/rotation and applies two tightly coupled Berendsen
//kicks to settle the kinetic energy.
func (D *Driver) initVelocities(scale float64) {
	if scale < 0 {
		scale = 1
	}
	for i := 0; i < D.natoms; i++ {
		sigma := math.Sqrt(curcuma.KbEh * D.conf.T0 * D.invMass[i])
		for k := 0; k < 3; k++ {
			D.v.Set(i, k, D.normal.Rand()*sigma*scale)
		}
	}
	D.removeRotation()
	D.eKin()
	coupling := D.conf.Coupling
	D.conf.Coupling = D.conf.DT
	D.berendson()
	D.berendson()
	D.eKin()
	D.conf.Coupling = coupling
}

//energy asks the backend for energy and gradient at the current
//positions and converts the gradient to atomic units.
func (D *Driver) energy() float64 {
	D.xAng.Copy(D.x)
	D.xAng.Scale(curcuma.Bohr2A, D.xAng)
	D.calc.UpdateGeometry(D.xAng)
	e := D.calc.CalculateEnergy(true)
	grad := D.calc.Gradient()
	D.g.Copy(grad)
	D.g.Scale(curcuma.Bohr2A, D.g) //Eh/Angstrom -> Eh/Bohr
	return e
}

//eKin refreshes the kinetic energy and instantaneous temperature.
func (D *Driver) eKin() {
	var ekin float64
	for i := 0; i < D.natoms; i++ {
		r := D.v.RawRowView(i)
		ekin += D.mass[i] * (r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	}
	D.Ekin = 0.5 * ekin
	D.T = 2 * D.Ekin / (curcuma.KbEh * float64(D.dof))
}

func (D *Driver) averageQuantities() {
	n := float64(D.step)
	D.averT = (D.T + n*D.averT) / (n + 1)
	D.averEpot = (D.Epot + n*D.averEpot) / (n + 1)
	D.averEkin = (D.Ekin + n*D.averEkin) / (n + 1)
	D.averEtot = (D.Etot + n*D.averEtot) / (n + 1)
	D.averWall = (D.wallPot + n*D.averWall) / (n + 1)
	D.averVir = (D.virial + n*D.averVir) / (n + 1)
}

//Run drives the MD loop until MaxTime, a stop request or an
//instability. The final restart record is always written.
func (D *Driver) Run() error {
	conf := D.conf
	D.Epot = D.energy()
	D.eKin()
	D.Etot = D.Epot + D.Ekin
	D.averageQuantities()
	D.writeGeometry()
	aborted := false

	for D.curTime < conf.MaxTime {
		if D.stopCheck() {
			D.log.Infow("stop file found, ending simulation")
			D.writeRestartFile(conf.Basename + ".restart.json")
			aborted = true
			break
		}
		if D.rmCOMStep > 0 && D.step%D.rmCOMStep == 0 {
			switch conf.RmRotTrans {
			case 1:
				D.removeRotation()
			case 2:
				D.removeRotationFragments()
			case 3:
				D.removeRotationFragments()
				D.removeRotation()
			}
		}

		if err := D.integrate(); err != nil {
			return err
		}
		D.averageQuantities()

		if conf.Dump > 0 && D.step%conf.Dump == 0 {
			D.writeGeometry()
			if !D.unstable && !D.calc.Error() && !D.calc.HasNan() {
				D.states = append(D.states, D.restartRecord())
				if len(D.states) > conf.MaxRescue+1 {
					D.states = D.states[1:]
				}
			}
		}

		if D.unstable || D.calc.Error() || D.calc.HasNan() {
			if conf.Rescue && D.rescues < conf.MaxRescue && len(D.states) > 0 {
				D.log.Warnw("simulation exploded, resetting to previous state", "step", D.step)
				D.loadRestartRecord(D.states[len(D.states)-1])
				D.initVelocities(-1)
				D.Epot = D.energy()
				D.eKin()
				D.Etot = D.Epot + D.Ekin
				D.unstable = false
				D.rescues++
				continue
			}
			if len(D.states) > 0 {
				D.loadRestartRecord(D.states[len(D.states)-1])
			}
			D.writeRestartFile("unstable_curcuma.json")
			return InstabilityError{Reason: "temperature blow-up or NaN in backend"}
		}

		if conf.WriteRestart > 0 && D.step%conf.WriteRestart == 0 {
			D.writeRestartFile(conf.Basename + ".restart.json")
		}
		if conf.Print > 0 && D.step > 0 && int(D.curTime)%conf.Print == 0 {
			D.Etot = D.Epot + D.Ekin
			D.log.Infow("status", "time_fs", D.curTime, "Epot", D.Epot,
				"Ekin", D.Ekin, "Etot", D.Etot, "T", D.T, "averT", D.averT)
		}
		if conf.Rattle > 0 && conf.RattleDynamicTol {
			D.rattleAverT += D.T
			D.rattleCounter++
			if D.rattleCounter == conf.RattleDynamicTolIter {
				D.adjustRattleTolerance()
			}
		}
		if conf.Impuls > D.T {
			D.initVelocities(conf.Velo * conf.ImpulsScaling)
			D.eKin()
		}
		D.step++
		D.curTime += conf.DT
	}

	if conf.Thermostat == "csvr" {
		D.log.Infow("heat bath exchange", "Ekin_exchange", D.ekinExchange)
	}
	D.finaliseBias()
	D.writeRestartFile("curcuma_final.json")
	if !aborted {
		os.Remove(conf.Basename + ".restart.json")
	}
	return nil
}

//adjustRattleTolerance nudges the 1-2 tolerance so the average
//temperature tracks T0 despite the constraint corrections.
func (D *Driver) adjustRattleTolerance() {
	aver := D.rattleAverT / float64(D.rattleCounter)
	if aver > D.conf.T0 {
		D.rattleTol12 -= 0.01 * D.rattleTol12
	} else {
		D.rattleTol12 += 0.01 * D.rattleTol12
	}
	D.rattleTol12 = math.Abs(D.rattleTol12)
	D.rattleCounter = 0
	D.rattleAverT = 0
}

//verlet is one unconstrained velocity-Verlet step: drift, half kick,
//fresh gradient (with bias and wall contributions), second half kick,
//thermostat on both half steps.
func (D *Driver) verlet() error {
	for i := 0; i < D.natoms; i++ {
		xr := D.x.RawRowView(i)
		vr := D.v.RawRowView(i)
		gr := D.g.RawRowView(i)
		im := D.invMass[i]
		for k := 0; k < 3; k++ {
			xr[k] += D.dtAu*vr[k] - 0.5*gr[k]*im*D.dt2
			vr[k] -= 0.5 * D.dtAu * gr[k] * im
		}
	}
	D.eKin()
	D.thermostat()
	D.Epot = D.energy()
	if D.bias != nil && D.step%D.conf.MTDSteps == 0 {
		D.applyBias()
	}
	D.wallPot = D.wallFn()

	var ekin float64
	for i := 0; i < D.natoms; i++ {
		vr := D.v.RawRowView(i)
		gr := D.g.RawRowView(i)
		im := D.invMass[i]
		for k := 0; k < 3; k++ {
			vr[k] -= 0.5 * D.dtAu * gr[k] * im
		}
		ekin += D.mass[i] * (vr[0]*vr[0] + vr[1]*vr[1] + vr[2]*vr[2])
	}
	ekin *= 0.5
	T := 2 * ekin / (curcuma.KbEh * float64(D.dof))
	D.unstable = T > 10000*D.conf.T0 || math.IsNaN(T)
	D.T = T
	D.Ekin = ekin
	D.thermostat()
	D.eKin()
	D.Etot = D.Epot + D.Ekin
	return nil
}

//rattle is the constrained velocity-Verlet step: after the drift the
//position constraints are iterated with Lagrange multipliers lambda,
//after the second kick the velocity constraints with multipliers mu,
//both bounded by RattleMaxIter. Oversized multipliers are scaled down
//by 0.1 until within RattleMax; near-zero scalar products are clamped
//to RattleMin to keep the division finite.
func (D *Driver) rattle() error {
	conf := D.conf
	trialX := v3.Zeros(D.natoms)
	trialV := v3.Zeros(D.natoms)
	moved12 := make([]int, D.natoms)
	moved13 := make([]int, D.natoms)

	for i := 0; i < D.natoms; i++ {
		xr := D.x.RawRowView(i)
		vr := D.v.RawRowView(i)
		gr := D.g.RawRowView(i)
		im := D.invMass[i]
		for k := 0; k < 3; k++ {
			trialX.Set(i, k, xr[k]+D.dtAu*vr[k]-0.5*gr[k]*im*D.dt2)
			vr[k] -= 0.5 * D.dtAu * gr[k] * im
			trialV.Set(i, k, vr[k])
		}
	}

	applyPair := func(c constraint, tol float64, moved []int) bool {
		i, j := c.i, c.j
		cur := sqDist(trialX, i, j)
		if math.Abs(c.d2-cur) <= tol {
			return false
		}
		r := c.d2 - cur
		//direction taken from the unconstrained geometry, the
		//classic RATTLE linearisation
		dx := D.x.At(i, 0) - D.x.At(j, 0)
		dy := D.x.At(i, 1) - D.x.At(j, 1)
		dz := D.x.At(i, 2) - D.x.At(j, 2)
		s := dx*(trialX.At(i, 0)-trialX.At(j, 0)) +
			dy*(trialX.At(i, 1)-trialX.At(j, 1)) +
			dz*(trialX.At(i, 2)-trialX.At(j, 2))
		if math.Abs(s) < conf.RattleMin {
			if s < 0 {
				s = -conf.RattleMin
			} else {
				s = conf.RattleMin
			}
		}
		lambda := r / ((D.invMass[i] + D.invMass[j]) * s)
		if math.IsInf(lambda, 0) || math.IsNaN(lambda) {
			D.unstable = true
			return false
		}
		for math.Abs(lambda) > conf.RattleMax {
			lambda *= 0.1
		}
		moved[i]++
		moved[j]++
		fi := lambda * 0.5 * D.invMass[i]
		fj := lambda * 0.5 * D.invMass[j]
		trialX.Set(i, 0, trialX.At(i, 0)+dx*fi)
		trialX.Set(i, 1, trialX.At(i, 1)+dy*fi)
		trialX.Set(i, 2, trialX.At(i, 2)+dz*fi)
		trialX.Set(j, 0, trialX.At(j, 0)-dx*fj)
		trialX.Set(j, 1, trialX.At(j, 1)-dy*fj)
		trialX.Set(j, 2, trialX.At(j, 2)-dz*fj)
		fvi := fi / D.dtAu
		fvj := fj / D.dtAu
		trialV.Set(i, 0, trialV.At(i, 0)+dx*fvi)
		trialV.Set(i, 1, trialV.At(i, 1)+dy*fvi)
		trialV.Set(i, 2, trialV.At(i, 2)+dz*fvi)
		trialV.Set(j, 0, trialV.At(j, 0)-dx*fvj)
		trialV.Set(j, 1, trialV.At(j, 1)-dy*fvj)
		trialV.Set(j, 2, trialV.At(j, 2)-dz*fvj)
		return true
	}

	moved := false
	for iter := 0; iter < conf.RattleMaxIter; iter++ {
		active := 0
		for _, c := range D.bonds12 {
			if applyPair(c, D.rattleTol12, moved12) {
				active++
			}
		}
		for _, c := range D.bonds13 {
			if applyPair(c, conf.RattleTol13, moved13) {
				active++
			}
		}
		if active > 0 {
			moved = true
		}
		if active == 0 || D.unstable {
			break
		}
	}
	D.x.Copy(trialX)
	D.v.Copy(trialV)

	D.eKin()
	D.thermostat()
	D.Epot = D.energy()
	if D.bias != nil && D.step%D.conf.MTDSteps == 0 {
		D.applyBias()
	}
	D.wallPot = D.wallFn()

	for i := 0; i < D.natoms; i++ {
		vr := D.v.RawRowView(i)
		gr := D.g.RawRowView(i)
		im := D.invMass[i]
		for k := 0; k < 3; k++ {
			vr[k] -= 0.5 * D.dtAu * gr[k] * im
		}
	}

	//velocity constraints: project out the relative velocity along
	//every constrained bond axis.
	D.virial = 0
	velPair := func(c constraint, moved []int) bool {
		i, j := c.i, c.j
		if moved[i] == 0 || moved[j] == 0 {
			return false
		}
		moved[i]--
		moved[j]--
		cur := sqDist(D.x, i, j)
		dx := D.x.At(i, 0) - D.x.At(j, 0)
		dy := D.x.At(i, 1) - D.x.At(j, 1)
		dz := D.x.At(i, 2) - D.x.At(j, 2)
		dvx := D.v.At(i, 0) - D.v.At(j, 0)
		dvy := D.v.At(i, 1) - D.v.At(j, 1)
		dvz := D.v.At(i, 2) - D.v.At(j, 2)
		r := dx*dvx + dy*dvy + dz*dvz
		mu := -r / ((D.invMass[i] + D.invMass[j]) * cur)
		for math.Abs(mu) > conf.RattleMax {
			mu *= 0.1
		}
		D.virial += mu * cur
		D.v.Set(i, 0, D.v.At(i, 0)+dx*mu*D.invMass[i])
		D.v.Set(i, 1, D.v.At(i, 1)+dy*mu*D.invMass[i])
		D.v.Set(i, 2, D.v.At(i, 2)+dz*mu*D.invMass[i])
		D.v.Set(j, 0, D.v.At(j, 0)-dx*mu*D.invMass[j])
		D.v.Set(j, 1, D.v.At(j, 1)-dy*mu*D.invMass[j])
		D.v.Set(j, 2, D.v.At(j, 2)-dz*mu*D.invMass[j])
		return true
	}
	for iter := 0; iter < conf.RattleMaxIter; iter++ {
		active := 0
		for _, c := range D.bonds12 {
			if velPair(c, moved12) {
				active++
			}
		}
		for _, c := range D.bonds13 {
			if velPair(c, moved13) {
				active++
			}
		}
		if active == 0 {
			break
		}
	}

	if moved {
		D.removeRotationFragments()
	}
	var ekin float64
	for i := 0; i < D.natoms; i++ {
		vr := D.v.RawRowView(i)
		ekin += D.mass[i] * (vr[0]*vr[0] + vr[1]*vr[1] + vr[2]*vr[2])
	}
	ekin *= 0.5
	T := 2 * ekin / (curcuma.KbEh * float64(D.dof))
	D.unstable = D.unstable || T > 10000*D.conf.T0 || math.IsNaN(T)
	D.T = T
	D.Ekin = ekin
	D.thermostat()
	D.eKin()
	D.Etot = D.Epot + D.Ekin
	return nil
}

func sqDist(m *v3.Matrix, i, j int) float64 {
	a := m.RawRowView(i)
	b := m.RawRowView(j)
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

//removeRotation subtracts the whole-system center-of-mass velocity
//and the rigid rotation derived from the inertia tensor and the
//angular momentum.
func (D *Driver) removeRotation() {
	all := make([]int, D.natoms)
	for i := range all {
		all[i] = i
	}
	D.removeRotationOf(all)
}

//removeRotationFragments does the same per bonded fragment, which is
//the right thing once the system has split into independent pieces.
func (D *Driver) removeRotationFragments() {
	for _, frag := range D.mol.Fragments() {
		D.removeRotationOf(frag)
	}
}

func (D *Driver) removeRotationOf(atoms []int) {
	if len(atoms) == 0 {
		return
	}
	var mass float64
	com := [3]float64{}
	for _, i := range atoms {
		m := D.mass[i]
		mass += m
		r := D.x.RawRowView(i)
		com[0] += m * r[0]
		com[1] += m * r[1]
		com[2] += m * r[2]
	}
	com[0] /= mass
	com[1] /= mass
	com[2] /= mass

	angom := [3]float64{}
	inertia := mat.NewDense(3, 3, nil)
	rel := make(map[int][3]float64, len(atoms))
	for _, i := range atoms {
		m := D.mass[i]
		r := D.x.RawRowView(i)
		x, y, z := r[0]-com[0], r[1]-com[1], r[2]-com[2]
		rel[i] = [3]float64{x, y, z}
		vr := D.v.RawRowView(i)
		angom[0] += m * (y*vr[2] - z*vr[1])
		angom[1] += m * (z*vr[0] - x*vr[2])
		angom[2] += m * (x*vr[1] - y*vr[0])
		inertia.Set(0, 0, inertia.At(0, 0)+m*(y*y+z*z))
		inertia.Set(1, 1, inertia.At(1, 1)+m*(x*x+z*z))
		inertia.Set(2, 2, inertia.At(2, 2)+m*(x*x+y*y))
		inertia.Set(0, 1, inertia.At(0, 1)-m*x*y)
		inertia.Set(0, 2, inertia.At(0, 2)-m*x*z)
		inertia.Set(1, 2, inertia.At(1, 2)-m*y*z)
	}
	inertia.Set(1, 0, inertia.At(0, 1))
	inertia.Set(2, 0, inertia.At(0, 2))
	inertia.Set(2, 1, inertia.At(1, 2))

	var inv mat.Dense
	if err := inv.Inverse(inertia); err != nil {
		//linear fragments have a singular inertia tensor; removing
		//translation alone is the best that can be done
		inv.CloneFrom(mat.NewDense(3, 3, nil))
	}
	omega := [3]float64{}
	for r := 0; r < 3; r++ {
		omega[r] = inv.At(r, 0)*angom[0] + inv.At(r, 1)*angom[1] + inv.At(r, 2)*angom[2]
	}

	lin := [3]float64{}
	for _, i := range atoms {
		vr := D.v.RawRowView(i)
		lin[0] += D.mass[i] * vr[0]
		lin[1] += D.mass[i] * vr[1]
		lin[2] += D.mass[i] * vr[2]
	}
	for _, i := range atoms {
		p := rel[i]
		ram := [3]float64{
			omega[1]*p[2] - omega[2]*p[1],
			omega[2]*p[0] - omega[0]*p[2],
			omega[0]*p[1] - omega[1]*p[0],
		}
		vr := D.v.RawRowView(i)
		vr[0] -= lin[0]/mass + ram[0]
		vr[1] -= lin[1]/mass + ram[1]
		vr[2] -= lin[2]/mass + ram[2]
	}
}

//writeGeometry mirrors the internal state back into the molecule and
//appends to the trajectory and the unique-conformer set.
func (D *Driver) writeGeometry() {
	coords := v3.Zeros(D.natoms)
	coords.Copy(D.x)
	coords.Scale(curcuma.Bohr2A, coords)
	D.mol.SetCoords(coords)
	D.mol.SetEnergy(D.Epot)
	if D.conf.WriteXYZ {
		D.mol.SetName(formatTime(D.curTime))
		D.mol.AppendXYZ(D.conf.Basename + ".trj.xyz")
	}
	if D.conf.Unique {
		D.trackUnique()
	}
}

//Accessors, mostly for tests and the CLI status output.

//Step returns the current step counter.
func (D *Driver) Step() int { return D.step }

//Time returns the simulated time in fs.
func (D *Driver) Time() float64 { return D.curTime }

//Temperature returns the instantaneous temperature in K.
func (D *Driver) Temperature() float64 { return D.T }

//AverageTemperature returns the running average temperature in K.
func (D *Driver) AverageTemperature() float64 { return D.averT }

//TotalEnergy returns Epot+Ekin in Hartree.
func (D *Driver) TotalEnergy() float64 { return D.Etot }

//PotentialEnergy returns the last backend energy in Hartree.
func (D *Driver) PotentialEnergy() float64 { return D.Epot }

//KineticEnergy returns the kinetic energy in Hartree.
func (D *Driver) KineticEnergy() float64 { return D.Ekin }

//WallPotential returns the last wall energy contribution in Hartree.
func (D *Driver) WallPotential() float64 { return D.wallPot }

//Positions returns the current positions in Angstrom.
func (D *Driver) Positions() *v3.Matrix {
	out := v3.Zeros(D.natoms)
	out.Copy(D.x)
	out.Scale(curcuma.Bohr2A, out)
	return out
}

//Velocities returns the current velocities in atomic units.
func (D *Driver) Velocities() *v3.Matrix {
	out := v3.Zeros(D.natoms)
	out.Copy(D.v)
	return out
}

//GradientAU returns the current gradient in atomic units.
func (D *Driver) GradientAU() *v3.Matrix {
	out := v3.Zeros(D.natoms)
	out.Copy(D.g)
	return out
}

//UniqueStructures returns the distinct conformers collected during
//the run when unique tracking is on.
func (D *Driver) UniqueStructures() []*curcuma.Molecule { return D.unique }
