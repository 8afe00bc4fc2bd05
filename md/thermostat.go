/*
 * thermostat.go, part of curcuma
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

	curcuma "github.com/awvwgk/curcuma"
	"gonum.org/v1/gonum/stat/distuv"
)

func (D *Driver) initThermostat() {
	switch D.conf.Thermostat {
	case "csvr":
		D.log.Infow("thermostat", "type", "CSVR",
			"reference", "J. Chem. Phys. 126, 014101 (2007)")
		D.thermostat = D.csvr
	case "berendson", "berendsen":
		D.log.Infow("thermostat", "type", "Berendsen",
			"reference", "J. Chem. Phys. 81, 3684 (1984)")
		D.thermostat = D.berendson
	case "anderson", "andersen":
		D.log.Infow("thermostat", "type", "Andersen")
		D.thermostat = D.anderson
	case "nosehover", "nosehoover":
		D.log.Infow("thermostat", "type", "Nose-Hoover chain",
			"chain_length", D.conf.ChainLength)
		D.thermostat = D.noseHoover
	default:
		D.log.Infow("no thermostat applied")
		D.thermostat = func() {}
	}
}

//berendson rescales all velocities towards T0 with the coupling time
//tau. Efficient, but it does not sample the canonical ensemble.
func (D *Driver) berendson() {
	if D.T <= 0 {
		return
	}
	lambda := math.Sqrt(1 + (D.conf.DT/2*(D.conf.T0-D.T))/(D.T*D.conf.Coupling))
	D.v.Scale(lambda, D.v)
}

//csvr is canonical sampling through velocity rescaling
//(Bussi-Donadio-Parrinello): a stochastic rescaling whose stationary
//distribution is the canonical one. The accumulated kinetic-energy
//exchange with the bath is kept for the conserved-quantity report.
func (D *Driver) csvr() {
	if D.Ekin <= 0 {
		return
	}
	ekinTarget := 0.5 * curcuma.KbEh * D.conf.T0 * float64(D.dof)
	c := math.Exp(-(D.conf.DT / 2) / D.conf.Coupling)
	chi := distuv.ChiSquared{K: float64(D.dof), Src: D.src}
	R := D.normal.Rand()
	SNf := chi.Rand()
	alpha2 := c + (1-c)*(SNf+R*R)*ekinTarget/(float64(D.dof)*D.Ekin) +
		2*R*math.Sqrt(c*(1-c)*ekinTarget/(float64(D.dof)*D.Ekin))
	D.ekinExchange += D.Ekin * (alpha2 - 1)
	D.v.Scale(math.Sqrt(alpha2), D.v)
}

//anderson resamples individual atom velocities from the
//Maxwell-Boltzmann distribution with a per-step collision
//probability, averaging with the current velocity.
func (D *Driver) anderson() {
	probability := D.conf.Anderson * D.conf.DT
	for i := 0; i < D.natoms; i++ {
		if D.src.Float64() >= probability {
			continue
		}
		sigma := math.Sqrt(curcuma.KbEh * D.conf.T0 * D.invMass[i])
		vr := D.v.RawRowView(i)
		for k := 0; k < 3; k++ {
			vr[k] = (vr[k] + D.normal.Rand()*sigma) / 2
		}
	}
}

//noseHoover propagates the thermostat chain: the first variable
//couples to the kinetic-energy excess, each later one to its
//predecessor. The forward and backward chain sweeps bracket the
//velocity scaling symmetrically to keep the update time-reversible.
func (D *Driver) noseHoover() {
	var kinetic float64
	for i := 0; i < D.natoms; i++ {
		vr := D.v.RawRowView(i)
		kinetic += 0.5 * D.mass[i] * (vr[0]*vr[0] + vr[1]*vr[1] + vr[2]*vr[2])
	}
	L := len(D.xi)
	D.xi[0] += 0.5 * D.dtAu * (2*kinetic - float64(D.dof)*D.conf.T0*curcuma.KbEh) / D.Q[0]
	for j := 1; j < L; j++ {
		D.xi[j] += 0.5 * D.dtAu * (D.Q[j-1]*D.xi[j-1]*D.xi[j-1] - D.conf.T0*curcuma.KbEh) / D.Q[j]
	}
	D.v.Scale(math.Exp(-D.xi[0]*D.dtAu), D.v)
	for j := L - 1; j >= 1; j-- {
		D.xi[j] += 0.5 * D.dtAu * (D.Q[j-1]*D.xi[j-1]*D.xi[j-1] - D.conf.T0*curcuma.KbEh) / D.Q[j]
	}
	D.xi[0] += 0.5 * D.dtAu * (2*kinetic - float64(D.dof)*D.conf.T0*curcuma.KbEh) / D.Q[0]
}
