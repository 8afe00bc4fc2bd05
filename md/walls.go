/*
 * walls.go, part of curcuma
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
)

//wallParams holds the wall geometry in atomic units.
type wallParams struct {
	radius                 float64
	xmin, xmax             float64
	ymin, ymax             float64
	zmin, zmax             float64
	beta                   float64 //1/Bohr
	kT                     float64 //Eh
	violations             int
	lastViolationReported  int
}

//expClamp keeps the exponent within the range exp can represent.
func expClamp(arg float64) float64 {
	if arg > 700 {
		arg = 700
	} else if arg < -700 {
		arg = -700
	}
	return math.Exp(arg)
}

//initWalls converts the configured wall to atomic units and
//auto-sizes any bound that is zero or inverted: the molecular extent
//per axis plus a 20% margin, at least 5 Angstrom.
func (D *Driver) initWalls() {
	conf := D.conf
	if conf.Wall == "" || conf.Wall == "none" {
		D.wallFn = func() float64 { return 0 }
		return
	}

	xNeeds := (conf.WallXMin == 0 && conf.WallXMax == 0) || conf.WallXMax <= conf.WallXMin
	yNeeds := (conf.WallYMin == 0 && conf.WallYMax == 0) || conf.WallYMax <= conf.WallYMin
	zNeeds := (conf.WallZMin == 0 && conf.WallZMax == 0) || conf.WallZMax <= conf.WallZMin
	sphereNeeds := conf.WallRadius <= 0
	if xNeeds || yNeeds || zNeeds || sphereNeeds {
		min := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		max := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		var maxDist float64
		for i := 0; i < D.natoms; i++ {
			r := D.mol.Coords().RawRowView(i)
			for k := 0; k < 3; k++ {
				min[k] = math.Min(min[k], r[k])
				max[k] = math.Max(max[k], r[k])
			}
			d := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
			maxDist = math.Max(maxDist, d)
		}
		margin := func(span float64) float64 { return math.Max(0.2*span, 5.0) }
		if xNeeds {
			conf.WallXMin = min[0] - margin(max[0]-min[0])
			conf.WallXMax = max[0] + margin(max[0]-min[0])
		}
		if yNeeds {
			conf.WallYMin = min[1] - margin(max[1]-min[1])
			conf.WallYMax = max[1] + margin(max[1]-min[1])
		}
		if zNeeds {
			conf.WallZMin = min[2] - margin(max[2]-min[2])
			conf.WallZMax = max[2] + margin(max[2]-min[2])
		}
		if sphereNeeds {
			conf.WallRadius = maxDist + margin(maxDist)
		}
		D.log.Infow("wall auto-sized", "geometry", conf.Wall,
			"radius", conf.WallRadius,
			"x", []float64{conf.WallXMin, conf.WallXMax},
			"y", []float64{conf.WallYMin, conf.WallYMax},
			"z", []float64{conf.WallZMin, conf.WallZMax})
	}

	D.wall = wallParams{
		radius: conf.WallRadius * curcuma.A2Bohr,
		xmin:   conf.WallXMin * curcuma.A2Bohr,
		xmax:   conf.WallXMax * curcuma.A2Bohr,
		ymin:   conf.WallYMin * curcuma.A2Bohr,
		ymax:   conf.WallYMax * curcuma.A2Bohr,
		zmin:   conf.WallZMin * curcuma.A2Bohr,
		zmax:   conf.WallZMax * curcuma.A2Bohr,
		beta:   conf.WallBeta * curcuma.Bohr2A,
		kT:     conf.WallTemp * curcuma.KbEh,
	}

	switch {
	case conf.Wall == "spheric" && conf.WallType == "logfermi":
		D.wallFn = D.sphericLogFermi
	case conf.Wall == "spheric" && conf.WallType == "harmonic":
		D.wallFn = D.sphericHarmonic
	case conf.Wall == "rect" && conf.WallType == "logfermi":
		D.wallFn = D.rectLogFermi
	case conf.Wall == "rect" && conf.WallType == "harmonic":
		D.wallFn = D.rectHarmonic
	default:
		D.wallFn = func() float64 { return 0 }
		D.log.Warnw("unknown wall configuration ignored",
			"wall", conf.Wall, "wall_type", conf.WallType)
	}
}

//reportWall throttles wall-violation logging: only when more than 5%
//of atoms are outside or 1000 steps passed since the last report.
func (D *Driver) reportWall(counter int, potential float64) {
	D.wall.violations = counter
	if counter == 0 {
		return
	}
	if float64(counter) > 0.05*float64(D.natoms) ||
		D.step-D.wall.lastViolationReported > 1000 {
		D.log.Infow("wall violations", "atoms_outside", counter,
			"of", D.natoms, "wall_potential_Eh", potential)
		D.wall.lastViolationReported = D.step
	}
}

func (D *Driver) sphericLogFermi() float64 {
	w := &D.wall
	var potential float64
	counter := 0
	for i := 0; i < D.natoms; i++ {
		r := D.x.RawRowView(i)
		distance := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
		expr := expClamp(w.beta * (distance - w.radius))
		potential += w.kT * math.Log(1+expr)
		if distance > w.radius {
			counter++
		}
		if distance > 1e-10 {
			f := w.kT * w.beta * expr / (distance * (1 + expr))
			gr := D.g.RawRowView(i)
			gr[0] += f * r[0]
			gr[1] += f * r[1]
			gr[2] += f * r[2]
		}
	}
	D.reportWall(counter, potential)
	return potential
}

func (D *Driver) sphericHarmonic() float64 {
	w := &D.wall
	var potential float64
	counter := 0
	for i := 0; i < D.natoms; i++ {
		r := D.x.RawRowView(i)
		distance := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
		if distance <= w.radius || distance < 1e-10 {
			continue
		}
		counter++
		excess := distance - w.radius
		potential += 0.5 * w.kT * excess * excess
		f := w.kT * excess / distance
		gr := D.g.RawRowView(i)
		gr[0] += f * r[0]
		gr[1] += f * r[1]
		gr[2] += f * r[2]
	}
	D.reportWall(counter, potential)
	return potential
}

func (D *Driver) rectLogFermi() float64 {
	w := &D.wall
	b := w.beta
	var potential float64
	counter := 0
	for i := 0; i < D.natoms; i++ {
		r := D.x.RawRowView(i)
		exl := expClamp(b * (w.xmin - r[0]))
		exu := expClamp(b * (r[0] - w.xmax))
		eyl := expClamp(b * (w.ymin - r[1]))
		eyu := expClamp(b * (r[1] - w.ymax))
		ezl := expClamp(b * (w.zmin - r[2]))
		ezu := expClamp(b * (r[2] - w.zmax))
		potential += w.kT * (math.Log(1+exl) + math.Log(1+exu) +
			math.Log(1+eyl) + math.Log(1+eyu) + math.Log(1+ezl) + math.Log(1+ezu))
		if r[0] < w.xmin || r[0] > w.xmax || r[1] < w.ymin || r[1] > w.ymax ||
			r[2] < w.zmin || r[2] > w.zmax {
			counter++
		}
		gr := D.g.RawRowView(i)
		gr[0] += w.kT * b * (exu/(1+exu) - exl/(1+exl))
		gr[1] += w.kT * b * (eyu/(1+eyu) - eyl/(1+eyl))
		gr[2] += w.kT * b * (ezu/(1+ezu) - ezl/(1+ezl))
	}
	D.reportWall(counter, potential)
	return potential
}

func (D *Driver) rectHarmonic() float64 {
	w := &D.wall
	var potential float64
	counter := 0
	axis := func(val, lo, hi float64) (float64, float64) {
		if val < lo {
			return (val - lo) * (val - lo), w.kT * (val - lo)
		}
		if val > hi {
			return (val - hi) * (val - hi), w.kT * (val - hi)
		}
		return 0, 0
	}
	for i := 0; i < D.natoms; i++ {
		r := D.x.RawRowView(i)
		vx, gx := axis(r[0], w.xmin, w.xmax)
		vy, gy := axis(r[1], w.ymin, w.ymax)
		vz, gz := axis(r[2], w.zmin, w.zmax)
		potential += 0.5 * w.kT * (vx + vy + vz)
		if vx > 0 || vy > 0 || vz > 0 {
			counter++
		}
		gr := D.g.RawRowView(i)
		gr[0] += gx
		gr[1] += gy
		gr[2] += gz
	}
	D.reportWall(counter, potential)
	return potential
}
