/*
 * lj.go, part of curcuma
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

package qm

import (
	"encoding/json"
	"math"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
)

//ljParam holds per-element Lennard-Jones parameters: sigma in
//Angstrom, epsilon in Hartree.
type ljParam struct {
	sigma float64
	eps   float64
}

//rough per-element parameters; epsilon values converted from
//well-depth temperatures via kB. Unlisted elements fall back to the
//carbon entry.
var ljParams = map[int]ljParam{
	1:  {2.571, 8.6 * curcuma.KbEh},
	6:  {3.431, 52.8 * curcuma.KbEh},
	7:  {3.261, 34.7 * curcuma.KbEh},
	8:  {3.118, 30.2 * curcuma.KbEh},
	10: {2.820, 36.7 * curcuma.KbEh},
	18: {3.405, 119.8 * curcuma.KbEh},
	36: {3.600, 171.0 * curcuma.KbEh},
}

//LennardJones is the built-in test backend: harmonic stretches on
//detected bonds, 12-6 Lennard-Jones with Lorentz-Berthelot
//combination between all pairs that are neither bonded nor share a
//bonded neighbour; the latter 1-3 pairs contribute nothing. It is cheap, smooth, and conserves
//energy under symplectic integration, which is all the MD engine
//needs from a backend.
type LennardJones struct {
	zs       []int
	bonds    [][]bool
	onethree [][]bool           //pairs sharing a bonded neighbour, excluded
	r0       map[[2]int]float64 //reference bond lengths, Angstrom
	k        float64            //harmonic force constant, Eh/A^2
	x        *v3.Matrix
	grad     *v3.Matrix
	energy   float64
	failed   bool
}

type ljConfig struct {
	BondK float64 `json:"bond_k"`
}

//NewLennardJones builds the calculator. The config blob may override
//the harmonic bond force constant (Eh/A^2).
func NewLennardJones(config json.RawMessage) (*LennardJones, error) {
	conf := ljConfig{BondK: 0.3}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &conf); err != nil {
			return nil, curcuma.NewError("NewLennardJones", "malformed lj config: "+err.Error())
		}
	}
	return &LennardJones{k: conf.BondK, r0: map[[2]int]float64{}}, nil
}

func (L *LennardJones) SetMolecule(mol *curcuma.Molecule) error {
	L.zs = mol.Zs()
	L.bonds = mol.BondMatrix()
	L.x = v3.Zeros(mol.Len())
	L.x.Copy(mol.Coords())
	L.grad = v3.Zeros(mol.Len())
	n := mol.Len()
	L.onethree = make([][]bool, n)
	for i := range L.onethree {
		L.onethree[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if L.bonds[i][j] {
				L.r0[[2]int{i, j}] = curcuma.Distance(mol.Coords(), i, j)
				continue
			}
			for k := 0; k < n; k++ {
				if L.bonds[i][k] && L.bonds[k][j] {
					L.onethree[i][j] = true
					L.onethree[j][i] = true
					break
				}
			}
		}
	}
	return nil
}

func (L *LennardJones) UpdateGeometry(x *v3.Matrix) {
	L.x.Copy(x)
}

func (L *LennardJones) CalculateEnergy(gradient bool) float64 {
	n := len(L.zs)
	if gradient {
		L.grad.Zero()
	}
	var e float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if L.onethree[i][j] {
				continue
			}
			d := curcuma.Distance(L.x, i, j)
			if d < 1e-9 {
				L.failed = true
				continue
			}
			var dEdr float64
			if L.bonds[i][j] {
				r0 := L.r0[[2]int{i, j}]
				e += 0.5 * L.k * (d - r0) * (d - r0)
				dEdr = L.k * (d - r0)
			} else {
				pi := L.param(L.zs[i])
				pj := L.param(L.zs[j])
				sigma := 0.5 * (pi.sigma + pj.sigma)
				eps := math.Sqrt(pi.eps * pj.eps)
				sr6 := math.Pow(sigma/d, 6)
				e += 4 * eps * (sr6*sr6 - sr6)
				dEdr = 4 * eps * (-12*sr6*sr6 + 6*sr6) / d
			}
			if gradient {
				a := L.x.RawRowView(i)
				b := L.x.RawRowView(j)
				for k := 0; k < 3; k++ {
					g := dEdr * (a[k] - b[k]) / d
					L.grad.Set(i, k, L.grad.At(i, k)+g)
					L.grad.Set(j, k, L.grad.At(j, k)-g)
				}
			}
		}
	}
	L.energy = e
	return e
}

func (L *LennardJones) param(z int) ljParam {
	if p, ok := ljParams[z]; ok {
		return p
	}
	return ljParams[6]
}

func (L *LennardJones) Gradient() *v3.Matrix { return L.grad }

func (L *LennardJones) Dipole() [3]float64 { return [3]float64{} }

func (L *LennardJones) Charges() []float64 { return nil }

func (L *LennardJones) Error() bool { return L.failed }

func (L *LennardJones) HasNan() bool {
	return math.IsNaN(L.energy) || hasNaN(L.grad)
}
