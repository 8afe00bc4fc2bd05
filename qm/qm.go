/*
 * qm.go, part of curcuma
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

//Package qm defines the contract for energy/gradient backends and
//provides the built-in Lennard-Jones/harmonic calculator. External
//quantum-chemistry programs plug in behind the same interface.
package qm

import (
	"encoding/json"
	"math"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
)

//Calculator is the energy backend contract. Geometries are in
//Angstrom, energies in Hartree, gradients in Hartree/Angstrom.
//Implementations keep their own error state; after a failed step
//Error or HasNan report it.
type Calculator interface {
	//SetMolecule fixes elements, charge and topology for the run.
	SetMolecule(mol *curcuma.Molecule) error
	//UpdateGeometry replaces the coordinates for the next call.
	UpdateGeometry(x *v3.Matrix)
	//CalculateEnergy returns the energy; with gradient true the
	//gradient is computed as well and kept until the next call.
	CalculateEnergy(gradient bool) float64
	//Gradient returns the gradient of the last energy call.
	Gradient() *v3.Matrix
	//Dipole returns the dipole vector; only meaningful for
	//backends that compute charges.
	Dipole() [3]float64
	//Charges returns per-atom partial charges, or nil.
	Charges() []float64
	Error() bool
	HasNan() bool
}

//New constructs a calculator for the given method name. The config
//blob is method-specific JSON; basename names scratch files for
//backends that need them.
func New(method string, config json.RawMessage, basename string) (Calculator, error) {
	switch method {
	case "", "lj", "uff":
		return NewLennardJones(config)
	default:
		return nil, curcuma.NewError("qm.New", "unknown energy method "+method)
	}
}

//hasNaN reports whether the matrix contains a NaN entry.
func hasNaN(m *v3.Matrix) bool {
	if m == nil {
		return false
	}
	for i := 0; i < m.NVecs(); i++ {
		r := m.RawRowView(i)
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) || math.IsNaN(r[2]) {
			return true
		}
	}
	return false
}
