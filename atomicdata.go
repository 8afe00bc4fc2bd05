/*
 * atomicdata.go, part of curcuma
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

package curcuma

import "strings"

//Physical constants and unit conversions. Internally the md package
//works in Hartree atomic units; everything else is Angstrom/Hartree.
const (
	Bohr2A   = 0.52917721092
	A2Bohr   = 1 / Bohr2A
	KbEh     = 3.166811563e-6 //Boltzmann constant, Eh/K
	Fs2Au    = 41.341373336   //femtoseconds to atomic time units
	Amu2Au   = 1822.888486209 //atomic mass units to electron masses
	Eh2kJmol = 2625.499639
)

//covalent radii (Angstrom), from the compilation in
//DOI:10.1186/1758-2946-3-33. Zero means unknown.
var covalentRadii = map[int]float64{
	1: 0.31, 2: 0.28,
	3: 1.28, 4: 0.96, 5: 0.84, 6: 0.76, 7: 0.71, 8: 0.66, 9: 0.57, 10: 0.58,
	11: 1.66, 12: 1.41, 13: 1.21, 14: 1.11, 15: 1.07, 16: 1.05, 17: 1.02, 18: 1.06,
	19: 2.03, 20: 1.76, 21: 1.70, 22: 1.60, 23: 1.53, 24: 1.39, 25: 1.39, 26: 1.32,
	27: 1.26, 28: 1.24, 29: 1.32, 30: 1.22, 31: 1.22, 32: 1.20, 33: 1.19, 34: 1.20,
	35: 1.20, 36: 1.16, 44: 1.46, 45: 1.42, 46: 1.39, 47: 1.45, 53: 1.39, 78: 1.36, 79: 1.36,
}

//standard atomic weights, amu
var atomicMasses = map[int]float64{
	1: 1.00794, 2: 4.002602,
	3: 6.941, 4: 9.012182, 5: 10.811, 6: 12.0107, 7: 14.0067, 8: 15.9994,
	9: 18.9984032, 10: 20.1797, 11: 22.98976928, 12: 24.3050, 13: 26.9815386,
	14: 28.0855, 15: 30.973762, 16: 32.065, 17: 35.453, 18: 39.948,
	19: 39.0983, 20: 40.078, 21: 44.955912, 22: 47.867, 23: 50.9415,
	24: 51.9961, 25: 54.938045, 26: 55.845, 27: 58.933195, 28: 58.6934,
	29: 63.546, 30: 65.38, 31: 69.723, 32: 72.64, 33: 74.92160, 34: 78.96,
	35: 79.904, 36: 83.798, 44: 101.07, 45: 102.90550, 46: 106.42,
	47: 107.8682, 53: 126.90447, 78: 195.084, 79: 196.966569,
}

var elementSymbols = map[int]string{
	1: "H", 2: "He",
	3: "Li", 4: "Be", 5: "B", 6: "C", 7: "N", 8: "O", 9: "F", 10: "Ne",
	11: "Na", 12: "Mg", 13: "Al", 14: "Si", 15: "P", 16: "S", 17: "Cl", 18: "Ar",
	19: "K", 20: "Ca", 21: "Sc", 22: "Ti", 23: "V", 24: "Cr", 25: "Mn", 26: "Fe",
	27: "Co", 28: "Ni", 29: "Cu", 30: "Zn", 31: "Ga", 32: "Ge", 33: "As", 34: "Se",
	35: "Br", 36: "Kr", 44: "Ru", 45: "Rh", 46: "Pd", 47: "Ag", 53: "I",
	78: "Pt", 79: "Au",
}

var symbolNumbers = func() map[string]int {
	m := make(map[string]int, len(elementSymbols))
	for z, s := range elementSymbols {
		m[strings.ToUpper(s)] = z
	}
	return m
}()

//Symbol returns the element symbol for the atomic number z, or "X"
//if z is unknown.
func Symbol(z int) string {
	s, ok := elementSymbols[z]
	if !ok {
		return "X"
	}
	return s
}

//AtomicNumber returns the atomic number for an element symbol
//(case-insensitive), or 0 if the symbol is unknown.
func AtomicNumber(symbol string) int {
	return symbolNumbers[strings.ToUpper(strings.TrimSpace(symbol))]
}

//Mass returns the standard atomic weight (amu) for the atomic number
//z, or 0 if unknown.
func Mass(z int) float64 {
	return atomicMasses[z]
}

//CovalentRadius returns the covalent radius (Angstrom) for the atomic
//number z, or 0 if unknown.
func CovalentRadius(z int) float64 {
	return covalentRadii[z]
}
