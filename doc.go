/*
 * doc.go, part of curcuma
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

//Package curcuma provides the molecule data model and the geometric
//primitives shared by the conformer scanner (package scan) and the
//molecular dynamics engine (package md): atoms with element numbers
//and cartesian coordinates, bond and fragment detection from covalent
//radii, rigid-body superposition, and XYZ trajectory I/O.
//
//Coordinates in this package are in Angstrom, energies in Hartree.
//The md package converts to atomic units internally.
package curcuma
