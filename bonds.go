/*
 * bonds.go, part of curcuma
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

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

//BondScale is the factor applied to the sum of covalent radii when
//deciding whether two atoms are bonded.
const BondScale = 1.3

//tooclose rejects nonsense contacts below this distance (Angstrom)
const tooclose = 0.4

//BondMatrix returns the NxN boolean bond-topology matrix of the
//molecule: true where the interatomic distance is below the scaled
//sum of the covalent radii. The result is cached on the molecule.
func (M *Molecule) BondMatrix() [][]bool {
	if M.topo != nil {
		return M.topo
	}
	n := M.Len()
	bonds := make([][]bool, n)
	for i := range bonds {
		bonds[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		ri := CovalentRadius(M.zs[i])
		for j := i + 1; j < n; j++ {
			rj := CovalentRadius(M.zs[j])
			d := Distance(M.coords, i, j)
			if d < BondScale*(ri+rj) && d > tooclose {
				bonds[i][j] = true
				bonds[j][i] = true
			}
		}
	}
	M.topo = bonds
	return bonds
}

//TopologyDifference counts the entries in which the bond matrices of
//M and N differ. Both molecules must have the same atom count.
func (M *Molecule) TopologyDifference(N *Molecule) int {
	a := M.BondMatrix()
	b := N.BondMatrix()
	diff := 0
	for i := range a {
		for j := i + 1; j < len(a); j++ {
			if a[i][j] != b[i][j] {
				diff++
			}
		}
	}
	return diff
}

//Fragments returns the connected components of the bond graph as
//sorted index lists, ordered by their smallest member. The result is
//cached on the molecule.
func (M *Molecule) Fragments() [][]int {
	if M.fragments != nil {
		return M.fragments
	}
	bonds := M.BondMatrix()
	g := simple.NewUndirectedGraph()
	for i := 0; i < M.Len(); i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < M.Len(); i++ {
		for j := i + 1; j < M.Len(); j++ {
			if bonds[i][j] {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	components := topo.ConnectedComponents(g)
	frags := make([][]int, 0, len(components))
	for _, comp := range components {
		frag := make([]int, 0, len(comp))
		for _, node := range comp {
			frag = append(frag, int(node.ID()))
		}
		sort.Ints(frag)
		frags = append(frags, frag)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i][0] < frags[j][0] })
	M.fragments = frags
	return frags
}

//FragmentIndexes resolves a fragment selector into atom indexes: -1
//(or an out-of-range index) selects all atoms, otherwise the atoms of
//the chosen fragment.
func (M *Molecule) FragmentIndexes(fragment int) []int {
	frags := M.Fragments()
	if fragment < 0 || fragment >= len(frags) {
		all := make([]int, M.Len())
		for i := range all {
			all[i] = i
		}
		return all
	}
	return frags[fragment]
}
