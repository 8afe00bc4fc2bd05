/*
 * chem.go, part of curcuma
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
	"fmt"
	"strings"

	v3 "github.com/awvwgk/curcuma/v3"
	"gonum.org/v1/gonum/mat"
)

//Molecule is an ordered set of atoms, each with an element number and
//a cartesian position (Angstrom). The element sequence and the atom
//count are fixed at construction; coordinates, the energy and the
//cached descriptors can be replaced, but only as a whole.
type Molecule struct {
	zs     []int
	coords *v3.Matrix
	energy float64
	name   string

	//cached descriptors, computed on demand and invalidated when
	//the coordinates are replaced.
	rot       [3]float64
	rotSet    bool
	pimage    *mat.Dense
	topo      [][]bool
	fragments [][]int
}

//NewMolecule builds a molecule from element numbers and coordinates.
//The coordinate matrix must have exactly len(zs) vectors.
func NewMolecule(zs []int, coords *v3.Matrix) (*Molecule, error) {
	if coords == nil || coords.NVecs() != len(zs) {
		return nil, NewError("NewMolecule", fmt.Sprintf("%d atoms but %d coordinate vectors", len(zs), coords.NVecs()))
	}
	z := make([]int, len(zs))
	copy(z, zs)
	return &Molecule{zs: z, coords: coords}, nil
}

//Len returns the number of atoms.
func (M *Molecule) Len() int { return len(M.zs) }

//Z returns the element number of atom i.
func (M *Molecule) Z(i int) int { return M.zs[i] }

//Zs returns a copy of the element-number sequence.
func (M *Molecule) Zs() []int {
	z := make([]int, len(M.zs))
	copy(z, M.zs)
	return z
}

//Coords returns the coordinate matrix. Callers must not mutate it;
//use SetCoords to replace the geometry.
func (M *Molecule) Coords() *v3.Matrix { return M.coords }

//SetCoords replaces the geometry atomically and drops all cached
//descriptors.
func (M *Molecule) SetCoords(c *v3.Matrix) error {
	if c.NVecs() != len(M.zs) {
		return NewError("SetCoords", "coordinate count does not match atom count")
	}
	M.coords = c
	M.rotSet = false
	M.pimage = nil
	M.topo = nil
	M.fragments = nil
	return nil
}

//Energy returns the molecule's energy (Hartree).
func (M *Molecule) Energy() float64 { return M.energy }

//SetEnergy sets the molecule's energy (Hartree).
func (M *Molecule) SetEnergy(e float64) { M.energy = e }

//Name returns the molecule's name.
func (M *Molecule) Name() string { return M.name }

//SetName sets the molecule's name.
func (M *Molecule) SetName(n string) { M.name = n }

//Masses returns the atomic masses (amu) in atom order.
func (M *Molecule) Masses() []float64 {
	m := make([]float64, len(M.zs))
	for i, z := range M.zs {
		m[i] = Mass(z)
	}
	return m
}

//Copy returns a deep copy of the molecule, including the cached
//descriptors.
func (M *Molecule) Copy() *Molecule {
	c := v3.Zeros(M.Len())
	c.Copy(M.coords)
	N, _ := NewMolecule(M.zs, c) //lengths match by construction
	N.energy = M.energy
	N.name = M.name
	N.rot = M.rot
	N.rotSet = M.rotSet
	if M.pimage != nil {
		N.pimage = mat.DenseCopyOf(M.pimage)
	}
	return N
}

//SetRotationalConstants caches the rotational constants (MHz).
func (M *Molecule) SetRotationalConstants(r [3]float64) {
	M.rot = r
	M.rotSet = true
}

//RotationalConstants returns the cached rotational constants (MHz)
//and whether they have been set.
func (M *Molecule) RotationalConstants() ([3]float64, bool) {
	return M.rot, M.rotSet
}

//SetPersistenceImage caches the persistence-image descriptor.
func (M *Molecule) SetPersistenceImage(p *mat.Dense) { M.pimage = p }

//PersistenceImage returns the cached persistence image, or nil.
func (M *Molecule) PersistenceImage() *mat.Dense { return M.pimage }

//SameComposition reports whether M and N have the same atom count and
//the same multiset of elements.
func (M *Molecule) SameComposition(N *Molecule) bool {
	if M.Len() != N.Len() {
		return false
	}
	count := map[int]int{}
	for _, z := range M.zs {
		count[z]++
	}
	for _, z := range N.zs {
		count[z]--
	}
	for _, c := range count {
		if c != 0 {
			return false
		}
	}
	return true
}

//XYZString returns the molecule as an XYZ block (count line, comment
//line with the energy, one line per atom).
func (M *Molecule) XYZString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", M.Len())
	if M.name != "" {
		fmt.Fprintf(&b, "%s Energy = %.10f\n", M.name, M.energy)
	} else {
		fmt.Fprintf(&b, "Energy = %.10f\n", M.energy)
	}
	for i := 0; i < M.Len(); i++ {
		c := M.coords.RawRowView(i)
		fmt.Fprintf(&b, "%-3s %15.8f %15.8f %15.8f\n", Symbol(M.zs[i]), c[0], c[1], c[2])
	}
	return b.String()
}

//Permutation is a relabeling of atom indexes: atom j of the reordered
//molecule is atom p[j] of the original.
type Permutation []int

//Valid reports whether p is a bijection of [0,n).
func (p Permutation) Valid(n int) bool {
	if len(p) != n {
		return false
	}
	seen := make([]bool, n)
	for _, j := range p {
		if j < 0 || j >= n || seen[j] {
			return false
		}
		seen[j] = true
	}
	return true
}

//Equal reports whether p and q are the same permutation.
func (p Permutation) Equal(q Permutation) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

//String encodes the permutation as pipe-separated indexes, the format
//used by the scanner restart files.
func (p Permutation) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, "|")
}

//ParsePermutation decodes the pipe-separated format produced by
//Permutation.String.
func ParsePermutation(s string) (Permutation, error) {
	fields := strings.Split(strings.TrimSpace(s), "|")
	p := make(Permutation, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(f, "%d", &v); err != nil {
			return nil, NewError("ParsePermutation", "malformed permutation string: "+s)
		}
		p = append(p, v)
	}
	return p, nil
}

//ApplyOrder returns a new molecule with the atoms of M reordered by p.
//The element sequence of the result is zs[p[j]]. It fails if p is not
//a valid permutation of the molecule's atoms.
func (M *Molecule) ApplyOrder(p Permutation) (*Molecule, error) {
	if !p.Valid(M.Len()) {
		return nil, NewError("ApplyOrder", "invalid permutation for molecule")
	}
	zs := make([]int, M.Len())
	coords := v3.Zeros(M.Len())
	for j, src := range p {
		zs[j] = M.zs[src]
		coords.SetRow(j, M.coords.RawRowView(src))
	}
	N, _ := NewMolecule(zs, coords)
	N.energy = M.energy
	N.name = M.name
	return N, nil
}
