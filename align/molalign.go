/*
 * molalign.go, part of curcuma
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

package align

import (
	"os"
	"os/exec"
	"path/filepath"

	curcuma "github.com/awvwgk/curcuma"
)

//molalignReorder delegates the permutation search to the external
//molalign program: both structures are written to a scratch
//directory, the tool is run with the configured arguments, and the
//permutation is recovered from the remapped file it writes by exact
//coordinate matching against the original target.
func (D *Driver) molalignReorder() (curcuma.Permutation, error) {
	bin, err := exec.LookPath(D.conf.MolAlignBin)
	if err != nil {
		return nil, curcuma.NewError("molalignReorder", "external aligner not found: "+D.conf.MolAlignBin)
	}
	dir, err := os.MkdirTemp("", "molalign")
	if err != nil {
		return nil, errDecorate(err, "molalignReorder")
	}
	defer os.RemoveAll(dir)
	refFile := filepath.Join(dir, "reference.xyz")
	tarFile := filepath.Join(dir, "target.xyz")
	if err := D.ref.WriteXYZ(refFile); err != nil {
		return nil, errDecorate(err, "molalignReorder")
	}
	if err := D.tar.WriteXYZ(tarFile); err != nil {
		return nil, errDecorate(err, "molalignReorder")
	}
	args := append([]string{}, D.conf.MolAlignArgs...)
	args = append(args, refFile, tarFile)
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		return nil, curcuma.NewError("molalignReorder", "external aligner failed: "+err.Error())
	}
	remapped, err := curcuma.ReadXYZ(filepath.Join(dir, "aligned_1.xyz"))
	if err != nil {
		return nil, curcuma.NewError("molalignReorder", "external aligner wrote no readable result")
	}
	return permutationByCoordinates(D.tar, remapped)
}

//permutationByCoordinates recovers the permutation that maps original
//onto reordered by matching coordinates within a small tolerance.
func permutationByCoordinates(original, reordered *curcuma.Molecule) (curcuma.Permutation, error) {
	const tol2 = 1e-8
	n := original.Len()
	if reordered.Len() != n {
		return nil, InputMismatchError{}
	}
	used := make([]bool, n)
	perm := make(curcuma.Permutation, n)
	for i := 0; i < n; i++ {
		a := reordered.Coords().RawRowView(i)
		found := -1
		for j := 0; j < n; j++ {
			if used[j] || original.Z(j) != reordered.Z(i) {
				continue
			}
			b := original.Coords().RawRowView(j)
			dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
			if dx*dx+dy*dy+dz*dz < tol2 {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, curcuma.NewError("permutationByCoordinates", "remapped structure does not match target coordinates")
		}
		perm[i] = found
		used[found] = true
	}
	return perm, nil
}
