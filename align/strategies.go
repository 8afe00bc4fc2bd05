/*
 * strategies.go, part of curcuma
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
	"math"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
	"gonum.org/v1/gonum/mat"
)

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

//freeReorder solves the full cost-matrix assignment over all atoms,
//iterating alignment and reassignment until the permutation is stable
//or the trial budget runs out.
func (D *Driver) freeReorder() (curcuma.Permutation, error) {
	n := D.ref.Len()
	cref := curcuma.Center(D.ref.Coords(), nil)
	ctar := curcuma.Center(D.tar.Coords(), nil)
	refZ, tarZ := D.ref.Zs(), D.tar.Zs()
	all := allIndexes(n)

	rotated := v3.Zeros(n)
	rotated.Copy(ctar)
	var perm []int
	for trial := 0; trial < D.conf.MaxTrial; trial++ {
		if D.conf.UpdateRotation && trial > 0 {
			R := refineRotation(cref, rotated, refZ, tarZ, all, all, D.conf.CostKernel)
			rotated = curcuma.Rotate(rotated, R)
		}
		_, C := MakeCostMatrix(cref, rotated, refZ, tarZ, all, all, D.conf.CostKernel)
		next, err := SolveAssignment(C)
		if err != nil {
			return nil, err
		}
		if perm != nil && samePerm(perm, next) {
			break
		}
		perm = next
		//re-align the target under the fresh assignment for the
		//next round
		R, err := rotationForMapping(cref, ctar, perm)
		if err != nil {
			break
		}
		rotated = curcuma.Rotate(ctar, R)
	}
	return curcuma.Permutation(perm), nil
}

//heavyReorder strips hydrogens, assigns the heavy-atom scaffold and
//fills the hydrogens by nearest neighbour inside the aligned frame.
func (D *Driver) heavyReorder() (curcuma.Permutation, error) {
	n := D.ref.Len()
	refZ, tarZ := D.ref.Zs(), D.tar.Zs()
	var refHeavy, tarHeavy []int
	for i := 0; i < n; i++ {
		if refZ[i] != 1 {
			refHeavy = append(refHeavy, i)
		}
		if tarZ[i] != 1 {
			tarHeavy = append(tarHeavy, i)
		}
	}
	if len(refHeavy) == 0 {
		return D.distanceReorder()
	}
	cref := curcuma.Center(D.ref.Coords(), nil)
	ctar := curcuma.Center(D.tar.Coords(), nil)
	_, C := MakeCostMatrix(cref, ctar, refZ, tarZ, refHeavy, tarHeavy, D.conf.CostKernel)
	sub, err := SolveAssignment(C)
	if err != nil {
		return nil, err
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = -1
	}
	refSel := make([]int, 0, len(refHeavy))
	tarSel := make([]int, 0, len(refHeavy))
	for a, b := range sub {
		perm[refHeavy[a]] = tarHeavy[b]
		refSel = append(refSel, refHeavy[a])
		tarSel = append(tarSel, tarHeavy[b])
	}
	R, err := rotationForSubsets(cref, ctar, refSel, tarSel)
	if err != nil {
		return nil, errDecorate(err, "heavyReorder")
	}
	rotated := curcuma.Rotate(ctar, R)
	if err := fillMissing(perm, cref, rotated, refZ, tarZ); err != nil {
		return nil, err
	}
	return curcuma.Permutation(perm), nil
}

//templateReorder restricts the first assignment to atoms of the
//template elements, aligns on that mapping and completes the
//permutation by greedy distance matching.
func (D *Driver) templateReorder(elements []int) (curcuma.Permutation, error) {
	n := D.ref.Len()
	refZ, tarZ := D.ref.Zs(), D.tar.Zs()
	isTemplate := func(z int) bool {
		for _, e := range elements {
			if z == e {
				return true
			}
		}
		return false
	}
	var refT, tarT []int
	for i := 0; i < n; i++ {
		if isTemplate(refZ[i]) {
			refT = append(refT, i)
		}
		if isTemplate(tarZ[i]) {
			tarT = append(tarT, i)
		}
	}
	if len(refT) == 0 || len(refT) != len(tarT) {
		return D.distanceReorder()
	}
	cref := curcuma.Center(D.ref.Coords(), nil)
	ctar := curcuma.Center(D.tar.Coords(), nil)
	_, C := MakeCostMatrix(cref, ctar, refZ, tarZ, refT, tarT, D.conf.CostKernel)
	sub, err := SolveAssignment(C)
	if err != nil {
		return nil, err
	}
	refSel := make([]int, 0, len(refT))
	tarSel := make([]int, 0, len(refT))
	for a, b := range sub {
		refSel = append(refSel, refT[a])
		tarSel = append(tarSel, tarT[b])
	}
	R, err := rotationForSubsets(cref, ctar, refSel, tarSel)
	if err != nil {
		return nil, errDecorate(err, "templateReorder")
	}
	rotated := curcuma.Rotate(ctar, R)
	return greedyNearest(cref, rotated, refZ, tarZ)
}

//distanceReorder is the greedy nearest-neighbour heuristic inside
//element classes, iterated with re-alignment up to MaxTrial times.
//It is also the recovery path when the assignment is infeasible.
func (D *Driver) distanceReorder() (curcuma.Permutation, error) {
	cref := curcuma.Center(D.ref.Coords(), nil)
	ctar := curcuma.Center(D.tar.Coords(), nil)
	refZ, tarZ := D.ref.Zs(), D.tar.Zs()

	rotated := v3.Zeros(ctar.NVecs())
	rotated.Copy(ctar)
	var best curcuma.Permutation
	bestCost := math.Inf(1)
	for trial := 0; trial < D.conf.MaxTrial; trial++ {
		perm, err := greedyNearest(cref, rotated, refZ, tarZ)
		if err != nil {
			return nil, err
		}
		cost := permCost(cref, rotated, perm, D.conf.CostKernel)
		if cost < bestCost {
			bestCost = cost
			best = perm
		}
		R, err := rotationForMapping(cref, ctar, perm)
		if err != nil {
			break
		}
		rotated = curcuma.Rotate(ctar, R)
	}
	return best, nil
}

//greedyNearest assigns each reference atom, in index order, the
//nearest unused target atom of the same element.
func greedyNearest(cref, ctar *v3.Matrix, refZ, tarZ []int) (curcuma.Permutation, error) {
	n := len(refZ)
	used := make([]bool, n)
	perm := make(curcuma.Permutation, n)
	for i := 0; i < n; i++ {
		bestJ := -1
		bestD := math.Inf(1)
		a := cref.RawRowView(i)
		for j := 0; j < n; j++ {
			if used[j] || tarZ[j] != refZ[i] {
				continue
			}
			b := ctar.RawRowView(j)
			dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
			d := dx*dx + dy*dy + dz*dz
			if d < bestD {
				bestD = d
				bestJ = j
			}
		}
		if bestJ < 0 {
			return nil, InputMismatchError{}
		}
		perm[i] = bestJ
		used[bestJ] = true
	}
	return perm, nil
}

//fillMissing completes a partial permutation (entries -1) by nearest
//neighbour inside element classes on already-aligned geometries.
func fillMissing(perm []int, cref, ctar *v3.Matrix, refZ, tarZ []int) error {
	n := len(perm)
	used := make([]bool, n)
	for _, j := range perm {
		if j >= 0 {
			used[j] = true
		}
	}
	for i := 0; i < n; i++ {
		if perm[i] >= 0 {
			continue
		}
		bestJ := -1
		bestD := math.Inf(1)
		a := cref.RawRowView(i)
		for j := 0; j < n; j++ {
			if used[j] || tarZ[j] != refZ[i] {
				continue
			}
			b := ctar.RawRowView(j)
			dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
			d := dx*dx + dy*dy + dz*dz
			if d < bestD {
				bestD = d
				bestJ = j
			}
		}
		if bestJ < 0 {
			return InputMismatchError{}
		}
		perm[i] = bestJ
		used[bestJ] = true
	}
	return nil
}

//rotationForMapping derives the best-fit rotation for the full
//geometries under the mapping perm (reference atom i vs target atom
//perm[i]).
func rotationForMapping(cref, ctar *v3.Matrix, perm []int) (*mat.Dense, error) {
	reordered := v3.Zeros(len(perm))
	for i, j := range perm {
		reordered.SetRow(i, ctar.RawRowView(j))
	}
	return curcuma.RotationMatrix(reordered, cref)
}

//rotationForSubsets derives the rotation from matched subsets,
//centering both on the subset centroids as the template strategies
//require.
func rotationForSubsets(cref, ctar *v3.Matrix, refSel, tarSel []int) (*mat.Dense, error) {
	a := cref.SomeVecs(refSel)
	b := ctar.SomeVecs(tarSel)
	ca := curcuma.Center(a, nil)
	cb := curcuma.Center(b, nil)
	return curcuma.RotationMatrix(cb, ca)
}

func samePerm(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
