/*
 * cost.go, part of curcuma
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

//Package align solves the atom-correspondence problem between two
//molecules with the same composition but possibly permuted atom
//indexes, and computes best-fit RMSD values under the permutations it
//finds. It is the shared core of the conformer scanner and the
//RMSD-metadynamics bias.
package align

import (
	"math"

	v3 "github.com/awvwgk/curcuma/v3"
)

//Sentinel is the cost assigned to element-incompatible pairs so the
//assignment solver never selects them.
const Sentinel = 1e10

//Cost maps a per-pair distance and norm product onto an assignment
//cost. Kernels follow the costmatrix parameter, 1 through 6; any
//other value falls back to squared distance.
func Cost(distance, norm float64, kernel int) float64 {
	switch kernel {
	case 2:
		return distance
	case 3:
		return distance + norm
	case 4:
		return distance*distance + norm*norm
	case 5:
		return distance * norm
	case 6:
		return distance * distance * norm * norm
	default:
		return distance * distance
	}
}

//MakeCostMatrix builds the assignment-cost matrix between the
//reference atoms listed in refAtoms and the target atoms in tarAtoms.
//Pairs with different elements get the Sentinel cost. Both geometries
//are expected centered. The first return value is the sum of the
//minimal entry of each row, a lower bound on any assignment cost that
//the outer searches use for pruning.
func MakeCostMatrix(refGeo, tarGeo *v3.Matrix, refZ, tarZ []int, refAtoms, tarAtoms []int, kernel int) (float64, [][]float64) {
	C := make([][]float64, len(refAtoms))
	var bound float64
	for a, i := range refAtoms {
		C[a] = make([]float64, len(tarAtoms))
		ri := refGeo.RawRowView(i)
		ni := math.Sqrt(ri[0]*ri[0] + ri[1]*ri[1] + ri[2]*ri[2])
		rowMin := math.Inf(1)
		for b, j := range tarAtoms {
			if refZ[i] != tarZ[j] {
				C[a][b] = Sentinel
				continue
			}
			tj := tarGeo.RawRowView(j)
			dx, dy, dz := ri[0]-tj[0], ri[1]-tj[1], ri[2]-tj[2]
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			nj := math.Sqrt(tj[0]*tj[0] + tj[1]*tj[1] + tj[2]*tj[2])
			C[a][b] = Cost(d, ni*nj, kernel)
			if C[a][b] < rowMin {
				rowMin = C[a][b]
			}
		}
		if !math.IsInf(rowMin, 1) && rowMin < Sentinel {
			bound += rowMin
		}
	}
	return bound, C
}
