/*
 * munkres.go, part of curcuma
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
)

//InfeasibleError reports an assignment in which some row has no
//element-compatible column. Callers recover by falling back to the
//distance-reorder heuristic.
type InfeasibleError struct {
	Row int
}

func (e InfeasibleError) Error() string {
	return "align: assignment infeasible, no valid column for row"
}

func (e InfeasibleError) Critical() bool          { return false }
func (e InfeasibleError) Decorate(string) []string { return nil }

//SolveAssignment solves the linear-sum assignment problem on the
//square cost matrix, returning the column assigned to each row so
//that the total cost is minimal. The implementation is the O(n^3)
//Hungarian algorithm with row and column potentials. If the optimal
//assignment is forced through a Sentinel entry the matching is
//infeasible under the element restrictions and an InfeasibleError is
//returned.
func SolveAssignment(cost [][]float64) ([]int, error) {
	n := len(cost)
	if n == 0 {
		return nil, curcuma.NewError("SolveAssignment", "empty cost matrix")
	}
	for _, row := range cost {
		if len(row) != n {
			return nil, curcuma.NewError("SolveAssignment", "cost matrix is not square")
		}
	}
	const inf = math.MaxFloat64
	//potentials and matching use 1-based indexing with a dummy 0th
	//row/column, the classic formulation.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) //p[j] = row matched to column j
	way := make([]int, n+1)
	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}
	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] == 0 {
			return nil, InfeasibleError{}
		}
		assignment[p[j]-1] = j - 1
	}
	for i, j := range assignment {
		if cost[i][j] >= Sentinel/2 {
			return nil, InfeasibleError{Row: i}
		}
	}
	return assignment, nil
}
