/*
 * incremental.go, part of curcuma
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
	"container/heap"
	"sort"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
)

//partial is one node of the incremental search: a prefix permutation
//and its alignment cost. Reference atoms 0..len(perm)-1 are assigned.
type partial struct {
	perm []int
	used uint64Set
	cost float64
}

type uint64Set []uint64

func newUint64Set(n int) uint64Set { return make(uint64Set, (n+63)/64) }

func (s uint64Set) has(i int) bool { return s[i/64]&(1<<uint(i%64)) != 0 }

func (s uint64Set) clone() uint64Set {
	c := make(uint64Set, len(s))
	copy(c, s)
	return c
}

func (s uint64Set) set(i int) { s[i/64] |= 1 << uint(i%64) }

//partialQueue is a min-heap of partials ordered by cost, with ties
//broken by the earlier target index sequence.
type partialQueue []*partial

func (q partialQueue) Len() int { return len(q) }
func (q partialQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	a, b := q[i].perm, q[j].perm
	for k := range a {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}
func (q partialQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *partialQueue) Push(x any)   { *q = append(*q, x.(*partial)) }
func (q *partialQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

//incrementalReorder grows permutations one reference atom at a time,
//keeping a beam of at most Limit best partials per level. The cost of
//a partial is the summed pair cost after best-fit alignment of the
//assigned prefix. The search stops early when a complete permutation
//reaches the target RMSD.
func (D *Driver) incrementalReorder() (curcuma.Permutation, error) {
	n := D.ref.Len()
	cref := curcuma.Center(D.ref.Coords(), nil)
	ctar := curcuma.Center(D.tar.Coords(), nil)
	refZ, tarZ := D.ref.Zs(), D.tar.Zs()
	limit := D.conf.Limit
	if limit < 1 {
		limit = 10
	}

	level := []*partial{{perm: nil, used: newUint64Set(n)}}
	for k := 0; k < n; k++ {
		next := &partialQueue{}
		heap.Init(next)
		for _, p := range level {
			for j := 0; j < n; j++ {
				if p.used.has(j) || tarZ[j] != refZ[k] {
					continue
				}
				perm := make([]int, k+1)
				copy(perm, p.perm)
				perm[k] = j
				cand := &partial{
					perm: perm,
					used: p.used.clone(),
					cost: prefixCost(cref, ctar, perm, D.conf.CostKernel),
				}
				cand.used.set(j)
				heap.Push(next, cand)
			}
		}
		if next.Len() == 0 {
			return nil, InfeasibleError{Row: k}
		}
		level = level[:0]
		for next.Len() > 0 && len(level) < limit {
			level = append(level, heap.Pop(next).(*partial))
		}
	}
	sort.Slice(level, func(i, j int) bool { return level[i].cost < level[j].cost })
	best := curcuma.Permutation(level[0].perm)
	if D.conf.TargetRMSD > 0 {
		for _, p := range level {
			if r, err := D.Rules2RMSD(curcuma.Permutation(p.perm)); err == nil && r <= D.conf.TargetRMSD {
				return curcuma.Permutation(p.perm), nil
			}
		}
	}
	return best, nil
}

//prefixCost aligns the assigned prefix of the permutation and returns
//its summed pair cost.
func prefixCost(cref, ctar *v3.Matrix, perm []int, kernel int) float64 {
	k := len(perm)
	refSub := cref.View(0, k)
	tarSub := v3.Zeros(k)
	for i, j := range perm {
		tarSub.SetRow(i, ctar.RawRowView(j))
	}
	ra := curcuma.Center(refSub, nil)
	ta := curcuma.Center(tarSub, nil)
	if k == 1 {
		return 0
	}
	R, err := curcuma.RotationMatrix(ta, ra)
	if err != nil {
		return Sentinel
	}
	rotated := curcuma.Rotate(ta, R)
	identity := make([]int, k)
	for i := range identity {
		identity[i] = i
	}
	return permCost(ra, rotated, identity, kernel)
}
