/*
 * desc.go, part of curcuma
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

//Package desc computes the cheap geometric descriptors used by the
//conformer scanner as pre-filters: rotational constants and a
//persistence image of the interatomic distance filtration.
package desc

import (
	"math"
	"sort"

	curcuma "github.com/awvwgk/curcuma"
	"gonum.org/v1/gonum/mat"
)

//rotConstFactor converts 1/(amu*A^2) moments of inertia into MHz:
//h/(8 pi^2) in the matching units.
const rotConstFactor = 505379.0045

//RotationalConstants returns the three rotational constants (MHz),
//sorted descending (A >= B >= C in the spectroscopic convention),
//from the eigenvalues of the moment-of-inertia tensor. A linear
//molecule yields a zero constant for its vanishing moment.
func RotationalConstants(mol *curcuma.Molecule) [3]float64 {
	I := curcuma.MomentTensor(mol.Coords(), mol.Masses())
	var eig mat.EigenSym
	if ok := eig.Factorize(I, false); !ok {
		return [3]float64{}
	}
	vals := eig.Values(nil)
	var ret [3]float64
	for i, v := range vals {
		if v > 1e-10 {
			ret[i] = rotConstFactor / v
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ret[:])))
	return ret
}

//union-find over atom indexes, used to pair the 0-dimensional
//persistence features of the distance filtration.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

//union merges the sets of i and j; returns false if they already
//shared a set.
func (u *unionFind) union(i, j int) bool {
	ri, rj := u.find(i), u.find(j)
	if ri == rj {
		return false
	}
	if u.rank[ri] < u.rank[rj] {
		ri, rj = rj, ri
	}
	u.parent[rj] = ri
	if u.rank[ri] == u.rank[rj] {
		u.rank[ri]++
	}
	return true
}

//PersistencePairs computes the finite 0-dimensional persistence
//pairs (birth 0, death = merge distance) of the Vietoris-Rips
//filtration over the lower-triangular distance vector of n points.
//There are exactly n-1 finite pairs; the essential class is dropped.
func PersistencePairs(lowerDistances []float64, n int) []float64 {
	type edge struct {
		i, j int
		d    float64
	}
	edges := make([]edge, 0, len(lowerDistances))
	k := 0
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			edges = append(edges, edge{i, j, lowerDistances[k]})
			k++
		}
	}
	sort.Slice(edges, func(a, b int) bool { return edges[a].d < edges[b].d })
	u := newUnionFind(n)
	deaths := make([]float64, 0, n-1)
	for _, e := range edges {
		if u.union(e.i, e.j) {
			deaths = append(deaths, e.d)
			if len(deaths) == n-1 {
				break
			}
		}
	}
	return deaths
}

//ImageConfig controls the persistence-image rasterisation.
type ImageConfig struct {
	Bins  int     //image is Bins x Bins
	MaxD  float64 //death axis upper bound, Angstrom
	Sigma float64 //gaussian smearing width
}

//DefaultImageConfig mirrors the descriptor resolution the scanner
//calibration was tuned on.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{Bins: 10, MaxD: 8.0, Sigma: 0.5}
}

//PersistenceImage rasterises the 0-dimensional persistence pairs of
//the molecule's distance filtration into a fixed-size dense matrix:
//each death value contributes a gaussian, weighted by its
//persistence, along the columns of the single row whose bin contains
//the death value. Identical geometries with permuted atom indexes produce
//identical images, which is what makes the descriptor usable as a
//pre-filter before any reordering.
func PersistenceImage(mol *curcuma.Molecule, conf ImageConfig) *mat.Dense {
	n := mol.Len()
	deaths := PersistencePairs(curcuma.LowerDistanceVector(mol.Coords()), n)
	img := mat.NewDense(conf.Bins, conf.Bins, nil)
	if len(deaths) == 0 {
		return img
	}
	step := conf.MaxD / float64(conf.Bins)
	for _, d := range deaths {
		row := int(d / step)
		if row >= conf.Bins {
			row = conf.Bins - 1
		}
		for c := 0; c < conf.Bins; c++ {
			x := (float64(c)+0.5)*step - d
			img.Set(row, c, img.At(row, c)+d*math.Exp(-x*x/(2*conf.Sigma*conf.Sigma)))
		}
	}
	return img
}

//ImageDistance returns the sum of absolute differences between two
//persistence images, the Delta-H quantity of the scanner thresholds.
func ImageDistance(a, b *mat.Dense) float64 {
	if a == nil || b == nil {
		return 0
	}
	ra, ca := a.Dims()
	var sum float64
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			sum += math.Abs(a.At(i, j) - b.At(i, j))
		}
	}
	return sum
}
