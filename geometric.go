/*
 * geometric.go, part of curcuma
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
	"math"

	v3 "github.com/awvwgk/curcuma/v3"
	"gonum.org/v1/gonum/mat"
)

//Centroid returns the arithmetic mean of the vectors in geometry as a
//1x3 matrix. If masses is non-nil it must have one entry per vector
//and the mass-weighted center is returned instead.
func Centroid(geometry *v3.Matrix, masses []float64) *v3.Matrix {
	n := geometry.NVecs()
	ret := v3.Zeros(1)
	var total float64
	for i := 0; i < n; i++ {
		w := 1.0
		if masses != nil {
			w = masses[i]
		}
		r := geometry.RawRowView(i)
		ret.Set(0, 0, ret.At(0, 0)+w*r[0])
		ret.Set(0, 1, ret.At(0, 1)+w*r[1])
		ret.Set(0, 2, ret.At(0, 2)+w*r[2])
		total += w
	}
	ret.Scale(1/total, ret)
	return ret
}

//Center returns a copy of geometry translated so that its centroid
//(or center of mass, if masses is non-nil) sits at the origin.
func Center(geometry *v3.Matrix, masses []float64) *v3.Matrix {
	c := Centroid(geometry, masses)
	ret := v3.Zeros(geometry.NVecs())
	ret.SubVec(geometry, c)
	return ret
}

//RotationMatrix returns the proper rotation R that best aligns the
//centered coordinate set test onto the centered set templa, via the
//singular value decomposition of H = templaᵀ·test with the
//determinant sign fix that excludes reflections. Both inputs must be
//centered by the caller and are not modified.
func RotationMatrix(test, templa *v3.Matrix) (*mat.Dense, error) {
	tr, _ := templa.Dims()
	sr, _ := test.Dims()
	if tr != sr {
		return nil, NewError("RotationMatrix", "ill-formed matrices for superposition")
	}
	H := mat.NewDense(3, 3, nil)
	H.Mul(templa.T(), test.Dense)
	var svd mat.SVD
	if ok := svd.Factorize(H, mat.SVDFull); !ok {
		return nil, NewError("RotationMatrix", "SVD failed for rotation matrix")
	}
	U := mat.NewDense(3, 3, nil)
	V := mat.NewDense(3, 3, nil)
	svd.UTo(U)
	svd.VTo(V)
	//d fixes the handedness so R is a rotation, never a reflection
	tmp := mat.NewDense(3, 3, nil)
	tmp.Mul(V, U.T())
	d := 1.0
	if v3.Det(tmp) < 0 {
		d = -1.0
	}
	D := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, d})
	R := mat.NewDense(3, 3, nil)
	R.Mul(V, D)
	R.Mul(R, U.T())
	return R, nil
}

//Rotate returns geometry·R as a new matrix.
func Rotate(geometry *v3.Matrix, R *mat.Dense) *v3.Matrix {
	ret := v3.Zeros(geometry.NVecs())
	ret.Mul(geometry, R)
	return ret
}

//RMSD returns the plain root-mean-square deviation between two
//coordinate sets in their current orientation, without aligning them.
func RMSD(test, templa *v3.Matrix) (float64, error) {
	tr, _ := templa.Dims()
	sr, _ := test.Dims()
	if tr != sr {
		return 0, NewError("RMSD", "ill-formed matrices for RMSD calculation")
	}
	var sum float64
	for i := 0; i < tr; i++ {
		a := test.RawRowView(i)
		b := templa.RawRowView(i)
		dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
		sum += dx*dx + dy*dy + dz*dz
	}
	return math.Sqrt(sum / float64(tr)), nil
}

//BestFitRMSD centers both coordinate sets, rotates test onto templa
//and returns the resulting RMSD together with the rotation used.
func BestFitRMSD(test, templa *v3.Matrix) (float64, *mat.Dense, error) {
	ctest := Center(test, nil)
	ctempla := Center(templa, nil)
	R, err := RotationMatrix(ctest, ctempla)
	if err != nil {
		return 0, nil, errDecorate(err, "BestFitRMSD")
	}
	rotated := Rotate(ctest, R)
	rmsd, err := RMSD(rotated, ctempla)
	if err != nil {
		return 0, nil, errDecorate(err, "BestFitRMSD")
	}
	return rmsd, R, nil
}

//Superpose centers test and templa, rotates test onto templa and
//returns both centered sets with test aligned.
func Superpose(test, templa *v3.Matrix) (*v3.Matrix, *v3.Matrix, error) {
	ctest := Center(test, nil)
	ctempla := Center(templa, nil)
	R, err := RotationMatrix(ctest, ctempla)
	if err != nil {
		return nil, nil, errDecorate(err, "Superpose")
	}
	return Rotate(ctest, R), ctempla, nil
}

//MomentTensor returns the moment-of-inertia tensor (amu·A^2) for the
//given geometry and masses, about the center of mass.
func MomentTensor(geometry *v3.Matrix, masses []float64) *mat.SymDense {
	centered := Center(geometry, masses)
	I := mat.NewSymDense(3, nil)
	for i := 0; i < centered.NVecs(); i++ {
		m := masses[i]
		r := centered.RawRowView(i)
		x, y, z := r[0], r[1], r[2]
		I.SetSym(0, 0, I.At(0, 0)+m*(y*y+z*z))
		I.SetSym(1, 1, I.At(1, 1)+m*(x*x+z*z))
		I.SetSym(2, 2, I.At(2, 2)+m*(x*x+y*y))
		I.SetSym(0, 1, I.At(0, 1)-m*x*y)
		I.SetSym(0, 2, I.At(0, 2)-m*x*z)
		I.SetSym(1, 2, I.At(1, 2)-m*y*z)
	}
	return I
}

//Distance returns the Euclidean distance between atoms i and j of
//the geometry.
func Distance(geometry *v3.Matrix, i, j int) float64 {
	a := geometry.RawRowView(i)
	b := geometry.RawRowView(j)
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

//LowerDistanceVector returns the strict lower triangle of the
//interatomic distance matrix, row by row: d(1,0), d(2,0), d(2,1), ...
//This is the input of the persistence-diagram descriptor.
func LowerDistanceVector(geometry *v3.Matrix) []float64 {
	n := geometry.NVecs()
	ret := make([]float64, 0, n*(n-1)/2)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			ret = append(ret, Distance(geometry, i, j))
		}
	}
	return ret
}
