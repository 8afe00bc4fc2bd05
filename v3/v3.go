/*
 * v3.go, part of curcuma
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

//Package v3 implements a matrix of 3D cartesian vectors (an Nx3 matrix)
//on top of gonum's mat.Dense. Within the package a "vector" is a row of
//such a matrix, i.e. the coordinates of one point in 3D space.
package v3

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

//Matrix is a set of vectors in 3D space, implemented as an Nx3 dense
//matrix. It implements the gonum mat.Matrix interface through the
//embedded Dense.
type Matrix struct {
	*mat.Dense
}

//Matrix2Dense returns the embedded gonum matrix.
func Matrix2Dense(A *Matrix) *mat.Dense {
	return A.Dense
}

//Dense2Matrix wraps a gonum Dense into a Matrix. The Dense must have
//3 columns; the function panics otherwise.
func Dense2Matrix(A *mat.Dense) *Matrix {
	_, c := A.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return &Matrix{A}
}

//NewMatrix creates and returns a Matrix with 3 columns from data.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 {
		return nil, Error{fmt.Sprintf("input slice length %d not divisible by %d", l, cols), []string{"NewMatrix"}, true}
	}
	return &Matrix{mat.NewDense(rows, cols, data)}, nil
}

//Zeros returns a zero-filled Matrix with vecs vectors.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

//NVecs returns the number of vectors in the receiver.
func (F *Matrix) NVecs() int {
	r, _ := F.Dims()
	return r
}

//VecView returns a view of the ith vector of the matrix. Changes in
//the view are reflected in the original matrix.
func (F *Matrix) VecView(i int) *Matrix {
	r := F.Slice(i, i+1, 0, 3).(*mat.Dense)
	return &Matrix{r}
}

//View returns a view of F spanning r rows starting from i.
func (F *Matrix) View(i, r int) *Matrix {
	ret := F.Slice(i, i+r, 0, 3).(*mat.Dense)
	return &Matrix{ret}
}

//SomeVecs returns a new Matrix with the vectors of F at the indexes in
//clist, in that order.
func (F *Matrix) SomeVecs(clist []int) *Matrix {
	ret := Zeros(len(clist))
	for k, j := range clist {
		ret.SetRow(k, F.RawRowView(j))
	}
	return ret
}

//SetVecs sets the vectors at the indexes in clist to the rows of A,
//in order.
func (F *Matrix) SetVecs(A *Matrix, clist []int) {
	for k, j := range clist {
		F.SetRow(j, A.RawRowView(k))
	}
}

//SwapVecs swaps vectors i and j in place.
func (F *Matrix) SwapVecs(i, j int) {
	ri := make([]float64, 3)
	copy(ri, F.RawRowView(i))
	F.SetRow(i, F.RawRowView(j))
	F.SetRow(j, ri)
}

//Mul wraps mat.Dense.Mul to take care of the case when one of the
//arguments is also the receiver: the embedded Dense cannot see that
//a *Matrix argument aliases it.
func (F *Matrix) Mul(A, B mat.Matrix) {
	if C, ok := A.(*Matrix); ok {
		A = C.Dense
	}
	if C, ok := B.(*Matrix); ok {
		B = C.Dense
	}
	F.Dense.Mul(A, B)
}

//Scale wraps mat.Dense.Scale for the same reason as Mul: a *Matrix
//argument that is also the receiver is unwrapped so gonum sees the
//alias.
func (F *Matrix) Scale(f float64, A mat.Matrix) {
	if C, ok := A.(*Matrix); ok {
		A = C.Dense
	}
	F.Dense.Scale(f, A)
}

//AddVec adds the 1x3 row vector vec to every vector of A, putting the
//result in the receiver.
func (F *Matrix) AddVec(A, vec *Matrix) {
	if vec.NVecs() != 1 {
		panic(ErrShape)
	}
	v := vec.RawRowView(0)
	for i := 0; i < A.NVecs(); i++ {
		a := A.RawRowView(i)
		F.SetRow(i, []float64{a[0] + v[0], a[1] + v[1], a[2] + v[2]})
	}
}

//SubVec subtracts the 1x3 row vector vec from every vector of A,
//putting the result in the receiver.
func (F *Matrix) SubVec(A, vec *Matrix) {
	if vec.NVecs() != 1 {
		panic(ErrShape)
	}
	v := vec.RawRowView(0)
	for i := 0; i < A.NVecs(); i++ {
		a := A.RawRowView(i)
		F.SetRow(i, []float64{a[0] - v[0], a[1] - v[1], a[2] - v[2]})
	}
}

//Dot returns the dot product between the receiver and B, both of which
//must be 1x3 row vectors.
func (F *Matrix) Dot(B *Matrix) float64 {
	if F.NVecs() != 1 || B.NVecs() != 1 {
		panic(ErrShape)
	}
	a := F.RawRowView(0)
	b := B.RawRowView(0)
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

//Cross puts the cross product of the 1x3 vectors a and b in the
//receiver, which must also be 1x3.
func (F *Matrix) Cross(a, b *Matrix) {
	if F.NVecs() != 1 || a.NVecs() != 1 || b.NVecs() != 1 {
		panic(ErrNoCrossProduct)
	}
	av := a.RawRowView(0)
	bv := b.RawRowView(0)
	F.SetRow(0, []float64{
		av[1]*bv[2] - av[2]*bv[1],
		av[2]*bv[0] - av[0]*bv[2],
		av[0]*bv[1] - av[1]*bv[0],
	})
}

//Norm returns the Frobenius norm of the receiver. For a 1x3 vector
//this is the usual Euclidean norm.
func (F *Matrix) Norm() float64 {
	return mat.Norm(F.Dense, 2)
}

//Det returns the determinant of a 3x3 matrix. It panics if the
//receiver has other dimensions.
func Det(A mat.Matrix) float64 {
	r, c := A.Dims()
	if r != 3 || c != 3 {
		panic(ErrDeterminant)
	}
	return A.At(0, 0)*(A.At(1, 1)*A.At(2, 2)-A.At(2, 1)*A.At(1, 2)) -
		A.At(1, 0)*(A.At(0, 1)*A.At(2, 2)-A.At(2, 1)*A.At(0, 2)) +
		A.At(2, 0)*(A.At(0, 1)*A.At(1, 2)-A.At(1, 1)*A.At(0, 2))
}

//Errors

//Error is the error type for the v3 package. It carries a message and
//a decoration trail with the names of the functions the error went
//through.
type Error struct {
	message  string
	deco     []string
	critical bool
}

//Error returns a string with an error message.
func (err Error) Error() string {
	return err.message
}

//Decorate returns the decoration trail of the error with dec
//appended. The receiver is a value, so the trail stored in err itself
//is not extended.
func (err Error) Decorate(dec string) []string {
	err.deco = append(err.deco, dec)
	return err.deco
}

//Critical returns whether the error is critical or can be ignored.
func (err Error) Critical() bool { return err.critical }

//PanicMsg is a message used for panics. For errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix   = PanicMsg("curcuma/v3: a Matrix must have 3 columns")
	ErrNoCrossProduct = PanicMsg("curcuma/v3: invalid matrix for cross product")
	ErrDeterminant    = PanicMsg("curcuma/v3: determinants are only available for 3x3 matrices")
	ErrShape          = PanicMsg("curcuma/v3: dimension mismatch")
)
