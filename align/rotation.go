/*
 * rotation.go, part of curcuma
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
	"gonum.org/v1/gonum/optimize"
)

//eulerRotation composes a rotation matrix from rotations about the
//x, y and z axes, in that order.
func eulerRotation(a, b, c float64) *mat.Dense {
	sa, ca := math.Sin(a), math.Cos(a)
	sb, cb := math.Sin(b), math.Cos(b)
	sc, cc := math.Sin(c), math.Cos(c)
	Rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, ca, -sa, 0, sa, ca})
	Ry := mat.NewDense(3, 3, []float64{cb, 0, sb, 0, 1, 0, -sb, 0, cb})
	Rz := mat.NewDense(3, 3, []float64{cc, -sc, 0, sc, cc, 0, 0, 0, 1})
	R := mat.NewDense(3, 3, nil)
	R.Mul(Rx, Ry)
	R.Mul(R, Rz)
	return R
}

//refineRotation minimises the cost-matrix lower bound over the three
//Euler angles with L-BFGS, starting from the identity. The gradient
//is a central difference with the step the original optimiser used.
//On any optimiser failure the identity rotation is returned; the
//refinement is an improvement step, never a requirement.
func refineRotation(refGeo, tarGeo *v3.Matrix, refZ, tarZ []int, refAtoms, tarAtoms []int, kernel int) *mat.Dense {
	const dx = 1e-5
	f := func(x []float64) float64 {
		R := eulerRotation(x[0], x[1], x[2])
		rotated := curcuma.Rotate(tarGeo, R)
		bound, _ := MakeCostMatrix(refGeo, rotated, refZ, tarZ, refAtoms, tarAtoms, kernel)
		return bound
	}
	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, x []float64) {
			tmp := make([]float64, 3)
			copy(tmp, x)
			for i := 0; i < 3; i++ {
				tmp[i] = x[i] + dx
				p := f(tmp)
				tmp[i] = x[i] - dx
				m := f(tmp)
				tmp[i] = x[i]
				grad[i] = (p - m) / (2 * dx)
			}
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 50,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-8, Iterations: 10},
	}
	result, err := optimize.Minimize(problem, []float64{0, 0, 0}, settings, &optimize.LBFGS{})
	if err != nil || result == nil {
		return eulerRotation(0, 0, 0)
	}
	return eulerRotation(result.X[0], result.X[1], result.X[2])
}
