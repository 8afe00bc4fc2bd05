/*
 * driver.go, part of curcuma
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
	"errors"
	"math"

	curcuma "github.com/awvwgk/curcuma"
	v3 "github.com/awvwgk/curcuma/v3"
	"gonum.org/v1/gonum/mat"
)

//InputMismatchError reports reference/target pairs that cannot be
//aligned because their composition differs.
type InputMismatchError struct{}

func (e InputMismatchError) Error() string {
	return "align: reference and target differ in atom count or element multiset"
}

func (e InputMismatchError) Critical() bool           { return true }
func (e InputMismatchError) Decorate(string) []string { return nil }

//Config collects the settings of the RMSD driver. The zero value is
//not usable; start from DefaultConfig.
type Config struct {
	//Method selects the reorder strategy: free, heavy, template,
	//hybrid, distance, incremental or molalign.
	Method string `json:"method"`
	//CostKernel is the costmatrix parameter, 1..6.
	CostKernel int `json:"costmatrix"`
	//Limit bounds the beam of the incremental search.
	Limit int `json:"limit"`
	//MaxTrial bounds the align/reassign iterations of the free and
	//distance strategies.
	MaxTrial int `json:"maxtrial"`
	//Element is the template element of the template strategy.
	Element int `json:"element"`
	//Elements are the template elements of the hybrid strategy.
	Elements []int `json:"elements"`
	//TargetRMSD stops the incremental search early once reached.
	TargetRMSD float64 `json:"target_rmsd"`
	//UpdateRotation refines the rotation between assignment rounds.
	UpdateRotation bool `json:"update_rotation"`
	//NoReorder turns RMSD() into BestFitRMSD().
	NoReorder bool `json:"noreorder"`
	//MolAlignBin is the external aligner binary for method molalign.
	MolAlignBin  string   `json:"molalignbin"`
	MolAlignArgs []string `json:"molalignarg"`
}

//DefaultConfig returns the driver defaults.
func DefaultConfig() *Config {
	return &Config{
		Method:       "incremental",
		CostKernel:   1,
		Limit:        10,
		MaxTrial:     5,
		Element:      7,
		MolAlignBin:  "molalign",
		MolAlignArgs: []string{"-remap", "-fast", "-tol", "10"},
	}
}

//Driver computes best-fit RMSD values between a reference and a
//target molecule, searching over atom permutations with the strategy
//selected in its Config. A Driver is not safe for concurrent use;
//parallel callers own one driver each.
type Driver struct {
	conf *Config
	ref  *curcuma.Molecule
	tar  *curcuma.Molecule

	rules    curcuma.Permutation
	rmsd     float64
	topoDiff int

	//last alignment, kept for Gradient and TargetAligned
	lastRot *mat.Dense
	lastRef *v3.Matrix
	lastTar *v3.Matrix
}

//NewDriver builds a driver with the given configuration; a nil conf
//selects the defaults.
func NewDriver(conf *Config) *Driver {
	if conf == nil {
		conf = DefaultConfig()
	}
	return &Driver{conf: conf}
}

//SetReference sets the reference molecule.
func (D *Driver) SetReference(mol *curcuma.Molecule) { D.ref = mol }

//SetTarget sets the target molecule.
func (D *Driver) SetTarget(mol *curcuma.Molecule) { D.tar = mol }

//ReorderRules returns the permutation found by the last RMSD call.
func (D *Driver) ReorderRules() curcuma.Permutation { return D.rules }

//HTopoDiff returns the bond-topology difference counted during the
//last Rules2RMSD or RMSD call.
func (D *Driver) HTopoDiff() int { return D.topoDiff }

func (D *Driver) check() error {
	if D.ref == nil || D.tar == nil {
		return curcuma.NewError("align.Driver", "reference or target not set")
	}
	if !D.ref.SameComposition(D.tar) {
		return InputMismatchError{}
	}
	return nil
}

//BestFitRMSD returns the RMSD after rigid-body alignment, trusting
//the current atom order of the target.
func (D *Driver) BestFitRMSD() (float64, error) {
	if err := D.check(); err != nil {
		return 0, err
	}
	return D.alignAndStore(D.tar)
}

func (D *Driver) alignAndStore(tar *curcuma.Molecule) (float64, error) {
	ctar := curcuma.Center(tar.Coords(), nil)
	cref := curcuma.Center(D.ref.Coords(), nil)
	R, err := curcuma.RotationMatrix(ctar, cref)
	if err != nil {
		return 0, errDecorate(err, "alignAndStore")
	}
	rotated := curcuma.Rotate(ctar, R)
	rmsd, err := curcuma.RMSD(rotated, cref)
	if err != nil {
		return 0, errDecorate(err, "alignAndStore")
	}
	D.lastRot = R
	D.lastRef = cref
	D.lastTar = rotated
	return rmsd, nil
}

//Rules2RMSD applies the permutation p to the target and returns the
//best-fit RMSD, without any search. It also updates the topology
//difference count.
func (D *Driver) Rules2RMSD(p curcuma.Permutation) (float64, error) {
	if err := D.check(); err != nil {
		return 0, err
	}
	reordered, err := D.tar.ApplyOrder(p)
	if err != nil {
		return 0, errDecorate(err, "Rules2RMSD")
	}
	for i := 0; i < D.ref.Len(); i++ {
		if D.ref.Z(i) != reordered.Z(i) {
			return 0, InputMismatchError{}
		}
	}
	rmsd, err := D.alignAndStore(reordered)
	if err != nil {
		return 0, err
	}
	D.topoDiff = D.ref.TopologyDifference(reordered)
	return rmsd, nil
}

//RMSD runs the configured reorder strategy and returns the best-fit
//RMSD under the winning permutation, which is kept for ReorderRules.
//An infeasible assignment falls back to the distance heuristic; a
//search that exhausts its budget returns the best permutation found.
func (D *Driver) RMSD() (float64, error) {
	if err := D.check(); err != nil {
		return 0, err
	}
	if D.conf.NoReorder {
		return D.BestFitRMSD()
	}
	var perm curcuma.Permutation
	var err error
	switch D.conf.Method {
	case "free", "":
		perm, err = D.freeReorder()
	case "heavy":
		perm, err = D.heavyReorder()
	case "template":
		perm, err = D.templateReorder([]int{D.conf.Element})
	case "hybrid":
		elements := D.conf.Elements
		if len(elements) == 0 {
			elements = []int{7, 8}
		}
		perm, err = D.templateReorder(elements)
	case "distance":
		perm, err = D.distanceReorder()
	case "incremental":
		perm, err = D.incrementalReorder()
	case "molalign":
		perm, err = D.molalignReorder()
	default:
		return 0, curcuma.NewError("RMSD", "unknown reorder method "+D.conf.Method)
	}
	var infeasible InfeasibleError
	if errors.As(err, &infeasible) {
		perm, err = D.distanceReorder()
	}
	if err != nil {
		return 0, err
	}
	rmsd, err := D.Rules2RMSD(perm)
	if err != nil {
		return 0, err
	}
	//the identity ordering may already be the better fit, but only
	//when it maps elements onto themselves
	sameElements := true
	for i := 0; i < D.ref.Len(); i++ {
		if D.ref.Z(i) != D.tar.Z(i) {
			sameElements = false
			break
		}
	}
	if plain, perr := D.BestFitRMSD(); sameElements && perr == nil && plain < rmsd {
		identity := make(curcuma.Permutation, D.ref.Len())
		for i := range identity {
			identity[i] = i
		}
		D.rules = identity
		D.rmsd = plain
		return plain, nil
	}
	//restore the alignment of the winning permutation
	if _, err := D.Rules2RMSD(perm); err != nil {
		return 0, err
	}
	D.rules = perm
	D.rmsd = rmsd
	return rmsd, nil
}

//Gradient returns the derivative of the last computed RMSD with
//respect to the target coordinates, in the target's original frame.
//It is the quantity the metadynamics bias chains through.
func (D *Driver) Gradient() *v3.Matrix {
	if D.lastRef == nil {
		return nil
	}
	n := D.lastRef.NVecs()
	grad := v3.Zeros(n)
	rmsd, err := curcuma.RMSD(D.lastTar, D.lastRef)
	if err != nil || rmsd < 1e-12 {
		return grad
	}
	diff := v3.Zeros(n)
	diff.Sub(D.lastTar, D.lastRef)
	diff.Scale(1/(float64(n)*rmsd), diff)
	//rotate back into the unaligned target frame
	grad.Mul(diff, D.lastRot.T())
	return grad
}

//TargetAligned returns a copy of the target, reordered by the last
//winning permutation and aligned onto the reference.
func (D *Driver) TargetAligned() *curcuma.Molecule {
	tar := D.tar
	if D.rules != nil {
		tar, _ = D.tar.ApplyOrder(D.rules)
	}
	aligned := tar.Copy()
	if D.lastTar != nil {
		c := v3.Zeros(D.lastTar.NVecs())
		c.Copy(D.lastTar)
		aligned.SetCoords(c)
	}
	return aligned
}

//errDecorate mirrors the root package helper for local errors.
func errDecorate(err error, caller string) error {
	type deco interface {
		Decorate(string) []string
	}
	if d, ok := err.(deco); ok {
		d.Decorate(caller)
		return err
	}
	return err
}

//permCost is a helper for tie-breaks: the total assignment cost of a
//permutation on centered geometries.
func permCost(cref, ctar *v3.Matrix, perm []int, kernel int) float64 {
	var sum float64
	for i, j := range perm {
		a := cref.RawRowView(i)
		b := ctar.RawRowView(j)
		dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		na := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
		nb := math.Sqrt(b[0]*b[0] + b[1]*b[1] + b[2]*b[2])
		sum += Cost(d, na*nb, kernel)
	}
	return sum
}
