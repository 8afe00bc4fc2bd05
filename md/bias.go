/*
 * bias.go, part of curcuma
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

package md

import (
	"fmt"
	"math"
	"os"
	"sort"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/align"
	v3 "github.com/awvwgk/curcuma/v3"
	"golang.org/x/sync/errgroup"
)

//BiasStructure is one deposited metadynamics reference: a snapshot of
//the biased atom subset plus its bookkeeping. It lives in exactly one
//worker slot from deposition to the end of the simulation.
type BiasStructure struct {
	Geometry *v3.Matrix `json:"-"`
	RMSDRef  float64    `json:"rmsd_reference"`
	Energy   float64    `json:"energy"`
	Factor   float64    `json:"factor"`
	Counter  int        `json:"counter"`
	Time     float64    `json:"time"`
	Index    int        `json:"index"`
}

//biasWorker owns a disjoint partition of the deposited structures and
//a private alignment driver. The main thread appends structures only
//between steps, never during one.
type biasWorker struct {
	driver     *align.Driver
	refZs      []int
	structures []*BiasStructure

	k, alpha float64
	wtDT     float64
	econv    float64
	wtmtd    bool
	colvar   bool

	//per-step outputs
	bias    float64
	grad    *v3.Matrix
	counter int
	rmsdRef float64
}

//biasPool partitions the deposited structures round-robin over a
//fixed set of workers and fork-joins them every bias evaluation.
type biasPool struct {
	workers []*biasWorker
	rmsdIdx []int
	refMol  *curcuma.Molecule //subset template, geometry updated per step
	count   int
	fragments int
	biasEnergy float64
	colvarIncr int
}

func (D *Driver) initBias() error {
	conf := D.conf
	idx := D.mol.FragmentIndexes(conf.RMSDAtoms)
	zs := make([]int, len(idx))
	coords := v3.Zeros(len(idx))
	for i, a := range idx {
		zs[i] = D.zs[a]
		coords.SetRow(i, D.mol.Coords().RawRowView(a))
	}
	refMol, err := curcuma.NewMolecule(zs, coords)
	if err != nil {
		return err
	}
	nWorkers := conf.Threads
	if nWorkers < 1 {
		nWorkers = 1
	}
	pool := &biasPool{
		rmsdIdx:   idx,
		refMol:    refMol,
		fragments: len(refMol.Fragments()),
	}
	driverConf := align.DefaultConfig()
	driverConf.NoReorder = true
	for i := 0; i < nWorkers; i++ {
		pool.workers = append(pool.workers, &biasWorker{
			driver: align.NewDriver(driverConf),
			refZs:  zs,
			k:      conf.KRMSD,
			alpha:  conf.AlphaRMSD,
			wtDT:   conf.RMSDDT,
			econv:  conf.RMSDEconv,
			wtmtd:  conf.WTMTD,
			colvar: !conf.NoColvarFile,
			grad:   v3.Zeros(len(idx)),
		})
	}
	D.bias = pool
	if conf.RMSDRefFile != "" && conf.RMSDRefFile != "none" {
		D.log.Infow("reading bias reference structures", "file", conf.RMSDRefFile)
		it, err := curcuma.NewXYZIterator(conf.RMSDRefFile)
		if err != nil {
			return err
		}
		defer it.Close()
		for !it.AtEnd() {
			mol, err := it.Next()
			if err != nil {
				return err
			}
			geo := v3.Zeros(mol.Len())
			geo.Copy(mol.Coords())
			pool.deposit(&BiasStructure{Geometry: geo, Factor: 1, Counter: 1, Index: pool.count})
		}
	}
	D.log.Infow("rmsd metadynamics enabled", "k", conf.KRMSD,
		"alpha", conf.AlphaRMSD, "deposit_every", conf.MTDSteps,
		"well_tempered", conf.WTMTD, "atoms", len(idx))
	return nil
}

//deposit hands a new structure to the worker slot count mod nWorkers.
func (p *biasPool) deposit(s *BiasStructure) {
	slot := p.count % len(p.workers)
	p.workers[slot].structures = append(p.workers[slot].structures, s)
	p.count++
}

//execute evaluates the worker's share of the bias sum for the current
//subset geometry.
func (w *biasWorker) execute(current *curcuma.Molecule, step float64, nStructures int) error {
	w.bias = 0
	w.counter = 0
	w.rmsdRef = 0
	w.grad.Zero()
	for idx, s := range w.structures {
		ref, err := curcuma.NewMolecule(w.refZs, s.Geometry)
		if err != nil {
			return err
		}
		w.driver.SetReference(ref)
		w.driver.SetTarget(current)
		rmsd, err := w.driver.BestFitRMSD()
		if err != nil {
			return err
		}
		if idx == 0 && s.Index == 0 {
			w.rmsdRef = rmsd
		}
		expr := math.Exp(-rmsd * rmsd * w.alpha)
		biasEnergy := expr * w.wtDT
		if !w.wtmtd {
			s.Factor = float64(s.Counter)
		} else {
			s.Factor += math.Exp(-s.Energy / curcuma.KbEh / w.wtDT)
		}
		if expr*w.econv > float64(nStructures) {
			s.Counter++
			s.Energy += biasEnergy
		}
		biasEnergy *= s.Factor * w.k
		w.bias += biasEnergy
		if w.colvar {
			f, err := os.OpenFile(fmt.Sprintf("COLVAR_%d", s.Index), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				fmt.Fprintf(f, "%g %g %g %d %g\n", step, rmsd, biasEnergy, s.Counter, s.Factor)
				f.Close()
			}
		}
		dEdR := -2 * w.alpha * w.k / float64(current.Len()) * expr * s.Factor * w.wtDT
		sGrad := w.driver.Gradient()
		for i := 0; i < w.grad.NVecs(); i++ {
			r := sGrad.RawRowView(i)
			w.grad.Set(i, 0, w.grad.At(i, 0)+r[0]*dEdR)
			w.grad.Set(i, 1, w.grad.At(i, 1)+r[1]*dEdR)
			w.grad.Set(i, 2, w.grad.At(i, 2)+r[2]*dEdR)
		}
		w.counter += s.Counter
	}
	return nil
}

//applyBias evaluates the bias sum over all workers in parallel, adds
//the bias gradient into the system gradient at the biased atom
//indexes, and deposits a new structure while the bias is still low
//relative to the number deposited.
func (D *Driver) applyBias() {
	pool := D.bias
	current := v3.Zeros(len(pool.rmsdIdx))
	for i, a := range pool.rmsdIdx {
		r := D.x.RawRowView(a)
		current.SetRow(i, []float64{r[0] * curcuma.Bohr2A, r[1] * curcuma.Bohr2A, r[2] * curcuma.Bohr2A})
	}
	pool.refMol.SetCoords(current)

	if pool.count == 0 {
		geo := v3.Zeros(current.NVecs())
		geo.Copy(current)
		pool.deposit(&BiasStructure{Geometry: geo, Factor: 1, Counter: 1, Time: D.curTime, Index: 0})
		pool.refMol.WriteXYZ(D.conf.Basename + ".mtd.xyz")
		if !D.conf.NoColvarFile {
			os.WriteFile("COLVAR", nil, 0644)
		}
	}

	var g errgroup.Group
	for _, w := range pool.workers {
		w := w
		if len(w.structures) == 0 {
			continue
		}
		g.Go(func() error { return w.execute(pool.refMol, D.curTime, pool.count) })
	}
	if err := g.Wait(); err != nil {
		D.log.Warnw("bias evaluation failed", "error", err)
		return
	}

	var bias float64
	rmsdRef := 0.0
	colvarIncr := 0
	for _, w := range pool.workers {
		if len(w.structures) == 0 {
			continue
		}
		bias += w.bias
		colvarIncr += w.counter
		if w.rmsdRef > 0 {
			rmsdRef = w.rmsdRef
		}
		for i, a := range pool.rmsdIdx {
			r := w.grad.RawRowView(i)
			gr := D.g.RawRowView(a)
			//bias gradient comes back per Angstrom
			gr[0] += r[0] * curcuma.Bohr2A
			gr[1] += r[1] * curcuma.Bohr2A
			gr[2] += r[2] * curcuma.Bohr2A
		}
	}
	pool.biasEnergy += bias
	pool.colvarIncr = colvarIncr

	if !D.conf.NoColvarFile {
		if f, err := os.OpenFile("COLVAR", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			fmt.Fprintf(f, "%g ", D.curTime)
			if pool.fragments < 2 {
				fmt.Fprintf(f, "%g ", rmsdRef)
			}
			frags := pool.refMol.Fragments()
			for i := 0; i < len(frags); i++ {
				for j := 0; j < i; j++ {
					ci := curcuma.Centroid(pool.refMol.Coords().SomeVecs(frags[i]), nil)
					cj := curcuma.Centroid(pool.refMol.Coords().SomeVecs(frags[j]), nil)
					diff := v3.Zeros(1)
					diff.Sub(ci, cj)
					fmt.Fprintf(f, "%g ", diff.Norm())
				}
			}
			fmt.Fprintf(f, "%g\n", bias)
			f.Close()
		}
	}

	saturated := D.conf.MaxRMSDN > 0 && pool.count >= D.conf.MaxRMSDN
	if bias*D.conf.RMSDEconv < float64(pool.count) && !D.conf.RMSDFixStructure && !saturated {
		geo := v3.Zeros(current.NVecs())
		geo.Copy(current)
		pool.deposit(&BiasStructure{
			Geometry: geo, RMSDRef: rmsdRef, Factor: 1, Counter: 1,
			Time: D.curTime, Index: pool.count,
		})
		pool.refMol.AppendXYZ(D.conf.Basename + ".mtd.xyz")
		D.log.Debugw("bias structure deposited", "count", pool.count)
	}
}

//finaliseBias reports the deposited structures and rewrites the
//.mtd.xyz reference file in deposition order.
func (D *Driver) finaliseBias() {
	if D.bias == nil {
		return
	}
	pool := D.bias
	all := make([]*BiasStructure, 0, pool.count)
	for _, w := range pool.workers {
		all = append(all, w.structures...)
	}
	if len(all) == 0 {
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	name := D.conf.Basename + ".mtd.xyz"
	os.Remove(name)
	for _, s := range all {
		mol, err := curcuma.NewMolecule(pool.workers[0].refZs, s.Geometry)
		if err != nil {
			continue
		}
		mol.SetEnergy(s.Energy)
		mol.SetName(fmt.Sprintf("%d %f", s.Index, s.RMSDRef))
		mol.AppendXYZ(name)
	}
	D.log.Infow("bias summary", "structures", pool.count,
		"accumulated_bias", pool.biasEnergy)
}

//BiasStructureCount returns the number of deposited bias structures.
func (D *Driver) BiasStructureCount() int {
	if D.bias == nil {
		return 0
	}
	return D.bias.count
}

//BiasStructures returns all deposited structures across workers.
func (D *Driver) BiasStructures() []*BiasStructure {
	if D.bias == nil {
		return nil
	}
	all := make([]*BiasStructure, 0, D.bias.count)
	for _, w := range D.bias.workers {
		all = append(all, w.structures...)
	}
	return all
}
