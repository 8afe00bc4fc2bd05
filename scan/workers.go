/*
 * workers.go, part of curcuma
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

package scan

import (
	"math"
	"sync/atomic"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/align"
)

//breakFlag is the shared early-break signal of one worker pool run.
type breakFlag struct {
	v atomic.Bool
}

func (b *breakFlag) set()      { b.v.Store(true) }
func (b *breakFlag) isSet() bool { return b.v.Load() }

//scanWorker owns one accepted structure and a private alignment
//driver. Everything but the enabled flag and the per-step inputs is
//immutable after construction; a worker is reused across candidates
//but never shared between goroutines within a step.
type scanWorker struct {
	reference *curcuma.Molecule
	driver    *align.Driver
	enabled   bool
}

func newScanWorker(reference *curcuma.Molecule, conf *align.Config) *scanWorker {
	w := &scanWorker{reference: reference, driver: align.NewDriver(conf)}
	w.driver.SetReference(reference)
	w.enabled = true
	return w
}

//scanResult is the outcome of one worker step.
type scanResult struct {
	keep      bool
	rmsd      float64
	oldRMSD   float64
	rule      curcuma.Permutation
	reused    bool
	reordered bool
	//pass-1 descriptor observations
	dE, dH, dI float64
}

//executeNoReorder is the pass-1 step: best-fit RMSD without any
//permutation search, plus the descriptor differences for the
//calibration.
func (w *scanWorker) executeNoReorder(target *curcuma.Molecule) *scanResult {
	res := &scanResult{keep: true}
	res.dI, res.dH, res.dE = descriptorDiffs(w.reference, target)
	w.driver.SetTarget(target)
	rmsd, err := w.driver.BestFitRMSD()
	if err != nil {
		res.rmsd = math.Inf(1)
		return res
	}
	res.rmsd = rmsd
	return res
}

//execute is the pass-2/pass-3 step: cached rules first, then, unless
//reuseOnly, the full reorder search. A hit below tau rejects the
//candidate; with the matching early-break bit enabled it also signals
//the rest of the pool.
func (w *scanWorker) execute(target *curcuma.Molecule, rules []curcuma.Permutation, tau float64, maxHTopoDiff int, reuseOnly bool, earlyBreak int, brk *breakFlag) *scanResult {
	res := &scanResult{keep: true}
	w.driver.SetTarget(target)
	if old, err := w.driver.BestFitRMSD(); err == nil {
		res.oldRMSD = old
		if old < tau {
			res.keep = false
			res.rmsd = old
			if (reuseOnly && earlyBreak&BreakReuse != 0) || (!reuseOnly && earlyBreak&BreakReorder != 0) {
				brk.set()
			}
			return res
		}
	}
	for _, rule := range rules {
		if brk.isSet() {
			return res
		}
		if len(rule) != target.Len() {
			continue
		}
		rmsd, err := w.driver.Rules2RMSD(rule)
		if err != nil {
			continue
		}
		if rmsd < tau && (maxHTopoDiff == -1 || w.driver.HTopoDiff() <= maxHTopoDiff) {
			res.keep = false
			res.rmsd = rmsd
			res.rule = rule
			res.reused = true
			if earlyBreak&BreakReuse != 0 {
				brk.set()
			}
			return res
		}
	}
	if reuseOnly || brk.isSet() {
		return res
	}
	rmsd, err := w.driver.RMSD()
	if err != nil {
		return res
	}
	res.rmsd = rmsd
	if rmsd < tau && (maxHTopoDiff == -1 || w.driver.HTopoDiff() <= maxHTopoDiff) {
		res.keep = false
		res.rule = w.driver.ReorderRules()
		res.reordered = true
		if earlyBreak&BreakReorder != 0 {
			brk.set()
		}
	}
	return res
}
