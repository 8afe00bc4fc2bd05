/*
 * scan.go, part of curcuma
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

//Package scan deduplicates conformer ensembles: an energy-ordered
//ensemble is filtered down to geometrically distinct representatives
//in three passes (plain RMSD, RMSD with atom reordering, reuse of
//cached permutations), with cheap rotational-constant and
//persistence-image descriptors acting as pre-filters before any
//expensive alignment.
package scan

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/align"
	"github.com/awvwgk/curcuma/desc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//Loose/tight threshold mask bits: which descriptor differences have
//to be below their delta for the mask to be satisfied.
const (
	MaskRotational = 1
	MaskRipser     = 2
	MaskEnergy     = 4
)

//Early-break mask bits, set bit = enable. Enabling trades determinism
//for speed: the accepted set becomes dependent on goroutine
//scheduling (documented behavior).
const (
	BreakReuse   = 1
	BreakReorder = 2
)

//Config collects the scanner settings.
type Config struct {
	//RMSDThreshold is tau; <= 0 derives it from the ensemble.
	RMSDThreshold float64 `json:"rmsd"`
	//GetRMSDThresh is the RMSD cutoff below which pass-1 pairs feed
	//the loose-threshold calibration.
	GetRMSDThresh float64 `json:"getrmsd_thresh"`
	//MaxRank caps the accepted set; -1 means unlimited.
	MaxRank int `json:"rank"`
	//EnergyCutoff rejects candidates above this Delta-E from the
	//lowest conformer, kJ/mol; -1 disables.
	EnergyCutoff float64 `json:"maxenergy"`
	//SLE/SLI/SLH are the loose-threshold step multipliers; one
	//reorder iteration runs per entry. The three must have equal
	//length.
	SLE []float64 `json:"sLE"`
	SLI []float64 `json:"sLI"`
	SLH []float64 `json:"sLH"`
	//STE/STI/STH scale tau when collecting the tight deltas.
	STE float64 `json:"sTE"`
	STI float64 `json:"sTI"`
	STH float64 `json:"sTH"`
	//LooseThresh and TightThresh are descriptor mask requirements.
	LooseThresh int `json:"looseThresh"`
	TightThresh int `json:"tightThresh"`
	//EarlyBreak bits, set = enable (BreakReuse, BreakReorder).
	EarlyBreak int `json:"earlybreak"`
	//MaxHTopoDiff rejects reorder hits whose bond topology differs
	//by more than this; -1 disables the check.
	MaxHTopoDiff int `json:"MaxHTopoDiff"`
	Threads      int `json:"threads"`
	//RMSD configures the alignment driver of the reorder pass.
	RMSD *align.Config `json:"rmsd_config"`
	//Pass switches.
	SkipInit    bool `json:"skipinit"`
	SkipReorder bool `json:"skipreorder"`
	SkipReuse   bool `json:"skipreuse"`
	SkipOrders  bool `json:"skip_orders"`
	//Output control.
	WriteFiles  bool   `json:"writefiles"`
	ReducedFile bool   `json:"fewerFile"`
	Analyse     bool   `json:"analyse"`
	Basename    string `json:"basename"`
	//PrevAccepted seeds the scan with an already-accepted ensemble.
	PrevAccepted string `json:"accepted"`
}

//DefaultConfig returns the scanner defaults.
func DefaultConfig() *Config {
	return &Config{
		RMSDThreshold: -1,
		GetRMSDThresh: 0.6,
		MaxRank:       -1,
		EnergyCutoff:  -1,
		SLE:           []float64{1.0, 2.0},
		SLI:           []float64{1.0, 2.0},
		SLH:           []float64{1.0, 2.0},
		STE:           0.1,
		STI:           0.1,
		STH:           0.1,
		LooseThresh:   MaskRotational | MaskEnergy,
		TightThresh:   MaskRotational | MaskRipser | MaskEnergy,
		MaxHTopoDiff:  -1,
		Threads:       1,
		RMSD:          align.DefaultConfig(),
		Basename:      "confscan",
	}
}

//calibSample is one pass-1 pair observation used for the auto
//calibration of tau and the loose deltas.
type calibSample struct {
	rmsd, dE, dH, dI float64
}

//Scanner runs the three-pass deduplication. The scanner owns every
//molecule in its arena; the accepted/rejected/threshold sets hold
//arena indexes only.
type Scanner struct {
	conf *Config
	log  *zap.SugaredLogger

	arena []*curcuma.Molecule
	order []int //arena indexes sorted ascending by energy

	accepted  []int
	rejected  []int
	threshold []int
	prevAccepted []*curcuma.Molecule

	rules []curcuma.Permutation

	tau    float64
	tauSet bool
	dLE, dLI, dLH float64
	dTE, dTI, dTH float64
	samples       []calibSample
	lowestEnergy  float64

	runID string
	stop  func() bool

	//statistics
	nReordered, nReorderWorked, nReused, nSkipped, nRejectedDirect int
}

//NewScanner builds a scanner; nil conf selects the defaults, nil
//logger a no-op one.
func NewScanner(conf *Config, logger *zap.Logger) *Scanner {
	if conf == nil {
		conf = DefaultConfig()
	}
	if conf.RMSD == nil {
		conf.RMSD = align.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		conf:  conf,
		log:   logger.Sugar(),
		tau:   conf.RMSDThreshold,
		runID: uuid.NewString(),
		stop:  func() bool { return false },
	}
	if s.tau <= 0 {
		s.tau = 1e5
		s.tauSet = false
	} else {
		s.tauSet = true
	}
	return s
}

//SetStopCheck installs the stop-request probe, polled only at safe
//boundaries (between candidates and between passes).
func (s *Scanner) SetStopCheck(f func() bool) { s.stop = f }

//AddMolecule hands a molecule to the arena, computing the cheap
//descriptors that the configured loose mask requires.
func (s *Scanner) AddMolecule(mol *curcuma.Molecule) {
	if s.conf.LooseThresh&MaskRotational != 0 {
		mol.SetRotationalConstants(desc.RotationalConstants(mol))
	}
	if s.conf.LooseThresh&MaskRipser != 0 {
		mol.SetPersistenceImage(desc.PersistenceImage(mol, desc.DefaultImageConfig()))
	}
	if mol.Name() == "" {
		mol.SetName(fmt.Sprintf("conformer_%d", len(s.arena)+1))
	}
	s.arena = append(s.arena, mol)
}

//LoadFile reads all frames of an XYZ ensemble into the arena.
func (s *Scanner) LoadFile(name string) error {
	it, err := curcuma.NewXYZIterator(name)
	if err != nil {
		return err
	}
	defer it.Close()
	for !it.AtEnd() {
		mol, err := it.Next()
		if err != nil {
			return err
		}
		s.AddMolecule(mol)
	}
	s.log.Infow("ensemble loaded", "file", name, "structures", len(s.arena))
	return nil
}

//Accepted returns the deduplicated ensemble in energy order.
func (s *Scanner) Accepted() []*curcuma.Molecule {
	out := make([]*curcuma.Molecule, 0, len(s.accepted))
	for _, i := range s.accepted {
		out = append(out, s.arena[i])
	}
	return out
}

//Rules returns the reorder-rule cache in discovery order.
func (s *Scanner) Rules() []curcuma.Permutation { return s.rules }

//Threshold returns tau, the RMSD below which two structures count as
//duplicates. Before Run it may still be the auto-derivation sentinel.
func (s *Scanner) Threshold() float64 { return s.tau }

//Run executes the configured passes over the ensemble.
func (s *Scanner) Run() error {
	if len(s.arena) == 0 {
		return curcuma.NewError("Scanner.Run", "empty ensemble")
	}
	s.sortByEnergy()
	s.loadRestart()
	if s.conf.PrevAccepted != "" {
		if err := s.loadPrevAccepted(); err != nil {
			return err
		}
	}

	if !s.conf.SkipInit {
		s.log.Infow("initial pass, no reordering")
		if err := s.checkOnly(); err != nil {
			return err
		}
		s.calibrate()
		s.log.Infow("initial pass done",
			"accepted", len(s.accepted), "rejected", len(s.rejected), "tau", s.tau)
	} else {
		//everything survives to the reorder pass, thresholds open up
		s.accepted = append([]int{}, s.order...)
		if s.tauSet {
			s.dLE, s.dLI, s.dLH = 1e23, 1e23, 1e23
		}
		s.conf.LooseThresh = 0
		s.conf.SkipReuse = true
	}
	s.writeRestart()
	if s.stop() {
		return s.finish()
	}

	if !s.conf.SkipReorder {
		for run := range s.conf.SLE {
			dLE := s.dLE * s.conf.SLE[run]
			dLI := s.dLI * s.conf.SLI[run]
			dLH := s.dLH * s.conf.SLH[run]
			s.log.Infow("reorder pass", "iteration", run+1, "dLE", dLE, "dLI", dLI, "dLH", dLH)
			suffix := fmt.Sprintf(".reorder.%d.xyz", run+1)
			if err := s.reorderPass(dLE, dLI, dLH, false, suffix); err != nil {
				return err
			}
			s.writeRestart()
			if s.stop() {
				return s.finish()
			}
		}
	}

	if !s.conf.SkipReuse {
		s.log.Infow("reuse pass", "rules", len(s.rules))
		if err := s.reorderPass(-1, -1, -1, true, ".reuse.xyz"); err != nil {
			return err
		}
		s.writeRestart()
	}
	if s.conf.Analyse {
		s.writePlots()
	}
	return s.finish()
}

func (s *Scanner) sortByEnergy() {
	s.order = make([]int, len(s.arena))
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return s.arena[s.order[a]].Energy() < s.arena[s.order[b]].Energy()
	})
	s.lowestEnergy = s.arena[s.order[0]].Energy()
}

func (s *Scanner) loadPrevAccepted() error {
	mols, err := curcuma.ReadEnsemble(s.conf.PrevAccepted)
	if err != nil {
		return err
	}
	for _, mol := range mols {
		if s.conf.LooseThresh&MaskRotational != 0 {
			mol.SetRotationalConstants(desc.RotationalConstants(mol))
		}
		if s.conf.LooseThresh&MaskRipser != 0 {
			mol.SetPersistenceImage(desc.PersistenceImage(mol, desc.DefaultImageConfig()))
		}
		s.prevAccepted = append(s.prevAccepted, mol)
		if mol.Energy() < s.lowestEnergy {
			s.lowestEnergy = mol.Energy()
		}
	}
	return nil
}

//checkOnly is pass 1: plain best-fit RMSD against every accepted
//structure, in parallel, collecting the calibration samples.
func (s *Scanner) checkOnly() error {
	workers := make([]*scanWorker, 0, len(s.order))
	for _, idx := range s.order {
		if s.stop() {
			return nil
		}
		mol := s.arena[idx]
		if s.conf.MaxRank > -1 && len(s.accepted) >= s.conf.MaxRank {
			s.rejected = append(s.rejected, idx)
			continue
		}
		if len(s.accepted) == 0 && len(s.prevAccepted) == 0 {
			s.acceptMolecule(idx, ".initial.xyz")
			workers = append(workers, newScanWorker(mol, s.conf.RMSD))
			continue
		}
		minRMSD := math.Inf(1)
		keep := true
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(s.threads())
		for _, w := range workers {
			w := w
			g.Go(func() error {
				res := w.executeNoReorder(mol)
				mu.Lock()
				defer mu.Unlock()
				s.samples = append(s.samples, calibSample{res.rmsd, res.dE, res.dH, res.dI})
				if res.rmsd < minRMSD {
					minRMSD = res.rmsd
				}
				if s.tauSet && res.rmsd < s.tau {
					keep = false
				}
				return nil
			})
		}
		g.Wait()
		if !s.tauSet {
			if minRMSD < s.tau {
				s.tau = minRMSD
			}
			keep = true
		}
		if keep {
			s.acceptMolecule(idx, ".initial.xyz")
			workers = append(workers, newScanWorker(mol, s.conf.RMSD))
		} else {
			s.rejectMolecule(idx)
			s.writeStatistic(mol, minRMSD, nil)
		}
	}
	return nil
}

//calibrate freezes tau and derives the loose and tight deltas from
//the pass-1 samples. Once set, tau never changes again.
func (s *Scanner) calibrate() {
	if !s.tauSet {
		s.log.Infow("RMSD threshold derived from ensemble", "tau", s.tau)
		s.tauSet = true
	}
	for _, sample := range s.samples {
		if sample.rmsd <= s.conf.GetRMSDThresh {
			s.dLE = math.Max(s.dLE, sample.dE)
			s.dLH = math.Max(s.dLH, sample.dH)
			s.dLI = math.Max(s.dLI, sample.dI)
		}
		if sample.rmsd <= s.conf.STE*s.tau {
			s.dTE = math.Max(s.dTE, sample.dE)
		}
		if sample.rmsd <= s.conf.STH*s.tau {
			s.dTH = math.Max(s.dTH, sample.dH)
		}
		if sample.rmsd <= s.conf.STI*s.tau {
			s.dTI = math.Max(s.dTI, sample.dI)
		}
	}
}

//reorderPass is pass 2 (with the given loose deltas) or, with
//reuseOnly, pass 3. Negative deltas mean every pair is eligible.
func (s *Scanner) reorderPass(dLE, dLI, dLH float64, reuseOnly bool, suffix string) error {
	cached := s.accepted
	s.accepted = nil
	s.rejected = nil

	allEligible := dLE <= 1e-8 && dLI <= 1e-8 && dLH <= 1e-8
	workers := make([]*scanWorker, 0, len(cached))
	for _, mol := range s.prevAccepted {
		workers = append(workers, newScanWorker(mol, s.conf.RMSD))
	}

	for _, idx := range cached {
		if s.stop() {
			s.log.Infow("stop requested, ending pass")
			s.writeRestart()
			//whatever was not reconsidered stays accepted
			s.accepted = append(s.accepted, idx)
			continue
		}
		mol := s.arena[idx]
		if len(s.accepted) == 0 && len(workers) == 0 {
			s.acceptMolecule(idx, suffix)
			workers = append(workers, newScanWorker(mol, s.conf.RMSD))
			continue
		}
		dE0 := (mol.Energy() - s.lowestEnergy) * curcuma.Eh2kJmol
		if s.conf.EnergyCutoff > 0 && dE0 > s.conf.EnergyCutoff {
			s.log.Infow("energy cutoff reached", "structure", mol.Name(), "dE", dE0)
			s.rejected = append(s.rejected, idx)
			continue
		}

		keep := true
		anyEnabled := false
		for _, w := range workers {
			dI, dH, dE := descriptorDiffs(w.reference, mol)
			loose := maskOf(dI < dLI, dH < dLH, dE < dLE)
			if loose&s.conf.LooseThresh == s.conf.LooseThresh || allEligible {
				tight := maskOf(dI < s.dTI, dH < s.dTH, dE < s.dTE)
				if !reuseOnly && tight&s.conf.TightThresh == s.conf.TightThresh && s.conf.TightThresh != 0 {
					//descriptors this close need no alignment at all
					s.threshold = append(s.threshold, idx)
					s.nRejectedDirect++
					keep = false
					break
				}
				w.enabled = true
				anyEnabled = true
			} else {
				w.enabled = false
				s.nSkipped++
			}
		}

		if keep && anyEnabled {
			res := s.runPool(workers, mol, reuseOnly)
			for _, r := range res {
				if r == nil || r.keep {
					continue
				}
				keep = false
				if r.reordered {
					s.nReorderWorked++
				}
				if r.reused {
					s.nReused++
				}
				s.addRule(r.rule)
				s.writeStatistic(mol, r.rmsd, r.rule)
			}
		}

		if keep {
			s.acceptMolecule(idx, suffix)
			workers = append(workers, newScanWorker(mol, s.conf.RMSD))
		} else {
			s.rejectMolecule(idx)
		}
		if s.conf.MaxRank > -1 && len(s.accepted) >= s.conf.MaxRank {
			break
		}
	}
	return nil
}

//runPool executes the enabled workers against the candidate in
//parallel. With the matching early-break bit set, the first match
//flips a shared flag that remaining workers poll between attempts.
func (s *Scanner) runPool(workers []*scanWorker, mol *curcuma.Molecule, reuseOnly bool) []*scanResult {
	results := make([]*scanResult, len(workers))
	brk := &breakFlag{}
	var g errgroup.Group
	g.SetLimit(s.threads())
	for i, w := range workers {
		if !w.enabled {
			continue
		}
		i, w := i, w
		s.nReordered++
		g.Go(func() error {
			results[i] = w.execute(mol, s.rules, s.tau, s.conf.MaxHTopoDiff, reuseOnly, s.conf.EarlyBreak, brk)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Scanner) threads() int {
	if s.conf.Threads < 1 {
		return 1
	}
	return s.conf.Threads
}

func (s *Scanner) addRule(rule curcuma.Permutation) bool {
	if len(rule) == 0 || s.conf.SkipOrders {
		return false
	}
	for _, r := range s.rules {
		if r.Equal(rule) {
			return false
		}
	}
	s.rules = append(s.rules, rule)
	return true
}

func (s *Scanner) acceptMolecule(idx int, suffix string) {
	s.accepted = append(s.accepted, idx)
	if s.conf.WriteFiles && !s.conf.ReducedFile {
		s.arena[idx].AppendXYZ(s.conf.Basename + suffix)
	}
	s.log.Debugw("accept", "structure", s.arena[idx].Name())
}

func (s *Scanner) rejectMolecule(idx int) {
	s.rejected = append(s.rejected, idx)
	s.log.Debugw("reject", "structure", s.arena[idx].Name())
}

//finish writes the final ensembles and the restart record.
func (s *Scanner) finish() error {
	s.writeRestart()
	if s.conf.WriteFiles {
		accepted := s.conf.Basename + ".accepted.xyz"
		os.Remove(accepted)
		for _, i := range s.accepted {
			s.arena[i].AppendXYZ(accepted)
		}
		if len(s.prevAccepted) > 0 {
			joined := s.conf.Basename + ".joined.xyz"
			os.Remove(joined)
			for _, i := range s.accepted {
				s.arena[i].AppendXYZ(joined)
			}
			for _, mol := range s.prevAccepted {
				mol.AppendXYZ(joined)
			}
		}
		if !s.conf.ReducedFile {
			for _, i := range s.rejected {
				s.arena[i].AppendXYZ(s.conf.Basename + ".rejected.xyz")
			}
			for _, i := range s.threshold {
				s.arena[i].AppendXYZ(s.conf.Basename + ".thresh.xyz")
			}
		}
	}
	s.log.Infow("scan finished",
		"kept", len(s.accepted), "of", len(s.arena),
		"reordered", s.nReordered, "reorder_worked", s.nReorderWorked,
		"reused", s.nReused, "skipped", s.nSkipped,
		"rejected_directly", s.nRejectedDirect)
	return nil
}

func (s *Scanner) writeStatistic(mol *curcuma.Molecule, rmsd float64, rule curcuma.Permutation) {
	if !s.conf.WriteFiles || s.conf.ReducedFile {
		return
	}
	f, err := os.OpenFile(s.conf.Basename+".statistic.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s rejected, rmsd %.6f\n", mol.Name(), rmsd)
	if len(rule) > 0 {
		fmt.Fprintf(f, "%s\n", rule.String())
	}
}

//descriptorDiffs returns the averaged rotational-constant difference
//(MHz), the persistence-image difference and the energy difference
//(kJ/mol) between two structures.
func descriptorDiffs(a, b *curcuma.Molecule) (dI, dH, dE float64) {
	ra, oka := a.RotationalConstants()
	rb, okb := b.RotationalConstants()
	if oka && okb {
		dI = (math.Abs(ra[0]-rb[0]) + math.Abs(ra[1]-rb[1]) + math.Abs(ra[2]-rb[2])) / 3
	}
	dH = desc.ImageDistance(a.PersistenceImage(), b.PersistenceImage())
	dE = math.Abs(a.Energy()-b.Energy()) * curcuma.Eh2kJmol
	return
}

func maskOf(rot, rip, energy bool) int {
	m := 0
	if rot {
		m |= MaskRotational
	}
	if rip {
		m |= MaskRipser
	}
	if energy {
		m |= MaskEnergy
	}
	return m
}
