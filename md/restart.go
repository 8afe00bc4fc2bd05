/*
 * restart.go, part of curcuma
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
	"encoding/json"
	"fmt"
	"os"

	v3 "github.com/awvwgk/curcuma/v3"
)

//restartConstraint is the serialised form of one distance constraint.
type restartConstraint struct {
	I int     `json:"i"`
	J int     `json:"j"`
	D float64 `json:"d"`
}

//restartRecord is the complete serialisable MD state. Float slices
//round-trip exactly through JSON, so a restarted run reproduces the
//next gradient bit for bit.
type restartRecord struct {
	Method      string    `json:"method"`
	Thermostat  string    `json:"thermostat"`
	DT          float64   `json:"dT"`
	MaxTime     float64   `json:"MaxTime"`
	T0          float64   `json:"T"`
	CurrentStep int       `json:"currentStep"`
	CurrentTime float64   `json:"currentTime"`
	Seed        uint64    `json:"seed"`
	Geometry    []float64 `json:"geometry"`
	Velocities  []float64 `json:"velocities"`
	Gradient    []float64 `json:"gradient"`
	AverageT    float64   `json:"average_T"`
	AverageEpot float64   `json:"average_Epot"`
	AverageEkin float64   `json:"average_Ekin"`
	AverageEtot float64   `json:"average_Etot"`
	AverageWall float64   `json:"average_Wall"`
	AverageVir  float64   `json:"average_Virial"`
	Coupling    float64   `json:"coupling"`
	RmCOM       float64   `json:"rm_COM"`
	ChainLength int       `json:"chainlength"`
	Eta         float64   `json:"eta"`
	Xi          []float64 `json:"xi"`
	Q           []float64 `json:"Q"`

	Rattle        int                 `json:"rattle"`
	RattleMaxIter int                 `json:"rattle_maxiter"`
	Constraints12 []restartConstraint `json:"constrains_12,omitempty"`
	Constraints13 []restartConstraint `json:"constrains_13,omitempty"`

	RMSDMTD   bool             `json:"rmsd_mtd"`
	KRMSD     float64          `json:"k_rmsd,omitempty"`
	AlphaRMSD float64          `json:"alpha_rmsd,omitempty"`
	MTDSteps  int              `json:"mtd_steps,omitempty"`
	RMSDEconv float64          `json:"rmsd_econv,omitempty"`
	WTMTD     bool             `json:"wtmtd,omitempty"`
	RMSDDT    float64          `json:"rmsd_DT,omitempty"`
	BiasCount int              `json:"counter,omitempty"`
	Bias      []*BiasStructure `json:"bias,omitempty"`
	RMSDRef   string           `json:"rmsd_ref_file,omitempty"`
}

func flatten(m *v3.Matrix) []float64 {
	n := m.NVecs()
	out := make([]float64, 0, 3*n)
	for i := 0; i < n; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

func unflatten(data []float64, m *v3.Matrix) {
	for i := 0; i < m.NVecs() && 3*i+2 < len(data); i++ {
		m.SetRow(i, data[3*i:3*i+3])
	}
}

func (D *Driver) restartRecord() restartRecord {
	rec := restartRecord{
		Method:      D.conf.Method,
		Thermostat:  D.conf.Thermostat,
		DT:          D.conf.DT,
		MaxTime:     D.conf.MaxTime,
		T0:          D.conf.T0,
		CurrentStep: D.step,
		CurrentTime: D.curTime,
		Seed:        D.seed,
		Geometry:    flatten(D.x),
		Velocities:  flatten(D.v),
		Gradient:    flatten(D.g),
		AverageT:    D.averT,
		AverageEpot: D.averEpot,
		AverageEkin: D.averEkin,
		AverageEtot: D.averEtot,
		AverageWall: D.averWall,
		AverageVir:  D.averVir,
		Coupling:    D.conf.Coupling,
		RmCOM:       D.conf.RmCOM,
		ChainLength: D.conf.ChainLength,
		Eta:         D.eta,
		Xi:          append([]float64{}, D.xi...),
		Q:           append([]float64{}, D.Q...),
		Rattle:      D.conf.Rattle,
		RattleMaxIter: D.conf.RattleMaxIter,
		RMSDMTD:     D.conf.RMSDMTD,
	}
	for _, c := range D.bonds12 {
		rec.Constraints12 = append(rec.Constraints12, restartConstraint{c.i, c.j, c.d2})
	}
	for _, c := range D.bonds13 {
		rec.Constraints13 = append(rec.Constraints13, restartConstraint{c.i, c.j, c.d2})
	}
	if D.conf.RMSDMTD && D.bias != nil {
		rec.KRMSD = D.conf.KRMSD
		rec.AlphaRMSD = D.conf.AlphaRMSD
		rec.MTDSteps = D.conf.MTDSteps
		rec.RMSDEconv = D.conf.RMSDEconv
		rec.WTMTD = D.conf.WTMTD
		rec.RMSDDT = D.conf.RMSDDT
		rec.BiasCount = D.bias.count
		rec.Bias = D.BiasStructures()
		rec.RMSDRef = D.conf.Basename + ".mtd.xyz"
	}
	return rec
}

func (D *Driver) loadRestartRecord(rec restartRecord) {
	unflatten(rec.Geometry, D.x)
	unflatten(rec.Velocities, D.v)
	unflatten(rec.Gradient, D.g)
	D.step = rec.CurrentStep
	D.curTime = rec.CurrentTime
	D.averT = rec.AverageT
	D.averEpot = rec.AverageEpot
	D.averEkin = rec.AverageEkin
	D.averEtot = rec.AverageEtot
	D.averWall = rec.AverageWall
	D.averVir = rec.AverageVir
	D.eta = rec.Eta
	if len(rec.Xi) > 0 {
		D.xi = append([]float64{}, rec.Xi...)
	}
	if len(rec.Q) > 0 {
		D.Q = append([]float64{}, rec.Q...)
	}
	if len(rec.Constraints12) > 0 {
		D.bonds12 = D.bonds12[:0]
		for _, c := range rec.Constraints12 {
			D.bonds12 = append(D.bonds12, constraint{c.I, c.J, c.D})
		}
	}
	if len(rec.Constraints13) > 0 {
		D.bonds13 = D.bonds13[:0]
		for _, c := range rec.Constraints13 {
			D.bonds13 = append(D.bonds13, constraint{c.I, c.J, c.D})
		}
	}
}

//writeRestartFile dumps the state under the "md" key, matching the
//restart layout of the scanner.
func (D *Driver) writeRestartFile(name string) {
	blob, err := json.MarshalIndent(map[string]restartRecord{"md": D.restartRecord()}, "", " ")
	if err != nil {
		D.log.Warnw("restart serialisation failed", "error", err)
		return
	}
	if err := os.WriteFile(name, blob, 0644); err != nil {
		D.log.Warnw("restart write failed", "file", name, "error", err)
	}
}

//LoadRestartFile restores a previous run's state. A corrupt file is
//reported and skipped; the run then starts from the initial state.
func (D *Driver) LoadRestartFile(name string) error {
	blob, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	var wrapper map[string]restartRecord
	if err := json.Unmarshal(blob, &wrapper); err != nil {
		D.log.Warnw("restart file corrupt, starting from defaults",
			"file", name, "error", err)
		return nil
	}
	rec, ok := wrapper["md"]
	if !ok {
		D.log.Warnw("restart file has no md section", "file", name)
		return nil
	}
	D.loadRestartRecord(rec)
	return nil
}

func formatTime(t float64) string {
	return fmt.Sprintf("%.1f", t)
}
