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

package scan

import (
	"encoding/json"
	"os"

	curcuma "github.com/awvwgk/curcuma"
)

//restartRecord is the on-disk state of a scan run. The rule cache is
//the part that makes restarts worthwhile: permutations are expensive
//to discover and cheap to retry.
type restartRecord struct {
	RunID               string   `json:"run_id"`
	ReorderRules        []string `json:"ReorderRules"`
	ReferenceLastEnergy float64  `json:"ReferenceLastEnergy"`
	TargetLastEnergy    float64  `json:"TargetLastEnergy"`
	DLE                 float64  `json:"dLE"`
	DLI                 float64  `json:"dLI"`
	DLH                 float64  `json:"dLH"`
	DTE                 float64  `json:"dTE"`
	DTI                 float64  `json:"dTI"`
	DTH                 float64  `json:"dTH"`
}

func (s *Scanner) restartFile() string {
	return s.conf.Basename + ".restart.json"
}

//writeRestart dumps the current rule cache and thresholds. Failures
//are logged and otherwise ignored; a missing restart only costs time.
func (s *Scanner) writeRestart() {
	rec := restartRecord{
		RunID: s.runID,
		DLE:   s.dLE, DLI: s.dLI, DLH: s.dLH,
		DTE: s.dTE, DTI: s.dTI, DTH: s.dTH,
	}
	for _, r := range s.rules {
		rec.ReorderRules = append(rec.ReorderRules, r.String())
	}
	if len(s.arena) > 0 {
		rec.ReferenceLastEnergy = s.lowestEnergy
		rec.TargetLastEnergy = s.arena[s.order[len(s.order)-1]].Energy()
	}
	blob, err := json.MarshalIndent(map[string]restartRecord{"confscan": rec}, "", " ")
	if err != nil {
		s.log.Warnw("restart serialisation failed", "error", err)
		return
	}
	if err := os.WriteFile(s.restartFile(), blob, 0644); err != nil {
		s.log.Warnw("restart write failed", "error", err)
	}
}

//loadRestart merges a previous run's rule cache into this one. A
//corrupt or missing file is skipped and the scan starts from
//defaults; the run id tells joined records apart in the logs.
func (s *Scanner) loadRestart() {
	blob, err := os.ReadFile(s.restartFile())
	if err != nil {
		return
	}
	var wrapper map[string]restartRecord
	if err := json.Unmarshal(blob, &wrapper); err != nil {
		s.log.Warnw("restart file corrupt, starting from defaults", "error", err)
		return
	}
	rec, ok := wrapper["confscan"]
	if !ok {
		return
	}
	for _, str := range rec.ReorderRules {
		rule, err := curcuma.ParsePermutation(str)
		if err != nil {
			s.log.Warnw("skipping malformed reorder rule", "rule", str)
			continue
		}
		s.addRule(rule)
	}
	s.dLE, s.dLI, s.dLH = rec.DLE, rec.DLI, rec.DLH
	s.dTE, s.dTI, s.dTH = rec.DTE, rec.DTI, rec.DTH
	s.log.Infow("restart loaded", "rules", len(s.rules), "previous_run", rec.RunID)
}
