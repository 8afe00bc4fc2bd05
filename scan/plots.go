/*
 * plots.go, part of curcuma
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
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//writePlots renders the analyse-mode scatter of each descriptor
//difference against the pass-1 RMSD. The pictures show how sharply a
//descriptor separates duplicates from genuinely distinct conformers,
//which is what the loose thresholds are calibrated on.
func (s *Scanner) writePlots() {
	type axis struct {
		name  string
		label string
		pick  func(calibSample) float64
	}
	axes := []axis{
		{"energy", "ΔE [kJ/mol]", func(c calibSample) float64 { return c.dE }},
		{"ripser", "ΔH", func(c calibSample) float64 { return c.dH }},
		{"rotational", "ΔI [MHz]", func(c calibSample) float64 { return c.dI }},
	}
	for _, ax := range axes {
		p := plot.New()
		p.X.Label.Text = "RMSD [Å]"
		p.Y.Label.Text = ax.label
		pts := make(plotter.XYs, 0, len(s.samples))
		for _, sample := range s.samples {
			pts = append(pts, plotter.XY{X: sample.rmsd, Y: ax.pick(sample)})
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			s.log.Warnw("scatter plot failed", "axis", ax.name, "error", err)
			continue
		}
		scatter.Radius = vg.Points(1.5)
		p.Add(scatter)
		name := s.conf.Basename + "." + ax.name + ".png"
		if err := p.Save(15*vg.Centimeter, 10*vg.Centimeter, name); err != nil {
			s.log.Warnw("plot save failed", "file", name, "error", err)
		}
	}
}
