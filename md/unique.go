/*
 * unique.go, part of curcuma
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

import "github.com/awvwgk/curcuma/align"

//trackUnique keeps the distinct conformers visited by the trajectory:
//a dumped frame joins the set when its RMSD after the reorder search
//to every stored structure is at least the unique threshold.
func (D *Driver) trackUnique() {
	driver := align.NewDriver(nil)
	driver.SetTarget(D.mol)
	for _, stored := range D.unique {
		driver.SetReference(stored)
		rmsd, err := driver.RMSD()
		if err == nil && rmsd < D.conf.UniqueRMSD {
			return
		}
	}
	snapshot := D.mol.Copy()
	D.unique = append(D.unique, snapshot)
	snapshot.AppendXYZ(D.conf.Basename + ".unique.xyz")
	D.log.Infow("new unique structure", "count", len(D.unique), "time_fs", D.curTime)
}
