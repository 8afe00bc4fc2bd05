/*
 * config.go, part of curcuma
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

//Package md integrates atomic motion in time under an energy backend,
//with optional RATTLE bond constraints, thermostats, confining wall
//potentials and an RMSD-metadynamics bias. Internally everything runs
//in Hartree atomic units; geometries cross the package boundary in
//Angstrom.
package md

import "encoding/json"

//Config collects the MD settings. Times are femtoseconds,
//temperatures Kelvin, lengths Angstrom, energies Hartree.
type Config struct {
	Method       string          `json:"method"`
	EnergyConfig json.RawMessage `json:"energy_config"`
	Thermostat   string          `json:"thermostat"`
	DT           float64         `json:"dt"`
	MaxTime      float64         `json:"MaxTime"`
	T0           float64         `json:"T"`
	Coupling     float64         `json:"coupling"`
	Anderson     float64         `json:"anderson"`
	ChainLength  int             `json:"chainlength"`
	Seed         int64           `json:"seed"`
	HMass        float64         `json:"hmass"`
	Velo         float64         `json:"velo"`

	//Impulse recovery: when T drops below Impuls the velocities are
	//redrawn scaled by Velo*ImpulsScaling.
	Impuls        float64 `json:"impuls"`
	ImpulsScaling float64 `json:"impuls_scaling"`
	//Rescue reloads the last dumped state on instability instead of
	//aborting, at most MaxRescue times.
	Rescue    bool `json:"rescue"`
	MaxRescue int  `json:"max_rescue"`

	//COM/rotation removal every RmCOM fs; RmRotTrans selects the
	//mode: 1 whole system, 2 per fragment, 3 both.
	RmCOM      float64 `json:"rm_COM"`
	RmRotTrans int     `json:"rmrottrans"`
	NoCenter   bool    `json:"nocenter"`

	//RATTLE: 0 off, 1 all bonds, 2 bonds involving hydrogen.
	Rattle               int     `json:"rattle"`
	Rattle12             bool    `json:"rattle_12"`
	Rattle13             bool    `json:"rattle_13"`
	RattleTol12          float64 `json:"rattle_tol_12"`
	RattleTol13          float64 `json:"rattle_tol_13"`
	RattleMaxIter        int     `json:"rattle_maxiter"`
	RattleMax            float64 `json:"rattle_max"`
	RattleMin            float64 `json:"rattle_min"`
	RattleDynamicTol     bool    `json:"rattle_dynamic_tol"`
	RattleDynamicTolIter int     `json:"rattle_dynamic_tol_iter"`

	//Walls.
	Wall       string  `json:"wall"`      //none, spheric, rect
	WallType   string  `json:"wall_type"` //logfermi, harmonic
	WallRadius float64 `json:"wall_spheric_radius"`
	WallTemp   float64 `json:"wall_temp"`
	WallBeta   float64 `json:"wall_beta"`
	WallXMin   float64 `json:"wall_x_min"`
	WallXMax   float64 `json:"wall_x_max"`
	WallYMin   float64 `json:"wall_y_min"`
	WallYMax   float64 `json:"wall_y_max"`
	WallZMin   float64 `json:"wall_z_min"`
	WallZMax   float64 `json:"wall_z_max"`

	//RMSD metadynamics.
	RMSDMTD          bool    `json:"rmsd_mtd"`
	KRMSD            float64 `json:"k_rmsd"`
	AlphaRMSD        float64 `json:"alpha_rmsd"`
	MTDSteps         int     `json:"mtd_steps"`
	MaxRMSDN         int     `json:"max_rmsd_N"`
	RMSDEconv        float64 `json:"rmsd_econv"`
	RMSDDT           float64 `json:"rmsd_DT"`
	WTMTD            bool    `json:"wtmtd"`
	RMSDAtoms        int     `json:"rmsd_atoms"` //fragment selector, -1 = all
	RMSDRefFile      string  `json:"rmsd_ref_file"`
	RMSDFixStructure bool    `json:"rmsd_fix_structure"`
	NoColvarFile     bool    `json:"noCOLVARfile"`

	//Output.
	Dump         int     `json:"dump"`
	Print        int     `json:"print"`
	WriteXYZ     bool    `json:"writeXYZ"`
	WriteRestart int     `json:"writerestart"`
	Unique       bool    `json:"unique"`
	UniqueRMSD   float64 `json:"rmsd"`
	Basename     string  `json:"basename"`

	Threads int `json:"threads"`
}

//DefaultConfig returns the MD defaults.
func DefaultConfig() *Config {
	return &Config{
		Method:               "lj",
		Thermostat:           "berendson",
		DT:                   1.0,
		MaxTime:              5000,
		T0:                   298.15,
		Coupling:             10,
		Anderson:             0.1,
		ChainLength:          3,
		HMass:                1,
		Velo:                 1,
		Impuls:               -1,
		ImpulsScaling:        0.75,
		MaxRescue:            10,
		RmCOM:                100,
		RmRotTrans:           1,
		RattleTol12:          1e-6,
		RattleTol13:          1e-5,
		RattleMaxIter:        100,
		RattleMax:            10,
		RattleMin:            1e-8,
		RattleDynamicTolIter: 100,
		Wall:                 "none",
		WallType:             "logfermi",
		WallTemp:             298.15,
		WallBeta:             6,
		KRMSD:                0.1,
		AlphaRMSD:            10,
		MTDSteps:             100,
		MaxRMSDN:             -1,
		RMSDEconv:            1,
		RMSDDT:               300,
		RMSDAtoms:            -1,
		Dump:                 50,
		Print:                1000,
		UniqueRMSD:           1.5,
		Basename:             "curcuma_md",
		Threads:              1,
	}
}
