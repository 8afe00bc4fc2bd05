/*
 * main.go, part of curcuma
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

//Command curcuma exposes the conformer scanner and the MD engine as
//subcommands, each configured by a JSON blob. A stop file named
//curcuma.stop in the working directory triggers a graceful shutdown
//at the next safe boundary.
package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	curcuma "github.com/awvwgk/curcuma"
	"github.com/awvwgk/curcuma/md"
	"github.com/awvwgk/curcuma/scan"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const stopFileName = "curcuma.stop"

var (
	configFile string
	verbose    bool
)

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

//watchStopFile flips the returned flag when the stop file appears.
//The engines poll the flag only at safe boundaries; the watcher is
//backed up by a direct stat in case fsnotify is unavailable.
func watchStopFile(logger *zap.Logger) func() bool {
	var requested atomic.Bool
	watcher, err := fsnotify.NewWatcher()
	if err == nil && watcher.Add(".") == nil {
		go func() {
			for ev := range watcher.Events {
				if filepath.Base(ev.Name) == stopFileName && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					logger.Info("stop file detected")
					requested.Store(true)
				}
			}
		}()
	}
	return func() bool {
		if requested.Load() {
			return true
		}
		_, err := os.Stat(stopFileName)
		return err == nil
	}
}

//loadConfig decodes the JSON configuration blob into target via
//viper, so nested keys and overrides behave uniformly across
//subcommands.
func loadConfig(target any) error {
	if configFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	blob, err := json.Marshal(v.AllSettings())
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, target)
}

func basenameOf(input string) string {
	base := filepath.Base(input)
	for _, suffix := range []string{".zst", ".xyz", ".trj"} {
		base = strings.TrimSuffix(base, suffix)
	}
	return base
}

func newConfScanCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "confscan <ensemble.xyz>",
		Short: "Deduplicate a conformer ensemble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := scan.DefaultConfig()
			if err := loadConfig(conf); err != nil {
				return err
			}
			conf.WriteFiles = true
			if conf.Basename == "confscan" {
				conf.Basename = basenameOf(args[0])
			}
			scanner := scan.NewScanner(conf, logger)
			scanner.SetStopCheck(watchStopFile(logger))
			if err := scanner.LoadFile(args[0]); err != nil {
				return err
			}
			return scanner.Run()
		},
	}
}

func newMDCmd(logger *zap.Logger) *cobra.Command {
	var restartFile string
	cmd := &cobra.Command{
		Use:   "md <structure.xyz>",
		Short: "Run molecular dynamics on a structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := md.DefaultConfig()
			if err := loadConfig(conf); err != nil {
				return err
			}
			if conf.Basename == "curcuma_md" {
				conf.Basename = basenameOf(args[0])
			}
			conf.WriteXYZ = true
			mol, err := curcuma.ReadXYZ(args[0])
			if err != nil {
				return err
			}
			driver := md.NewDriver(conf, logger)
			driver.SetMolecule(mol)
			driver.SetStopCheck(watchStopFile(logger))
			if err := driver.Initialise(); err != nil {
				return err
			}
			if restartFile != "" {
				if err := driver.LoadRestartFile(restartFile); err != nil {
					logger.Sugar().Warnw("restart not loaded", "error", err)
				}
			}
			return driver.Run()
		},
	}
	cmd.Flags().StringVar(&restartFile, "restart", "", "restart JSON file to resume from")
	return cmd
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	root := &cobra.Command{
		Use:           "curcuma",
		Short:         "Conformer deduplication and molecular dynamics toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "JSON configuration file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newConfScanCmd(logger))
	root.AddCommand(newMDCmd(logger))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
