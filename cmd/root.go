// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/patchworkfs/patchworkfs/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// MountConfig is the fully resolved configuration, populated by
	// initConfig before any subcommand's RunE runs.
	MountConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "patchworkfs",
	Short: "A version-controlled passthrough filesystem",
	Long: `patchworkfs mounts a FUSE filesystem that mirrors a backing directory
and records every mutating operation as an ordered opcode stream, committed
asynchronously to a patch-based version control backend.`,
	SilenceUsage: true,
}

// crashFile receives a dump of any unrecovered panic, so a mount that dies
// without a clean Shutdown still leaves a diagnosable trace behind.
const crashFile = "patchworkfs-crash.log"

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(&CrashWriter{fileName: crashFile}, "panic: %v\n%s", r, debug.Stack())
			panic(r)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(queueCmd)
}

func initConfig() {
	MountConfig = cfg.GetDefaultConfig()
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()))
}

func checkConfigErrors() error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}
	return cfg.ValidateConfig(&MountConfig)
}
