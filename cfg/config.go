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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one mount, assembled by
// viper from flags, a YAML config file, and the defaults in defaults.go.
type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	Tracing TracingConfig `yaml:"tracing"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`

	// Fuse turns on github.com/jacobsa/fuse's own request/response logging,
	// routed through fuse.MountConfig.ErrorLogger.
	Fuse bool `yaml:"fuse"`

	// QueueDumpAddr, when non-empty, serves a GET /queue debug endpoint
	// exposing the live opcode queue's contents (internal/opqueue.PeekAll)
	// for `patchworkfs queue dump` to consume.
	QueueDumpAddr string `yaml:"queue-dump-addr"`
}

type FileSystemConfig struct {
	FileMode Octal `yaml:"file-mode"`

	DirMode Octal `yaml:"dir-mode"`

	Uid int `yaml:"uid"`

	Gid int `yaml:"gid"`

	ReadOnly bool `yaml:"read-only"`

	// QueueCapacity bounds internal/opqueue's opcode queue; once full the
	// recorder drops each newly observed opcode the queue rejects.
	QueueCapacity int `yaml:"queue-capacity"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath string `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

type MetricsConfig struct {
	// PrometheusAddr, when non-empty, serves the otel-to-Prometheus bridge
	// built by internal/metrics.NewPrometheusProvider on this address.
	PrometheusAddr string `yaml:"prometheus-addr"`
}

type TracingConfig struct {
	// Output selects the span exporter: "stdout" or "" (disabled). There is
	// only one exporter today; the field exists so the config shape doesn't
	// need to change when a second one is added.
	Output string `yaml:"output"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")

	err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_fuse", "", false, "Log every FUSE request and response.")

	err = viper.BindPFlag("debug.fuse", flagSet.Lookup("debug_fuse"))
	if err != nil {
		return err
	}

	flagSet.StringP("queue-dump-addr", "", "", "Address to serve the opcode queue debug endpoint on; empty disables it.")

	err = viper.BindPFlag("debug.queue-dump-addr", flagSet.Lookup("queue-dump-addr"))
	if err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0644, "Permission bits for files, in octal.")

	err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode"))
	if err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0755, "Permission bits for directories, in octal.")

	err = viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode"))
	if err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes. -1 leaves ownership untouched.")

	err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid"))
	if err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID owner of all inodes. -1 leaves ownership untouched.")

	err = viper.BindPFlag("file-system.gid", flagSet.Lookup("gid"))
	if err != nil {
		return err
	}

	flagSet.BoolP("read-only", "", false, "Mount the filesystem read-only; no opcodes are ever recorded.")

	err = viper.BindPFlag("file-system.read-only", flagSet.Lookup("read-only"))
	if err != nil {
		return err
	}

	flagSet.IntP("queue-capacity", "", DefaultQueueCapacity, "Soft capacity of the pending-opcode queue.")

	err = viper.BindPFlag("file-system.queue-capacity", flagSet.Lookup("queue-capacity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", INFO, "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Logging format: text or json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("prometheus-addr", "", "", "Address to serve Prometheus metrics on; empty disables the exporter.")

	err = viper.BindPFlag("metrics.prometheus-addr", flagSet.Lookup("prometheus-addr"))
	if err != nil {
		return err
	}

	flagSet.StringP("trace-output", "", "", "Span exporter: \"stdout\" or empty to disable tracing.")

	err = viper.BindPFlag("tracing.output", flagSet.Lookup("trace-output"))
	if err != nil {
		return err
	}

	return nil
}
