// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package logger provides severity-tagged structured logging on top of
// log/slog, in text or JSON, with optional rotation to a file via
// gopkg.in/natefinch/lumberjack.v2. The default logger writes to stderr.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/patchworkfs/patchworkfs/cfg"
)

// slog only defines four levels; TRACE sits a notch below DEBUG so it can
// be filtered independently, and OFF sits above ERROR so it disables
// everything.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var severityToLevel = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   LevelTrace,
	cfg.DebugLogSeverity:   LevelDebug,
	cfg.InfoLogSeverity:    LevelInfo,
	cfg.WarningLogSeverity: LevelWarn,
	cfg.ErrorLogSeverity:   LevelError,
	cfg.OffLogSeverity:     LevelOff,
}

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// loggerFactory owns the handler configuration so SetLogFormat and
// InitLogFile can rebuild defaultLogger without callers needing to pass a
// *slog.Logger around.
type loggerFactory struct {
	file            *os.File
	asyncLogger     *AsyncLogger
	sysWriter       io.Writer
	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateLoggingConfig
}

var defaultLoggerFactory = &loggerFactory{
	sysWriter: os.Stderr,
	format:    "text",
	level:     cfg.InfoLogSeverity,
}

var defaultLogger = slog.New(
	defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""),
)

// createJsonOrTextHandler builds a handler that renames slog's level/time/
// message keys to this package's severity/timestamp/message vocabulary.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	isJSON := f.format == "json"
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				level := a.Value.Any().(slog.Level)
				name, ok := levelNames[level]
				if !ok {
					name = level.String()
				}
				a.Key = "severity"
				a.Value = slog.StringValue(name)
			case slog.MessageKey:
				a.Key = "message"
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.TimeKey:
				if len(groups) != 0 {
					return a
				}
				t := a.Value.Time()
				if isJSON {
					return slog.Attr{Key: "timestamp", Value: slog.GroupValue(
						slog.Int64("seconds", t.Unix()),
						slog.Int64("nanos", int64(t.Nanosecond())),
					)}
				}
				a.Key = "time"
				a.Value = slog.StringValue(t.Format("01/02/2006 15:04:05.000000"))
			}
			return a
		},
	}
	if isJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	l, ok := severityToLevel[cfg.LogSeverity(level)]
	if !ok {
		l = LevelInfo
	}
	programLevel.Set(l)
}

// SetLogFormat changes the default logger's output format ("text" or
// "json", anything else falls back to "json") and rebuilds defaultLogger.
func SetLogFormat(format string) {
	if format != "text" {
		format = "json"
	}
	defaultLoggerFactory.format = format
	rebuildDefaultLogger()
}

func rebuildDefaultLogger() {
	var w io.Writer = defaultLoggerFactory.sysWriter
	if defaultLoggerFactory.asyncLogger != nil {
		w = defaultLoggerFactory.asyncLogger
	}
	programLevel := new(slog.LevelVar)
	setLoggingLevel(string(defaultLoggerFactory.level), programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

// asyncLoggerBufferSize bounds how many pending log lines InitLogFile's
// AsyncLogger holds; once it is full, further lines are dropped rather than
// blocking the caller.
const asyncLoggerBufferSize = 1000

// InitLogFile points the default logger at a rotating file (via lumberjack,
// fed through an AsyncLogger so logging calls never block on disk I/O),
// replacing stderr output. An empty FilePath is a no-op; InitLogFile is
// meant to be called once during mount startup.
func InitLogFile(config cfg.LoggingConfig) error {
	if config.FilePath == "" {
		return nil
	}
	f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logger: open log file %s: %w", config.FilePath, err)
	}
	f.Close()

	lj := &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.LogRotate.MaxFileSizeMb,
		MaxBackups: config.LogRotate.BackupFileCount,
		Compress:   config.LogRotate.Compress,
	}

	defaultLoggerFactory.asyncLogger = NewAsyncLogger(lj, asyncLoggerBufferSize)
	defaultLoggerFactory.format = config.Format
	defaultLoggerFactory.level = config.Severity
	defaultLoggerFactory.logRotateConfig = config.LogRotate
	rebuildDefaultLogger()
	return nil
}

func Tracef(format string, v ...interface{}) { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

func logf(level slog.Level, format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}
