// Copyright 2024 Google LLC
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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/patchworkfs/patchworkfs/internal/logger"
	"github.com/patchworkfs/patchworkfs/internal/metrics"
	"github.com/patchworkfs/patchworkfs/internal/mountlib"
	"github.com/patchworkfs/patchworkfs/internal/project"
	"github.com/patchworkfs/patchworkfs/internal/tracing"
	"github.com/patchworkfs/patchworkfs/internal/vcsmem"
)

// cliLogger adapts internal/logger's package-level functions to
// mountlib.Logger.
type cliLogger struct{}

func (cliLogger) Infof(format string, args ...any)  { logger.Infof(format, args...) }
func (cliLogger) Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func (cliLogger) Errorf(format string, args ...any) { logger.Errorf(format, args...) }

var mountCmd = &cobra.Command{
	Use:   "mount <backing-dir> <mount-point>",
	Short: "Mount a version-controlled passthrough filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfigErrors(); err != nil {
			return err
		}
		return runMount(args[0], args[1])
	},
}

func runMount(backingDir, mountPoint string) error {
	backingDir, err := filepath.Abs(backingDir)
	if err != nil {
		return fmt.Errorf("resolving backing dir: %w", err)
	}
	mountPoint, err = filepath.Abs(mountPoint)
	if err != nil {
		return fmt.Errorf("resolving mount point: %w", err)
	}

	if err := logger.InitLogFile(MountConfig.Logging); err != nil {
		return err
	}
	logger.SetLogFormat(MountConfig.Logging.Format)

	metricsHandle, err := metrics.New()
	if err != nil {
		return fmt.Errorf("constructing metrics: %w", err)
	}
	if MountConfig.Metrics.PrometheusAddr != "" {
		provider, handler, err := metrics.NewPrometheusProvider()
		if err != nil {
			return fmt.Errorf("constructing prometheus exporter: %w", err)
		}
		otel.SetMeterProvider(provider)
		go serveMetrics(MountConfig.Metrics.PrometheusAddr, handler)
	}

	tracerProvider := tracing.Disabled()
	if MountConfig.Tracing.Output == "stdout" {
		tracerProvider, err = tracing.New(os.Stderr)
		if err != nil {
			return fmt.Errorf("constructing tracer: %w", err)
		}
	}
	defer tracerProvider.Shutdown(context.Background())

	centralDir, err := projectCentralDir()
	if err != nil {
		return err
	}
	manager, err := project.NewManager(centralDir)
	if err != nil {
		return fmt.Errorf("constructing project manager: %w", err)
	}
	proj, err := manager.FindBySourceDir(backingDir)
	if err != nil || proj == nil {
		proj, err = manager.Create(backingDir)
		if err != nil {
			return fmt.Errorf("tracking new project for %s: %w", backingDir, err)
		}
		logger.Infof("tracking new project %s for %s (channel %s)", proj.UUID(), backingDir, proj.ActiveChannel())
	}

	backend := vcsmem.New()

	mount, err := mountlib.New(mountlib.Options{
		BackingDir:    backingDir,
		MountPoint:    mountPoint,
		ReadOnly:      MountConfig.FileSystem.ReadOnly,
		QueueCapacity: MountConfig.FileSystem.QueueCapacity,
		Uid:           uint32(MountConfig.FileSystem.Uid),
		Gid:           uint32(MountConfig.FileSystem.Gid),
		DebugFUSE:     MountConfig.Debug.Fuse,
		QueueDumpAddr: MountConfig.Debug.QueueDumpAddr,
		Backend:       backend,
		Log:           cliLogger{},
		Metrics:       metricsHandle,
		Tracer:        tracerProvider.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("mounting %s at %s: %w", backingDir, mountPoint, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mount.Run(ctx)
	logger.Infof("mounted %s at %s (project %s, channel %s)", backingDir, mountPoint, proj.UUID(), proj.ActiveChannel())

	go func() {
		<-ctx.Done()
		logger.Infof("shutting down")
		mount.Shutdown(context.Background())
	}()

	if err := mount.Wait(); err != nil {
		return err
	}
	logger.Infof("unmounted; applied=%d skipped=%d", mount.Applied(), mount.Skipped())
	return nil
}

func projectCentralDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".patchworkfs"), nil
}
