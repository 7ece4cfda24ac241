// Copyright 2026 The Patchworkfs Authors.
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

// Package mountlib wires the whole pipeline together: the passthrough core
// (C3), the observing wrapper (C4), the opcode recorder (C5), the bounded
// queue (C6), and the VCS translator (C7), then hands the observed
// fuseutil.FileSystem to github.com/jacobsa/fuse for an actual kernel mount.
// cmd/mount.go's runMount builds it for this system's single
// passthrough+VCS pipeline.
package mountlib

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/patchworkfs/patchworkfs/internal/clock"
	"github.com/patchworkfs/patchworkfs/internal/metrics"
	"github.com/patchworkfs/patchworkfs/internal/observing"
	"github.com/patchworkfs/patchworkfs/internal/opqueue"
	"github.com/patchworkfs/patchworkfs/internal/passthrough"
	"github.com/patchworkfs/patchworkfs/internal/recorder"
	"github.com/patchworkfs/patchworkfs/internal/vcs"
)

// Logger is the narrow surface the mount lifecycle logs operator-facing
// messages through; cmd/mount.go's cliLogger adapts internal/logger to it.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Options configures one mount.
type Options struct {
	BackingDir    string // the real directory being mirrored
	MountPoint    string // where the FUSE filesystem is exposed
	ReadOnly      bool
	QueueCapacity int
	Uid, Gid      uint32
	DebugFUSE     bool

	Backend vcs.Backend
	Clock   clock.Clock
	Log     Logger
	Metrics *metrics.Handle
	Tracer  trace.Tracer // nil disables opcode-apply spans

	// QueueDumpAddr, when non-empty, serves a GET /queue debug endpoint
	// listing the opcodes currently sitting in the queue, for
	// `patchworkfs queue dump` (SPEC_FULL.md §C.2) to consume.
	QueueDumpAddr string
}

// queueDepthInterval is how often the background reporter samples the
// queue's length for the opcode/queue_depth gauge.
const queueDepthInterval = time.Second

// Mount is a live mount: the kernel-facing fuse.MountedFileSystem plus the
// background goroutines (VCS translator, metrics reporter) servicing it.
type Mount struct {
	mfs        *fuse.MountedFileSystem
	queue      *opqueue.Queue
	translator *vcs.Translator
	metrics    *metrics.Handle
	debugSrv   *http.Server

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New assembles the pipeline and performs the kernel mount. The returned
// Mount's background goroutines are not started until Run is called.
func New(opts Options) (*Mount, error) {
	if opts.BackingDir == "" || opts.MountPoint == "" {
		return nil, fmt.Errorf("mountlib: BackingDir and MountPoint are required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("mountlib: Backend is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = opqueue.DefaultCapacity
	}

	core := passthrough.New(passthrough.Config{
		BackingDir: opts.BackingDir,
		ReadOnly:   opts.ReadOnly,
		Clock:      clk,
		Uid:        opts.Uid,
		Gid:        opts.Gid,
	})

	queue := opqueue.NewWithCapacity(capacity)
	rec := recorder.New(core.Paths(), opts.BackingDir, clk, opqueue.NewSender(queue), opts.Log)
	rec.SetMetrics(opts.Metrics)

	observed := observing.New(core, rec)

	mountCfg := &fuse.MountConfig{
		ReadOnly: opts.ReadOnly,
		// Access checks are left to the kernel rather than implemented via a
		// FileSystem.Access method, which this jacobsa/fuse version does not
		// define an op for.
		Options: map[string]string{"default_permissions": ""},
	}
	if opts.DebugFUSE && opts.Log != nil {
		mountCfg.ErrorLogger = log.New(logWriter{opts.Log}, "", 0)
	}

	mfs, err := fuse.Mount(opts.MountPoint, fuseutil.NewFileSystemServer(observed), mountCfg)
	if err != nil {
		return nil, fmt.Errorf("mountlib: mount %s: %w", opts.MountPoint, err)
	}

	translator := vcs.New(queue, opts.Backend, vcsLogAdapter{opts.Log}, opts.Tracer)
	translator.SetMetrics(opts.Metrics)

	m := &Mount{
		mfs:        mfs,
		queue:      queue,
		translator: translator,
		metrics:    opts.Metrics,
	}
	if opts.QueueDumpAddr != "" {
		m.debugSrv = newQueueDumpServer(opts.QueueDumpAddr, queue)
	}
	return m, nil
}

// queuedOpcode is the JSON shape GET /queue returns for each pending opcode.
type queuedOpcode struct {
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp_nanos"`
	Variant   string `json:"variant"`
	Path      string `json:"path"`
	Summary   string `json:"summary"`
}

func newQueueDumpServer(addr string, queue *opqueue.Queue) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		pending := queue.PeekAll()
		dump := make([]queuedOpcode, len(pending))
		for i, oc := range pending {
			dump[i] = queuedOpcode{
				Seq:       oc.Seq(),
				Timestamp: oc.Timestamp(),
				Variant:   oc.Op().Variant.String(),
				Path:      oc.Path(),
				Summary:   oc.Summary(),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dump)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}

// Run starts the VCS translator and the queue-depth metrics reporter, both
// bound to ctx, and returns once both have been launched. Call Shutdown (or
// cancel ctx) to stop them; Wait blocks until they have drained and exited.
func (m *Mount) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.translator.Run(gctx) })
	g.Go(func() error { return m.reportQueueDepth(gctx) })
	m.group = g
}

func (m *Mount) reportQueueDepth(ctx context.Context) error {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.metrics.SetQueueDepth(ctx, int64(m.queue.Len()))
		}
	}
}

// Wait blocks until the filesystem is unmounted and the background
// goroutines launched by Run have exited.
func (m *Mount) Wait() error {
	if err := m.mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("mountlib: join: %w", err)
	}
	if m.group != nil {
		if err := m.group.Wait(); err != nil {
			return fmt.Errorf("mountlib: background goroutine: %w", err)
		}
	}
	return nil
}

// Shutdown unmounts the filesystem and stops the background goroutines
// started by Run. It does not wait for them to finish; call Wait for that.
func (m *Mount) Shutdown(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.debugSrv != nil {
		m.debugSrv.Shutdown(ctx)
	}
	return fuse.Unmount(m.mfs.Dir())
}

// Applied reports how many opcodes the VCS translator has successfully
// applied so far.
func (m *Mount) Applied() int64 { return m.translator.Applied() }

// Skipped reports how many opcodes the VCS translator has skipped
// (unsupported variant, or a failed apply) so far.
func (m *Mount) Skipped() int64 { return m.translator.Skipped() }

// vcsLogAdapter adapts Logger to vcs.Logger; a nil log makes both methods no-ops.
type vcsLogAdapter struct{ log Logger }

func (l vcsLogAdapter) Warnf(format string, args ...any) {
	if l.log != nil {
		l.log.Warnf(format, args...)
	}
}

func (l vcsLogAdapter) Debugf(format string, args ...any) {}

// logWriter adapts Logger to io.Writer so it can back a *log.Logger, which
// is the type fuse.MountConfig.ErrorLogger expects (see
// samples/mount_roloopbackfs/mount.go).
type logWriter struct{ log Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Errorf("%s", string(p))
	return len(p), nil
}
