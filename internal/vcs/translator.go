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

package vcs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/patchworkfs/patchworkfs/internal/metrics"
	"github.com/patchworkfs/patchworkfs/internal/opcode"
	"github.com/patchworkfs/patchworkfs/internal/opqueue"
)

// pollInterval is how long Translator.Run sleeps between empty try_pop
// attempts, matching the "sleep short interval; continue" step of
// spec.md §4.7's pseudo-lifecycle.
const pollInterval = 10 * time.Millisecond

// Translator is the dedicated consumer thread (C7) draining an opqueue.Queue
// and applying each opcode to a Backend.
type Translator struct {
	queue   *opqueue.Queue
	backend Backend
	log     Logger
	tracer  trace.Tracer
	metrics *metrics.Handle

	applied int64
	skipped int64
}

// New builds a Translator over queue and backend. tracer may be nil, in
// which case spans are simply not recorded.
func New(queue *opqueue.Queue, backend Backend, log Logger, tracer trace.Tracer) *Translator {
	return &Translator{queue: queue, backend: backend, log: log, tracer: tracer}
}

// SetMetrics attaches a metrics.Handle the translator reports apply outcomes
// and queue depth to. Left unset (nil), instrumentation is skipped.
func (t *Translator) SetMetrics(h *metrics.Handle) {
	t.metrics = h
}

// Run drains the queue until ctx is cancelled, then performs a best-effort
// final drain before returning (spec.md §4.7's shutdown step). It is meant
// to be the body of an errgroup goroutine in internal/mountlib.
func (t *Translator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.drainRemaining(context.Background())
			return nil
		default:
		}

		oc, ok := t.queue.TryPop()
		if !ok {
			select {
			case <-ctx.Done():
				t.drainRemaining(context.Background())
				return nil
			case <-time.After(pollInterval):
			}
			continue
		}

		t.applyWithSpan(ctx, oc)
	}
}

func (t *Translator) drainRemaining(ctx context.Context) {
	for _, oc := range t.queue.Drain() {
		t.applyWithSpan(ctx, oc)
	}
}

func (t *Translator) applyWithSpan(ctx context.Context, oc opcode.Opcode) {
	if t.tracer != nil {
		var span trace.Span
		ctx, span = t.tracer.Start(ctx, "vcs.apply_opcode")
		defer span.End()
	}

	err := ApplyOpcode(t.backend, oc)
	switch err {
	case nil:
		t.applied++
		t.metrics.RecordApplied(ctx, metrics.OutcomeApplied)
	case ErrNoChange:
		// Treated as success; nothing further to record.
		t.metrics.RecordApplied(ctx, metrics.OutcomeNoChange)
	case ErrUnsupported:
		t.skipped++
		if t.log != nil {
			t.log.Debugf("vcs: skipping unsupported opcode #%d (%s)", oc.Seq(), oc.Summary())
		}
		t.metrics.RecordApplied(ctx, metrics.OutcomeUnsupported)
	default:
		t.skipped++
		if t.log != nil {
			t.log.Warnf("vcs: failed to apply opcode #%d (%s): %v", oc.Seq(), oc.Summary(), err)
		}
		t.metrics.RecordApplied(ctx, metrics.OutcomeFailed)
	}
	t.metrics.SetQueueDepth(ctx, int64(t.queue.Len()))
}

// Applied returns the number of opcodes successfully applied so far.
func (t *Translator) Applied() int64 { return t.applied }

// Skipped returns the number of opcodes skipped (unsupported or failed) so far.
func (t *Translator) Skipped() int64 { return t.skipped }
