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

// Package metrics instruments the opcode pipeline (C5-C7) with OpenTelemetry
// metrics, exported to Prometheus for scraping. Naming and construction
// follow the otel Meter/Counter pattern used throughout this codebase's
// ancestry; this package narrows that pattern to the four numbers that
// matter for the opcode pipeline: how many mutations were recorded, how
// many were dropped before reaching the queue, how deep the queue is, and
// how the VCS translator disposed of what it drained.
package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// VariantKey annotates a counter with the opcode.Variant it concerns.
const VariantKey = "opcode_variant"

// OutcomeKey annotates the translator's apply_outcome counter.
const OutcomeKey = "apply_outcome"

const (
	OutcomeApplied     = "applied"
	OutcomeNoChange    = "no_change"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

var opcodeMeter = otel.Meter("patchworkfs/opcode")

// Handle is the narrow surface the recorder, opqueue, and VCS translator
// instrument against. A nil *Handle (the zero value from a failed New) is
// valid: every method on it is a no-op.
type Handle struct {
	recorded  metric.Int64Counter
	dropped   metric.Int64Counter
	applied   metric.Int64Counter
	queueDepth metric.Int64Gauge
}

// New builds a Handle backed by the process-wide otel MeterProvider. Callers
// typically install a Prometheus exporter as that provider's reader before
// calling New (see cmd/mount.go).
func New() (*Handle, error) {
	recorded, err1 := opcodeMeter.Int64Counter("opcode/recorded_count",
		metric.WithDescription("The cumulative number of opcodes the recorder emitted, by variant."))
	dropped, err2 := opcodeMeter.Int64Counter("opcode/dropped_count",
		metric.WithDescription("The cumulative number of opcodes dropped because the queue was full."))
	applied, err3 := opcodeMeter.Int64Counter("opcode/apply_count",
		metric.WithDescription("The cumulative number of opcodes the VCS translator drained from the queue, by outcome."))
	queueDepth, err4 := opcodeMeter.Int64Gauge("opcode/queue_depth",
		metric.WithDescription("The current number of opcodes waiting in the queue."))

	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}

	return &Handle{recorded: recorded, dropped: dropped, applied: applied, queueDepth: queueDepth}, nil
}

func variantAttr(variant string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String(VariantKey, variant)))
}

func outcomeAttr(outcome string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String(OutcomeKey, outcome)))
}

// RecordEmitted increments the count of opcodes the recorder successfully
// handed to the queue, tagged by variant (e.g. "FileWrite").
func (h *Handle) RecordEmitted(ctx context.Context, variant string) {
	if h == nil {
		return
	}
	h.recorded.Add(ctx, 1, variantAttr(variant))
}

// RecordDropped increments the count of opcodes discarded because the
// queue's TryPush rejected them, tagged by variant.
func (h *Handle) RecordDropped(ctx context.Context, variant string) {
	if h == nil {
		return
	}
	h.dropped.Add(ctx, 1, variantAttr(variant))
}

// RecordApplied increments the count of opcodes the translator finished
// handling, tagged by one of the Outcome* constants.
func (h *Handle) RecordApplied(ctx context.Context, outcome string) {
	if h == nil {
		return
	}
	h.applied.Add(ctx, 1, outcomeAttr(outcome))
}

// SetQueueDepth records the queue's current length. Callers sample this
// periodically (see internal/mountlib's reporting loop) rather than on
// every push/pop, since opqueue.Queue.Len briefly locks its mutex.
func (h *Handle) SetQueueDepth(ctx context.Context, depth int64) {
	if h == nil {
		return
	}
	h.queueDepth.Record(ctx, depth)
}
