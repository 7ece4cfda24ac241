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

// Package tracing wires an OpenTelemetry TracerProvider for the opcode
// pipeline. Spans are local-only: this exercise has no collector to ship
// them to, so the configured exporter writes pretty-printed JSON, matching
// how the ancestor project falls back to a stdout exporter outside of its
// cloud deployment.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the resource attribute stamped on every span this module
// emits.
const ServiceName = "patchworkfs"

// Provider wraps the sdktrace.TracerProvider so callers have a single
// Shutdown to call during mount teardown.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Disabled returns a Provider whose Tracer() hands out otel's no-op tracer,
// for runs started without --trace-output.
func Disabled() *Provider {
	return &Provider{}
}

// New builds a Provider that writes pretty-printed spans to w. Passing a
// nil w is equivalent to Disabled.
func New(w io.Writer) (*Provider, error) {
	if w == nil {
		return Disabled(), nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(semconv.ServiceName(ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

// Tracer returns the trace.Tracer components should pass opcode spans
// through, e.g. vcs.New's tracer argument.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return otel.Tracer(ServiceName)
	}
	return p.tp.Tracer(ServiceName)
}

// Shutdown flushes any buffered spans and releases exporter resources. Safe
// to call on a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
