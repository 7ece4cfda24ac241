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

package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNew_RecordsCountersAndGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	// opcodeMeter is resolved from the global otel provider at package init,
	// so replace it with a meter from our test provider for the duration of
	// this test.
	origMeter := opcodeMeter
	opcodeMeter = provider.Meter("patchworkfs/opcode")
	t.Cleanup(func() { opcodeMeter = origMeter })

	h, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	h.RecordEmitted(ctx, "FileWrite")
	h.RecordDropped(ctx, "FileWrite")
	h.RecordApplied(ctx, OutcomeApplied)
	h.SetQueueDepth(ctx, 42)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &data))
	require.NotEmpty(t, data.ScopeMetrics)

	var names []string
	for _, sm := range data.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	require.Contains(t, names, "opcode/recorded_count")
	require.Contains(t, names, "opcode/dropped_count")
	require.Contains(t, names, "opcode/apply_count")
	require.Contains(t, names, "opcode/queue_depth")
}

func TestNilHandle_MethodsAreNoops(t *testing.T) {
	var h *Handle
	require.NotPanics(t, func() {
		h.RecordEmitted(context.Background(), "FileWrite")
		h.RecordDropped(context.Background(), "FileWrite")
		h.RecordApplied(context.Background(), OutcomeApplied)
		h.SetQueueDepth(context.Background(), 0)
	})
}
