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

package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabled_TracerIsUsableNoop(t *testing.T) {
	p := Disabled()
	tr := p.Tracer()
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "test")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_WritesSpanToWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&buf)
	require.NoError(t, err)

	ctx, span := p.Tracer().Start(context.Background(), "vcs.apply_opcode")
	span.End()
	_ = ctx

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "vcs.apply_opcode")
}

func TestNew_NilWriterIsDisabled(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
}
