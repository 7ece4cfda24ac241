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

package observing

import (
	"context"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver captures the names passed to OnCreate and the data
// passed to OnWrite; every other hook is a no-op.
type recordingObserver struct {
	NoopObserver
	creates []string
	writes  []string
}

func (r *recordingObserver) OnCreate(parent fuseops.InodeID, name string, mode uint32) {
	r.creates = append(r.creates, name)
}

func (r *recordingObserver) OnWrite(ino fuseops.InodeID, handle fuseops.HandleID, offset int64, data []byte) {
	r.writes = append(r.writes, string(data))
}

// orderingInner fails CreateFile so the test can prove the observer ran
// regardless of the inner call's outcome (notify-then-delegate, spec.md §4.4).
type orderingInner struct {
	fuseutil.NotImplementedFileSystem
	createCalled bool
}

func (o *orderingInner) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	o.createCalled = true
	return assertErr
}

var assertErr = assertErrType{}

type assertErrType struct{}

func (assertErrType) Error() string { return "inner failed" }

func TestNotifyThenDelegate_ObserverSeesAttemptEvenOnFailure(t *testing.T) {
	inner := &orderingInner{}
	obs := &recordingObserver{}
	w := New(inner, obs)

	err := w.CreateFile(context.Background(), &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "f.txt",
		Mode:   0o644,
	})

	assert.Error(t, err)
	assert.True(t, inner.createCalled)
	require.Len(t, obs.creates, 1)
	assert.Equal(t, "f.txt", obs.creates[0])
}

func TestWriteNotification(t *testing.T) {
	inner := &orderingInner{}
	obs := &recordingObserver{}
	w := New(inner, obs)

	_ = w.WriteFile(context.Background(), &fuseops.WriteFileOp{
		Inode:  42,
		Handle: 1,
		Offset: 0,
		Data:   []byte("payload"),
	})

	require.Len(t, obs.writes, 1)
	assert.Equal(t, "payload", obs.writes[0])
}

func TestReadOnlyCallsPassThroughWithoutNotification(t *testing.T) {
	inner := &orderingInner{}
	obs := &recordingObserver{}
	w := New(inner, obs)

	// GetInodeAttributes is not overridden by Wrapper; it must reach the
	// embedded NotImplementedFileSystem on inner, not panic or notify.
	err := w.GetInodeAttributes(context.Background(), &fuseops.GetInodeAttributesOp{})
	assert.Error(t, err) // NotImplementedFileSystem returns ENOSYS-equivalent
	assert.Empty(t, obs.creates)
	assert.Empty(t, obs.writes)
}
