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

package handletable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.txt")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	return f
}

func TestInsertContainsGet(t *testing.T) {
	tbl := New()
	f := openTemp(t)

	fd := tbl.Insert(f, "f.txt", uint32(os.O_RDWR))

	assert.True(t, tbl.Contains(fd))
	h, ok := tbl.Get(fd)
	require.True(t, ok)
	assert.Equal(t, "f.txt", h.Path)
	assert.Equal(t, 1, tbl.Len())
}

func TestContains_UnknownFd(t *testing.T) {
	tbl := New()
	assert.False(t, tbl.Contains(999999))
}

func TestRemove_ClosesAndDrops(t *testing.T) {
	tbl := New()
	f := openTemp(t)
	fd := tbl.Insert(f, "f.txt", 0)

	err := tbl.Remove(fd)
	assert.NoError(t, err)
	assert.False(t, tbl.Contains(fd))

	// The descriptor is now closed; writing to it must fail.
	_, err = f.Write([]byte("x"))
	assert.Error(t, err)
}

func TestRemove_UnknownFdIsNoop(t *testing.T) {
	tbl := New()
	assert.NoError(t, tbl.Remove(12345))
}
