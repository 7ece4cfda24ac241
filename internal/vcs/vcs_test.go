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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchworkfs/patchworkfs/internal/opcode"
	"github.com/patchworkfs/patchworkfs/internal/vcsmem"
)

func TestApplyOpcode_FileCreate(t *testing.T) {
	b := vcsmem.New()
	oc := opcode.New(1, 0, opcode.Operation{Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("hi")})

	require.NoError(t, ApplyOpcode(b, oc))

	content, err := b.GetFileContent("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestApplyOpcode_WriteSplicesAtOffset(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("0123456789"),
	})))

	write := opcode.New(2, 0, opcode.Operation{
		Variant: opcode.FileWrite, Path: "a.txt", Offset: 2, Data: []byte("XY"),
	})
	require.NoError(t, ApplyOpcode(b, write))

	content, err := b.GetFileContent("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "01XY456789", string(content))
}

func TestApplyOpcode_WriteBeyondEndZeroPads(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("ab"),
	})))

	write := opcode.New(2, 0, opcode.Operation{
		Variant: opcode.FileWrite, Path: "a.txt", Offset: 4, Data: []byte("Z"),
	})
	require.NoError(t, ApplyOpcode(b, write))

	content, err := b.GetFileContent("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 'Z'}, content)
}

func TestApplyOpcode_WriteOnMissingFileStartsFromEmpty(t *testing.T) {
	b := vcsmem.New()
	write := opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileWrite, Path: "new.txt", Offset: 0, Data: []byte("hi"),
	})
	require.NoError(t, ApplyOpcode(b, write))

	content, err := b.GetFileContent("new.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestApplyOpcode_WriteNoChangeReturnsErrNoChange(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("hi"),
	})))

	write := opcode.New(2, 0, opcode.Operation{
		Variant: opcode.FileWrite, Path: "a.txt", Offset: 0, Data: []byte("hi"),
	})
	assert.ErrorIs(t, ApplyOpcode(b, write), ErrNoChange)
}

func TestApplyOpcode_Truncate(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("0123456789"),
	})))

	trunc := opcode.New(2, 0, opcode.Operation{Variant: opcode.FileTruncate, Path: "a.txt", Size: 3})
	require.NoError(t, ApplyOpcode(b, trunc))

	content, err := b.GetFileContent("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "012", string(content))
}

func TestApplyOpcode_Delete(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "a.txt", Content: []byte("hi"),
	})))

	del := opcode.New(2, 0, opcode.Operation{Variant: opcode.FileDelete, Path: "a.txt"})
	require.NoError(t, ApplyOpcode(b, del))

	exists, err := b.FileExists("a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	content, err := b.GetFileContent("a.txt")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestApplyOpcode_Rename(t *testing.T) {
	b := vcsmem.New()
	require.NoError(t, ApplyOpcode(b, opcode.New(1, 0, opcode.Operation{
		Variant: opcode.FileCreate, Path: "old.txt", Content: []byte("hi"),
	})))

	rename := opcode.New(2, 0, opcode.Operation{Variant: opcode.FileRename, Path: "old.txt", NewPath: "new.txt"})
	require.NoError(t, ApplyOpcode(b, rename))

	content, err := b.GetFileContent("new.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestApplyOpcode_UnsupportedVariant(t *testing.T) {
	b := vcsmem.New()
	dc := opcode.New(1, 0, opcode.Operation{Variant: opcode.DirCreate, Path: "d"})
	assert.ErrorIs(t, ApplyOpcode(b, dc), ErrUnsupported)
}
