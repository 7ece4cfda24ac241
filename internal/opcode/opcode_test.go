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

package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndAccessors(t *testing.T) {
	op := New(7, 12345, Operation{
		Variant: FileCreate,
		Path:    "a/b.txt",
		Mode:    0644,
		Content: []byte("hi"),
	})

	assert.Equal(t, uint64(7), op.Seq())
	assert.Equal(t, int64(12345), op.Timestamp())
	assert.Equal(t, "a/b.txt", op.Path())
	assert.Equal(t, FileCreate, op.Op().Variant)
}

func TestAffectsPath_SimpleVariant(t *testing.T) {
	op := New(1, 0, Operation{Variant: FileDelete, Path: "x"})

	assert.True(t, op.AffectsPath("x"))
	assert.False(t, op.AffectsPath("y"))
}

func TestAffectsPath_Rename(t *testing.T) {
	op := New(1, 0, Operation{Variant: FileRename, Path: "old", NewPath: "new"})

	assert.True(t, op.AffectsPath("old"))
	assert.True(t, op.AffectsPath("new"))
	assert.False(t, op.AffectsPath("other"))
}

func TestSummary(t *testing.T) {
	rename := New(3, 0, Operation{Variant: DirRename, Path: "d", NewPath: "e"})
	assert.Equal(t, "DirRename d -> e", rename.Summary())

	create := New(1, 0, Operation{Variant: FileCreate, Path: "a.txt"})
	assert.Equal(t, "FileCreate a.txt", create.Summary())
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "FileWrite", FileWrite.String())
	assert.Equal(t, "Variant(99)", Variant(99).String())
}
