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

// Mounting a real kernel filesystem requires /dev/fuse and elevated
// privileges unavailable in ordinary test environments, so this package's
// tests cover New's validation and the narrow adapters around it rather
// than an end-to-end fuse.Mount. internal/passthrough's tests exercise the
// filesystem logic directly against a backing directory.
package mountlib

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patchworkfs/patchworkfs/internal/vcsmem"
)

func TestNew_RequiresBackingDirAndMountPoint(t *testing.T) {
	_, err := New(Options{Backend: vcsmem.New()})
	assert.Error(t, err)

	_, err = New(Options{BackingDir: "/tmp", Backend: vcsmem.New()})
	assert.Error(t, err)
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(Options{BackingDir: "/tmp", MountPoint: "/mnt"})
	assert.Error(t, err)
}

func TestVCSLogAdapter_NilLoggerIsSafe(t *testing.T) {
	a := vcsLogAdapter{}
	assert.NotPanics(t, func() {
		a.Warnf("x %d", 1)
		a.Debugf("y %d", 2)
	})
}
