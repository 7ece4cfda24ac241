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

package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Manager tracks every mounted source directory in a single central store,
// one subdirectory per project keyed by UUID (mirrors
// original_source's ProjectManager, minus the pijul-specific
// central-directory default of `~/.local/share/ize`).
type Manager struct {
	centralDir string
}

// NewManager builds a Manager rooted at centralDir, creating it (and its
// "projects" subdirectory) if necessary.
func NewManager(centralDir string) (*Manager, error) {
	projectsDir := filepath.Join(centralDir, "projects")
	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("project: create central store: %w", err)
	}
	return &Manager{centralDir: centralDir}, nil
}

func (m *Manager) projectsDir() string {
	return filepath.Join(m.centralDir, "projects")
}

// Create registers a new project for sourceDir. sourceDir is resolved to an
// absolute path before comparison so repeated mounts of the same directory
// (via different relative paths) are recognized as the same project.
func (m *Manager) Create(sourceDir string) (*Project, error) {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("project: resolve source dir: %w", err)
	}

	if existing, err := m.FindBySourceDir(absSource); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, absSource)
	}

	id := uuid.NewString()
	return newProject(filepath.Join(m.projectsDir(), id), absSource)
}

// FindBySourceDir returns the project tracking absSourceDir, or (nil, nil)
// if none is tracked.
func (m *Manager) FindBySourceDir(absSourceDir string) (*Project, error) {
	entries, err := os.ReadDir(m.projectsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := loadProject(filepath.Join(m.projectsDir(), entry.Name()))
		if err != nil {
			continue // skip entries without a readable manifest
		}
		if p.manifest.SourceDir == absSourceDir {
			return p, nil
		}
	}
	return nil, nil
}

// FindByUUID returns the project with the given UUID, or ErrNotFound.
func (m *Manager) FindByUUID(id string) (*Project, error) {
	dir := filepath.Join(m.projectsDir(), id)
	p, err := loadProject(dir)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every tracked project's manifest.
func (m *Manager) List() ([]Manifest, error) {
	entries, err := os.ReadDir(m.projectsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := loadProject(filepath.Join(m.projectsDir(), entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, p.manifest)
	}
	return out, nil
}

// Delete removes a tracked project from the central store by UUID. It does
// not touch the project's source directory.
func (m *Manager) Delete(id string) error {
	dir := filepath.Join(m.projectsDir(), id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}
