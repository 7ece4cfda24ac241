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

// Package project is the mount entrypoint's external collaborator: before
// internal/mountlib can wire up a vcs.Backend, it needs to know which
// on-disk repository corresponds to the directory being mounted, and which
// channel is currently active. spec.md scopes channel/conflict semantics
// out of the core itself (§1's Non-goals); this package only persists the
// bookkeeping a `patchworkfs mount` invocation needs to find its way back
// to the same repository across restarts.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no project is tracked under a given UUID.
// FindBySourceDir reports an untracked source directory as (nil, nil).
var ErrNotFound = errors.New("project: not found")

// ErrAlreadyExists is returned by Manager.Create when source_dir is already
// tracked by another project.
var ErrAlreadyExists = errors.New("project: already tracked")

// manifestFile is the name of the YAML file persisted inside each project's
// metadata directory.
const manifestFile = "project.yaml"

// Manifest is the on-disk record of one tracked mount. It is the Go
// rendering of original_source's ProjectMetadata (project.toml), kept as
// YAML per SPEC_FULL.md's domain stack table.
type Manifest struct {
	UUID           string    `yaml:"uuid"`
	SourceDir      string    `yaml:"source_dir"`
	RepoDir        string    `yaml:"repo_dir"`
	Created        time.Time `yaml:"created"`
	DefaultChannel string    `yaml:"default_channel"`
	ActiveChannel  string    `yaml:"active_channel"`
}

// Project is a tracked mount: a source directory (what gets mounted over),
// a repo directory (where the VCS backend keeps its state), and the channel
// bookkeeping from Manifest.
type Project struct {
	dir      string // this project's directory inside the central store
	manifest Manifest
}

// UUID returns the project's identifier.
func (p *Project) UUID() string { return p.manifest.UUID }

// SourceDir returns the directory being mounted over.
func (p *Project) SourceDir() string { return p.manifest.SourceDir }

// RepoDir returns the directory the VCS backend should use as its
// repository root.
func (p *Project) RepoDir() string { return p.manifest.RepoDir }

// ActiveChannel returns the currently selected channel name.
func (p *Project) ActiveChannel() string { return p.manifest.ActiveChannel }

// SwitchChannel updates the active channel and persists the manifest.
// Creating and validating the channel against the VCS backend itself is the
// caller's responsibility (spec.md's Non-goals exclude conflict resolution
// between channels; this method is pure bookkeeping).
func (p *Project) SwitchChannel(name string) error {
	p.manifest.ActiveChannel = name
	return p.save()
}

func (p *Project) manifestPath() string {
	return filepath.Join(p.dir, manifestFile)
}

func (p *Project) save() error {
	data, err := yaml.Marshal(p.manifest)
	if err != nil {
		return fmt.Errorf("project: marshal manifest: %w", err)
	}
	return os.WriteFile(p.manifestPath(), data, 0o644)
}

func loadProject(dir string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("project: parse manifest %s: %w", dir, err)
	}
	return &Project{dir: dir, manifest: m}, nil
}

func newProject(dir, sourceDir string) (*Project, error) {
	id := filepath.Base(dir)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	p := &Project{
		dir: dir,
		manifest: Manifest{
			UUID:           id,
			SourceDir:      sourceDir,
			RepoDir:        filepath.Join(dir, "repo"),
			Created:        time.Now().UTC(),
			DefaultChannel: "main",
			ActiveChannel:  "main",
		},
	}
	if err := os.MkdirAll(p.manifest.RepoDir, 0o755); err != nil {
		return nil, fmt.Errorf("project: create repo dir: %w", err)
	}
	if err := p.save(); err != nil {
		return nil, err
	}
	return p, nil
}
