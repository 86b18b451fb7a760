// Copyright 2015 The Govisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates a pup.json document into an
// immutable pup.Plan (SPEC_FULL.md §4.A). Loading is all-or-nothing: any
// validation failure returns a *pup.ConfigError and produces no Plan.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/cron"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// document mirrors the top-level shape of a pup.json file exactly;
// DisallowUnknownFields rejects any key not named here or in
// pup.ProcessSpec's own json tags.
type document struct {
	Logger        pup.LoggerOptions `json:"logger"`
	ClusterListen string            `json:"clusterListen,omitempty"`
	Processes     []pup.ProcessSpec `json:"processes"`
}

// defaultClusterListen is used when any ProcessSpec declares a `path` or
// `instances > 1` but the document leaves `clusterListen` unset.
const defaultClusterListen = "127.0.0.1:8080"

// Load reads and validates the configuration file at path, producing an
// immutable Plan. Relative `cwd` entries in each ProcessSpec are
// resolved against path's directory, not the caller's own cwd.
func Load(path string) (*pup.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pup.ConfigError{Path: path, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, &pup.ConfigError{Path: path, Err: err}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &pup.ConfigError{Path: path, Err: err}
	}
	dir := filepath.Dir(absPath)

	if err := validate(doc.Processes); err != nil {
		return nil, &pup.ConfigError{Path: path, Err: err}
	}

	for i := range doc.Processes {
		p := &doc.Processes[i]
		if p.Cwd == "" {
			p.Cwd = dir
		} else if !filepath.IsAbs(p.Cwd) {
			p.Cwd = filepath.Join(dir, p.Cwd)
		}
	}

	clusterListen := doc.ClusterListen
	if clusterListen == "" {
		for _, p := range doc.Processes {
			if p.Path != "" || p.Instances > 1 {
				clusterListen = defaultClusterListen
				break
			}
		}
	}

	plan := &pup.Plan{
		Dir:           dir,
		DefaultCwd:    dir,
		Logger:        doc.Logger,
		IPCPath:       socketPath(dir),
		ClusterListen: clusterListen,
		Processes:     doc.Processes,
	}
	return plan, nil
}

// validate enforces every invariant from spec.md §3 plus the collision
// rule SPEC_FULL.md §4.A adds for load-balanced `path` prefixes.
func validate(specs []pup.ProcessSpec) error {
	seenID := make(map[string]bool, len(specs))
	seenPath := make(map[string]string, len(specs))

	for _, p := range specs {
		if p.ID == "" || !idPattern.MatchString(p.ID) {
			return fmt.Errorf("invalid process id %q", p.ID)
		}
		if seenID[p.ID] {
			return fmt.Errorf("duplicate process id %q", p.ID)
		}
		seenID[p.ID] = true

		if len(p.Cmd) == 0 {
			return fmt.Errorf("process %q: cmd must be non-empty", p.ID)
		}
		if !p.HasTrigger() {
			return fmt.Errorf("process %q: at least one of autostart, cron, or watch is required", p.ID)
		}
		if p.Cron != "" {
			if _, err := cron.Parse(p.Cron); err != nil {
				return fmt.Errorf("process %q: invalid cron expression: %w", p.ID, err)
			}
		}
		if p.RestartDelayMs < 0 {
			return fmt.Errorf("process %q: restartDelayMs must be >= 0", p.ID)
		}
		if p.RestartLimit != nil && *p.RestartLimit < 0 {
			return fmt.Errorf("process %q: restartLimit must be >= 0", p.ID)
		}
		switch p.Restart {
		case "", pup.RestartNever, pup.RestartAlways, pup.RestartOnError:
		default:
			return fmt.Errorf("process %q: invalid restart policy %q", p.ID, p.Restart)
		}
		if p.Instances < 0 {
			return fmt.Errorf("process %q: instances must be >= 1", p.ID)
		}

		if p.Path != "" {
			instances := p.Instances
			if instances == 0 {
				instances = 1
			}
			if owner, ok := seenPath[p.Path]; ok {
				return fmt.Errorf("process %q: path %q already claimed by %q", p.ID, p.Path, owner)
			}
			seenPath[p.Path] = p.ID
			_ = instances
		}
	}
	return nil
}

// socketPath computes the per-cwd IPC socket location, per spec.md §6:
// "./.pup/pup.sock", relative to the config file's directory.
func socketPath(configDir string) string {
	return filepath.Join(configDir, ".pup", "pup.sock")
}

// SocketPathFor returns the IPC socket path a core loading configPath
// would bind, without loading or validating the document itself. pupctl
// uses this to find a running pupd's bus.
func SocketPathFor(configPath string) (string, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", err
	}
	return socketPath(filepath.Dir(abs)), nil
}

// WindowsPipeName returns the named-pipe address spec.md §6 specifies
// for Windows hosts, derived from a hash of the config directory so
// that two pup instances in different cwds never collide.
func WindowsPipeName(configDir string) string {
	sum := sha1.Sum([]byte(configDir))
	return `\\.\pipe\pup-` + hex.EncodeToString(sum[:])[:12]
}
