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

package pup

import "time"

// RestartPolicy selects when a Supervisor tries to relaunch its child
// after an exit.
type RestartPolicy string

const (
	RestartNever   RestartPolicy = "never"
	RestartAlways  RestartPolicy = "always"
	RestartOnError RestartPolicy = "on-error"
)

// LBPolicy selects how a Cluster's load-balancing front end picks a
// replica for an incoming connection.
type LBPolicy string

const (
	LBRoundRobin      LBPolicy = "round-robin"
	LBLeastConnection LBPolicy = "least-conn"
)

// ProcessSpec is the declarative description of one logical process. It
// matches the "processes" array entries of the pup.json configuration file
// documented in SPEC_FULL.md §6.
type ProcessSpec struct {
	ID  string            `json:"id"`
	Cmd []string          `json:"cmd"`
	Cwd string            `json:"cwd,omitempty"`
	Env map[string]string `json:"env,omitempty"`

	Autostart bool     `json:"autostart,omitempty"`
	Cron      string   `json:"cron,omitempty"`
	Watch     []string `json:"watch,omitempty"`

	Restart        RestartPolicy `json:"restart,omitempty"`
	RestartDelayMs int64         `json:"restartDelayMs,omitempty"`
	RestartLimit   *int          `json:"restartLimit,omitempty"`

	TerminateTimeoutMs int64  `json:"terminateTimeoutMs,omitempty"`
	StopSignal         string `json:"stopSignal,omitempty"`
	MinUptimeMs        int64  `json:"minUptimeMs,omitempty"`

	Instances int      `json:"instances,omitempty"`
	Path      string   `json:"path,omitempty"`
	LBPolicy  LBPolicy `json:"lbPolicy,omitempty"`
}

// RestartDelay returns the configured restart delay as a time.Duration.
func (p *ProcessSpec) RestartDelay() time.Duration {
	return time.Duration(p.RestartDelayMs) * time.Millisecond
}

// TerminateTimeout returns the configured graceful-stop timeout.
func (p *ProcessSpec) TerminateTimeout() time.Duration {
	return time.Duration(p.TerminateTimeoutMs) * time.Millisecond
}

// MinUptime returns the configured minimum uptime as a time.Duration.
func (p *ProcessSpec) MinUptime() time.Duration {
	return time.Duration(p.MinUptimeMs) * time.Millisecond
}

// HasTrigger reports whether the process can ever start without an
// operator command, per SPEC_FULL.md §3's invariant.
func (p *ProcessSpec) HasTrigger() bool {
	return p.Autostart || p.Cron != "" || len(p.Watch) > 0
}

// LoggerOptions configures the top-level log sink, mirroring the
// "logger" object of the configuration file.
type LoggerOptions struct {
	Stdout   string `json:"stdout,omitempty"`
	Decorate bool   `json:"decorate,omitempty"`
	Colors   bool   `json:"colors,omitempty"`
}

// Plan is the immutable, validated result of loading a configuration file.
// Nothing may mutate a Plan after Load returns it; the core reads it only
// at construction time, so supervisors never need to guard against it
// changing underneath them.
type Plan struct {
	Dir        string
	DefaultCwd string
	Logger     LoggerOptions
	IPCPath    string

	// ClusterListen is the address the cluster load-balancing front end
	// binds, shared by every path-routed Cluster (SPEC_FULL.md §4.F).
	// Empty disables clustering front ends entirely, even if a
	// ProcessSpec declares instances>1 or path.
	ClusterListen string

	Processes []ProcessSpec
}

// Find returns the ProcessSpec with the given id, or false if there is
// none.
func (p *Plan) Find(id string) (ProcessSpec, bool) {
	for _, ps := range p.Processes {
		if ps.ID == id {
			return ps, true
		}
	}
	return ProcessSpec{}, false
}
