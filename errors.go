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

import "errors"

// Sentinel errors returned by the core and its Supervisors. Callers should
// use errors.Is against these rather than comparing strings.
var (
	ErrNotFound      = errors.New("pup: no such process")
	ErrBlocked       = errors.New("pup: process is blocked")
	ErrShuttingDown  = errors.New("pup: core is shutting down")
	ErrBusConflict   = errors.New("pup: another core already owns this bus")
	ErrAlreadyExists = errors.New("pup: process id already registered")
)

// ConfigError wraps a failure to load or validate a Plan. Config loading is
// all-or-nothing: a ConfigError means the core never starts.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "pup: config error: " + e.Err.Error()
	}
	return "pup: config error in " + e.Path + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SpawnError records a failed attempt to start a child process. It counts
// as a failed start against restartLimit.
type SpawnError struct {
	ID  string
	Err error
}

func (e *SpawnError) Error() string {
	return "pup: spawn " + e.ID + ": " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WatchError records a failure to establish a filesystem watch for a
// Supervisor. It disables the watch trigger for that Supervisor only; it is
// never fatal to the core.
type WatchError struct {
	ID  string
	Err error
}

func (e *WatchError) Error() string {
	return "pup: watch " + e.ID + ": " + e.Err.Error()
}

func (e *WatchError) Unwrap() error { return e.Err }

// IPCError records a failure on a single bus connection. The connection is
// closed; the core keeps running.
type IPCError struct {
	Err error
}

func (e *IPCError) Error() string { return "pup: ipc: " + e.Err.Error() }

func (e *IPCError) Unwrap() error { return e.Err }

// InternalError indicates an invariant was violated. The core logs a state
// dump and exits with code 3.
type InternalError struct {
	Detail string
}

func (e *InternalError) Error() string { return "pup: internal error: " + e.Detail }
