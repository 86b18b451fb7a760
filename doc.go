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

// Package pup provides a universal process supervisor core: it loads a
// declarative Plan of processes, drives each through a restart/backoff
// state machine, multiplexes their lifetimes against cron schedules and
// filesystem watches, and exposes everything over a local command/status
// bus.
//
// pup is not a container runtime and makes no durability guarantees about
// child state across its own restarts beyond re-reading the configuration
// file. It is meant to sit underneath a CLI, a service installer, or a
// plugin host — none of which are provided here.
package pup
