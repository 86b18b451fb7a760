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

// State is one of the Supervisor lifecycle states from SPEC_FULL.md §3.
type State string

const (
	Created  State = "CREATED"
	Starting State = "STARTING"
	Running  State = "RUNNING"
	Stopping State = "STOPPING"
	Stopped  State = "STOPPED"
	Blocked  State = "BLOCKED"
	Failed   State = "FAILED"
	Finished State = "FINISHED"
)

// ExitRecord is the lastExit field of the Supervisor state: what the most
// recently completed child did when it went away.
type ExitRecord struct {
	Code   int       `json:"code"`
	Signal string    `json:"signal,omitempty"`
	At     time.Time `json:"at"`
}

// Status is a point-in-time snapshot of one Supervisor, suitable for
// marshalling onto the IPC bus.
type Status struct {
	ID           string      `json:"id"`
	State        State       `json:"state"`
	Pid          int         `json:"pid,omitempty"`
	Restarts     int         `json:"restarts"`
	LastExit     *ExitRecord `json:"lastExit,omitempty"`
	NextCronFire *time.Time  `json:"nextCronFire,omitempty"`
	Blocked      bool        `json:"blocked"`
}
