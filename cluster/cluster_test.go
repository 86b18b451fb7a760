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

package cluster

import (
	"testing"

	"github.com/pup-org/pup"
)

func newReplicaWithState(st pup.State) *replica {
	r := &replica{}
	r.setStatus(pup.Status{State: st})
	return r
}

func TestPickRoundRobinSkipsNonRunning(t *testing.T) {
	stopped := newReplicaWithState(pup.Stopped)
	r1 := newReplicaWithState(pup.Running)
	r2 := newReplicaWithState(pup.Running)
	c := &Cluster{
		spec:     pup.ProcessSpec{LBPolicy: pup.LBRoundRobin},
		connCnt:  map[*replica]int{},
		replicas: []*replica{stopped, r1, r2},
	}

	seen := map[*replica]bool{}
	for i := 0; i < 10; i++ {
		r := c.pick()
		if r == nil {
			t.Fatal("pick returned nil with RUNNING replicas available")
		}
		seen[r] = true
	}
	if seen[stopped] {
		t.Error("round-robin dispatched to a non-RUNNING replica")
	}
	if !seen[r1] || !seen[r2] {
		t.Error("round-robin never reached one of the RUNNING replicas")
	}
}

func TestPickReturnsNilWhenNoneRunning(t *testing.T) {
	c := &Cluster{
		spec:    pup.ProcessSpec{},
		connCnt: map[*replica]int{},
		replicas: []*replica{
			newReplicaWithState(pup.Stopped),
			newReplicaWithState(pup.Failed),
		},
	}
	if c.pick() != nil {
		t.Error("expected nil when no replica is RUNNING")
	}
}

func TestPickLeastConnectionPrefersFewerConnections(t *testing.T) {
	busy := newReplicaWithState(pup.Running)
	idle := newReplicaWithState(pup.Running)
	c := &Cluster{
		spec:     pup.ProcessSpec{LBPolicy: pup.LBLeastConnection},
		replicas: []*replica{busy, idle},
		connCnt:  map[*replica]int{busy: 5, idle: 0},
	}
	got := c.pick()
	if got != idle {
		t.Error("least-connections did not pick the replica with fewer connections")
	}
}
