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

package supervisor

import (
	"time"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/child"
)

// kind discriminates the variants of message, the single sum type every
// trigger funnels through (autostart, cron, watch, and operator commands
// alike), per SPEC_FULL.md §9's "triggers as unified messages" note.
type kind int

const (
	kindAutostart kind = iota
	kindCron
	kindWatch
	kindStart
	kindStop
	kindRestart
	kindBlock
	kindUnblock
	kindShutdown
	kindChildExit
	kindSpawnFailed
	kindStatus
	kindRestartTimer
	kindKillTimer
)

// message is delivered to a Supervisor's inbox. Exactly one goroutine —
// the Supervisor's own run loop — ever reads fields off a message, so no
// locking is needed here.
type message struct {
	kind kind

	// kindChildExit
	exit child.ExitStatus

	// kindSpawnFailed
	spawnErr error

	// kindRestartTimer, kindKillTimer: gen is the generation the timer
	// was armed with. The run loop drops the message if it no longer
	// matches the Supervisor's current generation counter, which is how
	// a manual stop or a superseding event cancels an in-flight timer
	// without any explicit timer.Stop() bookkeeping.
	gen int

	// kindChildExit: restartGenAtSpawn is unused by the current
	// synchronous-spawn design but kept so an async spawn path can
	// correlate an exit with the attempt that produced it.
	restartGenAtSpawn int

	// kindStatus: reply carries the snapshot back to the asker.
	reply chan pup.Status

	// ack is not set by any sender in this package: Shutdown waits on
	// the run loop's done channel and Status on its reply channel.
	ack chan struct{}

	at time.Time
}
