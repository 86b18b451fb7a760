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

package corelog

import (
	"sync"
	"time"
)

// DefaultStreamBudget is the per-stream buffering cap from SPEC_FULL.md
// §5: child stdout/stderr readers must never block the child on a slow
// sink, so lines queue here up to this many bytes before the oldest are
// dropped.
const DefaultStreamBudget = 4 * 1024 * 1024

// Record is one buffered, timestamped line.
type Record struct {
	Text string
	At   time.Time
}

// StreamBuffer is a byte-budgeted FIFO of Records for a single child
// stream. When a Push would exceed the budget, the oldest records are
// evicted until it fits, and Push reports the first eviction of an
// overflow episode so the caller can emit a single log-overflow event
// (SPEC_FULL.md §5) instead of one per line.
type StreamBuffer struct {
	mu         sync.Mutex
	budget     int
	used       int
	records    []Record
	overflowed bool
}

// NewStreamBuffer returns a StreamBuffer with the given byte budget.
// A budget of 0 uses DefaultStreamBudget.
func NewStreamBuffer(budget int) *StreamBuffer {
	if budget <= 0 {
		budget = DefaultStreamBudget
	}
	return &StreamBuffer{budget: budget}
}

// Push appends a line, evicting the oldest buffered lines if necessary
// to stay within budget. It returns true the first time this push
// causes an eviction (the caller should emit log-overflow exactly once
// per overflow episode, not once per dropped line).
func (b *StreamBuffer) Push(text string, at time.Time) (overflowedNow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cost := len(text)
	b.records = append(b.records, Record{Text: text, At: at})
	b.used += cost

	dropped := false
	for b.used > b.budget && len(b.records) > 0 {
		b.used -= len(b.records[0].Text)
		b.records = b.records[1:]
		dropped = true
	}
	if dropped && !b.overflowed {
		b.overflowed = true
		return true
	}
	if !dropped {
		b.overflowed = false
	}
	return false
}

// Snapshot returns a copy of the currently buffered records, oldest
// first.
func (b *StreamBuffer) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}
