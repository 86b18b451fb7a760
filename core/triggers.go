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

package core

import (
	"context"
	"time"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/cron"
	"github.com/pup-org/pup/watch"
)

// trigReceiver is whatever a cron or watch goroutine feeds: either a
// lone Supervisor or a Cluster broadcasting to all of its replicas.
type trigReceiver interface {
	CronFire()
	WatchFire()
}

// runCronLoop sleeps until each successive fire instant of expr and
// calls recv.CronFire, until ctx is cancelled. next(expr, from) is pure
// (package cron); this loop is the thin, timing-dependent wrapper
// SPEC_FULL.md §9 calls for.
func runCronLoop(ctx context.Context, expr string, recv trigReceiver, log Logger) {
	e, err := cron.Parse(expr)
	if err != nil {
		log.Printf("cron: %v", err)
		return
	}
	from := time.Now()
	for {
		next, ok := cron.Next(e, from)
		if !ok {
			log.Printf("cron %q: unsatisfiable, disabling", expr)
			return
		}
		timer := time.NewTimer(next.Sub(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			recv.CronFire()
			from = next
		}
	}
}

// runWatchLoop opens a Watcher over paths; forwardWatchEvents then feeds
// every debounced ChangeEvent to recv.WatchFire until ctx is cancelled.
// A failure to open the watch is returned as a *pup.WatchError, which the
// caller logs; it is non-fatal to the core.
func runWatchLoop(ctx context.Context, id string, paths []string, log Logger) (*watch.Watcher, error) {
	w, err := watch.New(paths, watch.DefaultDebounce)
	if err != nil {
		return nil, &pup.WatchError{ID: id, Err: err}
	}
	return w, nil
}

func forwardWatchEvents(ctx context.Context, w *watch.Watcher, recv trigReceiver) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.Events():
			if !ok {
				return
			}
			recv.WatchFire()
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			_ = err // runtime watch errors are discarded; only open-time failures surface, as a WatchError
		}
	}
}
