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

// Package watch observes a set of filesystem paths and emits debounced
// ChangeEvents. Debouncing is per-Watcher (i.e. per-Supervisor), not
// per-path: any event on any watched path resets the single debounce
// timer, and one coalesced event fires after the quiet period.
package watch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when a Watcher is constructed with a zero
// debounce duration.
const DefaultDebounce = 500 * time.Millisecond

// ChangeEvent is the single coalesced notification a Watcher delivers
// after a burst of filesystem activity on its watched paths settles.
type ChangeEvent struct {
	Paths []string // the underlying paths that changed since the last event
	At    time.Time
}

// Watcher watches a fixed set of paths and produces a channel of
// debounced ChangeEvents. A path ending in "/..." is watched recursively;
// anything else is watched non-recursively (a directory watch only sees
// direct children).
type Watcher struct {
	fsw      *fsnotify.Watcher
	events   chan ChangeEvent
	errs     chan error
	debounce time.Duration
	done     chan struct{}
}

// New creates a Watcher over paths. debounce of 0 uses DefaultDebounce.
// It fails with a wrapped error (the caller turns this into a
// SPEC_FULL.md WatchError) if any path cannot be opened for watching.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	for _, p := range paths {
		target := strings.TrimSuffix(p, "/...")
		if err := addPath(fsw, target, strings.HasSuffix(p, "/...")); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: add %s: %w", p, err)
		}
	}

	w := &Watcher{
		fsw:      fsw,
		events:   make(chan ChangeEvent, 1),
		errs:     make(chan error, 1),
		debounce: debounce,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func addPath(fsw *fsnotify.Watcher, path string, recursive bool) error {
	if !recursive {
		return fsw.Add(path)
	}
	return addRecursive(fsw, path)
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	// A minimal recursive walk: fsnotify itself only watches one level,
	// so a "/..." path is expanded to every directory beneath it at
	// watch-setup time. New subdirectories created later are not picked
	// up automatically; this mirrors the original source's static watch
	// list rather than a live directory tree mirror.
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root || d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
}

// Events returns the channel of coalesced change events. It is closed
// when the Watcher is closed.
func (w *Watcher) Events() <-chan ChangeEvent { return w.events }

// Errors returns non-fatal errors encountered while watching (e.g. a
// watched file being removed out from under the watch).
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the Watcher and releases its underlying OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.errs)

	var timer *time.Timer
	var timerC <-chan time.Time
	var pending []string
	seen := map[string]bool{}

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !seen[ev.Name] {
				seen[ev.Name] = true
				pending = append(pending, ev.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			paths := pending
			pending = nil
			seen = map[string]bool{}
			select {
			case w.events <- ChangeEvent{Paths: paths, At: time.Now()}:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}
