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
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pup-org/pup"
)

// busLock is the advisory lock file (component K, SPEC_FULL.md §4.G)
// that keeps a second core in the same working directory from stealing
// the IPC socket out from under a running one.
type busLock struct {
	path string
	file *os.File
}

// acquireLock takes an exclusive, non-blocking flock on
// "<ipc-dir>/pup.lock". It returns pup.ErrBusConflict if another
// process already holds it.
func acquireLock(ipcPath string) (*busLock, error) {
	path := filepath.Join(filepath.Dir(ipcPath), "pup.lock")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("bus lock: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("bus lock: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, pup.ErrBusConflict
		}
		return nil, fmt.Errorf("bus lock: %w", err)
	}

	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Sync()

	return &busLock{path: path, file: f}, nil
}

func (l *busLock) release() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
}
