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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package child

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestStartExitCode(t *testing.T) {
	h, err := Start([]string{"/bin/sh", "-c", "exit 7"}, ".", os.Environ())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := h.Wait()
	if status.Code != 7 {
		t.Errorf("Code = %d, want 7", status.Code)
	}
	if status.Signal != "" {
		t.Errorf("Signal = %q, want empty", status.Signal)
	}
}

func TestStartCapturesStdout(t *testing.T) {
	h, err := Start([]string{"/bin/sh", "-c", "echo hello; echo world"}, ".", os.Environ())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	var lines []string
	for l := range h.Stdout() {
		lines = append(lines, l.Text)
	}
	h.Wait()
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("lines = %v, want [hello world]", lines)
	}
}

func TestSignalTerminatesChild(t *testing.T) {
	h, err := Start([]string{"/bin/sleep", "60"}, ".", os.Environ())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	status := h.Wait()
	if status.Signal == "" && status.Code == 0 {
		t.Errorf("expected termination to be observable, got %+v", status)
	}
}

func TestSignalAfterExitIsNoOp(t *testing.T) {
	h, err := Start([]string{"/bin/true"}, ".", os.Environ())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.Wait()
	if err := h.Signal(syscall.SIGTERM); err != nil {
		t.Errorf("Signal after exit should be a no-op, got %v", err)
	}
}

func TestSpawnErrorOnMissingExecutable(t *testing.T) {
	_, err := Start([]string{"/no/such/executable-xyz"}, ".", os.Environ())
	if err == nil {
		t.Fatal("expected a SpawnError")
	}
	if _, ok := err.(*SpawnError); !ok {
		t.Errorf("err = %T, want *SpawnError", err)
	}
}

func TestWaitIsIdempotent(t *testing.T) {
	h, err := Start([]string{"/bin/true"}, ".", os.Environ())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s1 := h.Wait()
	time.Sleep(10 * time.Millisecond)
	s2 := h.Wait()
	if s1 != s2 {
		t.Errorf("Wait returned different results: %+v vs %+v", s1, s2)
	}
}
