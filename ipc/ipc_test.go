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

package ipc

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/pup-org/pup"
)

type echoHandler struct{}

func (echoHandler) Handle(req Request) Response {
	if req.Command == CmdStatus {
		return Response{OK: true, Statuses: []pup.Status{{ID: req.ID, State: pup.Running}}}
	}
	return Response{OK: true}
}

func TestListenServeAndCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pup.sock")

	bus, err := Listen(path, echoHandler{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer bus.Close()
	go bus.Serve()

	client, err := Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Call(Request{Command: CmdStatus, ID: "web"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.OK || len(resp.Statuses) != 1 || resp.Statuses[0].ID != "web" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := mustMarshal(Request{Command: CmdStop, ID: "x"})
	r, w := io.Pipe()
	go func() {
		writeFrame(w, payload)
		w.Close()
	}()
	got, err := readFrame(r)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("frame roundtrip mismatch: got %s want %s", got, payload)
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		var hdr [4]byte
		hdr[0], hdr[1], hdr[2], hdr[3] = 0xff, 0xff, 0xff, 0xff
		w.Write(hdr[:])
		w.Close()
	}()
	if _, err := readFrame(r); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}
