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

// Command pupctl is the operator-facing client for a running pupd: it
// dials the UNIX control socket, sends one request, prints the result,
// and exits.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/config"
	"github.com/pup-org/pup/ipc"
)

var configPath = "pup.json"

func main() {
	flag.StringVar(&configPath, "c", configPath, "configuration file (used to locate the bus socket)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	sockPath, err := socketPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pupctl: %v\n", err)
		os.Exit(1)
	}

	client, err := ipc.Dial(sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pupctl: cannot reach pupd at %s: %v\n", sockPath, err)
		os.Exit(1)
	}
	defer client.Close()

	cmd := args[0]
	rest := args[1:]

	req, err := buildRequest(cmd, rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pupctl: %v\n", err)
		usage()
		os.Exit(2)
	}

	resp, err := client.Call(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pupctl: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "pupctl: %s\n", resp.Error)
		os.Exit(1)
	}

	if len(resp.Statuses) > 0 {
		printStatuses(resp.Statuses)
	}
}

func buildRequest(cmd string, rest []string) (ipc.Request, error) {
	switch cmd {
	case "status":
		return ipc.Request{Command: ipc.CmdStatus}, nil
	case "terminate":
		return ipc.Request{Command: ipc.CmdTerminate}, nil
	case "start", "stop", "restart", "block", "unblock":
		if len(rest) != 1 {
			return ipc.Request{}, fmt.Errorf("%s requires exactly one process id", cmd)
		}
		return ipc.Request{Command: ipc.CommandName(cmd), ID: rest[0]}, nil
	default:
		return ipc.Request{}, fmt.Errorf("unknown command %q", cmd)
	}
}

func printStatuses(statuses []pup.Status) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tPID\tRESTARTS\tBLOCKED")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%v\n", s.ID, s.State, s.Pid, s.Restarts, s.Blocked)
	}
	tw.Flush()
}

func socketPath() (string, error) {
	return config.SocketPathFor(configPath)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pupctl [-c pup.json] <status|start|stop|restart|block|unblock|terminate> [id]")
}
