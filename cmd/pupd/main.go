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

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/config"
	"github.com/pup-org/pup/core"
)

var configPath = "pup.json"

func main() {
	flag.StringVar(&configPath, "c", configPath, "configuration file")
	flag.Parse()

	plan, err := config.Load(configPath)
	if err != nil {
		var cerr *pup.ConfigError
		if errors.As(err, &cerr) {
			log.Printf("config: %v", cerr)
			os.Exit(1)
		}
		log.Printf("config: %v", err)
		os.Exit(1)
	}

	c, err := core.New(plan)
	if err != nil {
		if errors.Is(err, pup.ErrBusConflict) {
			fmt.Fprintf(os.Stderr, "pupd: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "pupd: %v\n", err)
		os.Exit(3)
	}

	if err := c.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "pupd: %v\n", err)
		os.Exit(3)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-sigs

	done := make(chan struct{})
	go func() { c.Terminate(); close(done) }()

	for {
		select {
		case <-done:
			os.Exit(0)
		case <-sigs:
			// A second signal while shutting down races the configured
			// terminateTimeoutMs escalation; Terminate's forceKillCh
			// short-circuits the wait.
			go c.Terminate()
		}
	}
}
