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

// Package core wires the Plan into a running system: one Supervisor or
// Cluster per ProcessSpec, the cron and watch triggers feeding them, the
// IPC bus, and the bus-conflict lock (SPEC_FULL.md §4.G). It is the
// single package that imports supervisor, cluster, and ipc together, so that the pure-data pup package never needs to know about
// any of them.
package core

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/cluster"
	"github.com/pup-org/pup/corelog"
	"github.com/pup-org/pup/ipc"
	"github.com/pup-org/pup/supervisor"
	"github.com/pup-org/pup/watch"
)

// Logger is the minimal logging surface Core and its helpers need.
type Logger interface {
	Printf(format string, v ...interface{})
}

// target is anything Core can route an operator command to: a lone
// Supervisor or one replica inside a Cluster.
type target interface {
	Status() pup.Status
	ManualStart()
	ManualStop()
	ManualRestart()
	Block()
	Unblock()
}

// Core is the root controller: Pup core from spec.md §4.G.
type Core struct {
	plan *pup.Plan
	lock *busLock
	mlog *corelog.MultiLog
	log  Logger
	bus  *ipc.Bus

	router *mux.Router
	httpLn *http.Server

	sups     map[string]*supervisor.Supervisor
	clusters map[string]*cluster.Cluster

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	watchers []*watch.Watcher

	mu           sync.Mutex
	shuttingDown bool
	forceKillCh  chan struct{}
}

// New acquires the bus-conflict lock and constructs one Supervisor or
// Cluster per ProcessSpec, but starts none of them and does not open the
// IPC bus; call Start for that. New returns pup.ErrBusConflict,
// unwrapped, if another core already owns this Plan's IPC path — callers
// map that to exit code 2.
func New(plan *pup.Plan) (*Core, error) {
	lock, err := acquireLock(plan.IPCPath)
	if err != nil {
		return nil, err
	}

	mlog := corelog.NewMultiLog()
	mlog.Add(log.New(os.Stdout, "", log.LstdFlags))
	if plan.Logger.Stdout != "" && plan.Logger.Stdout != "-" {
		if f, err := os.OpenFile(plan.Logger.Stdout, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			mlog.Add(log.New(f, "", log.LstdFlags))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Core{
		plan:        plan,
		lock:        lock,
		mlog:        mlog,
		log:         mlog.Logger(),
		router:      mux.NewRouter(),
		sups:        make(map[string]*supervisor.Supervisor),
		clusters:    make(map[string]*cluster.Cluster),
		ctx:         ctx,
		cancel:      cancel,
		forceKillCh: make(chan struct{}, 1),
	}

	for _, spec := range plan.Processes {
		if spec.Instances > 1 {
			cl := cluster.New(cluster.Config{
				ID:       spec.ID,
				Spec:     spec,
				IPCPath:  plan.IPCPath,
				Logger:   c.log,
				Router:   c.router,
				Decorate: plan.Logger.Decorate,
				Colors:   plan.Logger.Colors,
			})
			c.clusters[spec.ID] = cl
		} else {
			sup := supervisor.New(supervisor.Config{
				ID:       spec.ID,
				Spec:     spec,
				IPCPath:  plan.IPCPath,
				Logger:   c.log,
				Decorate: plan.Logger.Decorate,
				Colors:   plan.Logger.Colors,
			})
			c.sups[spec.ID] = sup
		}
	}

	return c, nil
}

// Start launches every Supervisor/Cluster, fires autostart, arms cron
// and watch triggers, and opens the IPC bus. It returns once everything
// is running; shutdown happens via Shutdown/Terminate.
func (c *Core) Start() error {
	for _, sup := range c.sups {
		c.wg.Add(1)
		go func(s *supervisor.Supervisor) { defer c.wg.Done(); s.Run() }(sup)
	}

	// A cluster's own Run starts its TCP accept loop only if ListenTCP
	// already gave it a listener, so the listener must exist before Run.
	needsHTTP := false
	for _, spec := range c.plan.Processes {
		if spec.Path != "" {
			needsHTTP = true
		} else if spec.Instances > 1 && c.plan.ClusterListen != "" {
			if err := c.clusters[spec.ID].ListenTCP(c.plan.ClusterListen); err != nil {
				c.log.Printf("cluster %s: tcp fan-out: %v", spec.ID, err)
			}
		}
	}
	for _, cl := range c.clusters {
		cl.Run()
	}
	if needsHTTP && c.plan.ClusterListen != "" {
		c.httpLn = &http.Server{Addr: c.plan.ClusterListen, Handler: c.router}
		go func() {
			if err := c.httpLn.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.log.Printf("cluster http front end: %v", err)
			}
		}()
	}

	for _, spec := range c.plan.Processes {
		recv := c.receiverFor(spec.ID)
		if spec.Autostart {
			recv.Autostart()
		}
		if spec.Cron != "" {
			go runCronLoop(c.ctx, spec.Cron, recv, c.log)
		}
		if len(spec.Watch) > 0 {
			w, err := runWatchLoop(c.ctx, spec.ID, spec.Watch, c.log)
			if err != nil {
				c.log.Printf("%v", err)
			} else {
				c.mu.Lock()
				c.watchers = append(c.watchers, w)
				c.mu.Unlock()
				go forwardWatchEvents(c.ctx, w, recv)
			}
		}
	}

	bus, err := ipc.Listen(c.plan.IPCPath, c)
	if err != nil {
		return fmt.Errorf("ipc: %w", err)
	}
	c.bus = bus
	go bus.Serve()

	return nil
}

// broadcaster is implemented by both *supervisor.Supervisor (trivially)
// and *cluster.Cluster, letting Start treat autostart/cron/watch the
// same way regardless of instance count.
type broadcaster interface {
	trigReceiver
	Autostart()
}

type supBroadcaster struct{ s *supervisor.Supervisor }

func (b supBroadcaster) Autostart() { b.s.Autostart() }
func (b supBroadcaster) CronFire()  { b.s.CronFire() }
func (b supBroadcaster) WatchFire() { b.s.WatchFire() }

func (c *Core) receiverFor(id string) broadcaster {
	if sup, ok := c.sups[id]; ok {
		return supBroadcaster{sup}
	}
	return c.clusters[id]
}

// findTarget resolves an operator-supplied id to either a standalone
// Supervisor or one replica within a Cluster. A bare cluster id (no
// "-{instance}" suffix) addresses replica 0.
func (c *Core) findTarget(id string) (target, bool) {
	if sup, ok := c.sups[id]; ok {
		return sup, true
	}
	if cl, ok := c.clusters[id]; ok {
		return cl.Find(id + "-0")
	}
	for _, cl := range c.clusters {
		if sup, ok := cl.Find(id); ok {
			return sup, true
		}
	}
	return nil, false
}

// Statuses returns every Supervisor's current snapshot, standalone and
// clustered alike.
func (c *Core) Statuses() []pup.Status {
	var out []pup.Status
	for _, sup := range c.sups {
		out = append(out, sup.Status())
	}
	for _, cl := range c.clusters {
		out = append(out, cl.Statuses()...)
	}
	return out
}

// Handle implements ipc.Handler.
func (c *Core) Handle(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		return ipc.Response{OK: true, Statuses: c.Statuses()}
	case ipc.CmdTerminate:
		go c.Terminate()
		return ipc.Response{OK: true}
	}

	t, ok := c.findTarget(req.ID)
	if !ok {
		return ipc.Response{OK: false, Error: pup.ErrNotFound.Error()}
	}
	switch req.Command {
	case ipc.CmdStart:
		t.ManualStart()
	case ipc.CmdStop:
		t.ManualStop()
	case ipc.CmdRestart:
		t.ManualRestart()
	case ipc.CmdBlock:
		t.Block()
	case ipc.CmdUnblock:
		t.Unblock()
	default:
		return ipc.Response{OK: false, Error: "unknown command"}
	}
	return ipc.Response{OK: true, Statuses: []pup.Status{t.Status()}}
}

// Terminate implements the global shutdown from spec.md §4.G: it
// broadcasts STOPPING to every Supervisor and waits for all of them to
// finish stopping. Each Supervisor escalates to SIGKILL on its own
// terminateTimeoutMs schedule; Terminate itself sends no signal. The
// wait is bounded by the largest terminateTimeoutMs in the Plan or 30s,
// whichever is greater. A second call while shutdown is already underway
// only makes the first call stop waiting (via forceKillCh) and return at
// once; it kills no child itself.
func (c *Core) Terminate() {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		select {
		case c.forceKillCh <- struct{}{}:
		default:
		}
		return
	}
	c.shuttingDown = true
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Close()
	}
	if c.httpLn != nil {
		c.httpLn.Close()
	}
	c.cancel()
	c.mu.Lock()
	for _, w := range c.watchers {
		w.Close()
	}
	c.mu.Unlock()

	maxTimeout := 30 * time.Second
	for _, spec := range c.plan.Processes {
		if t := spec.TerminateTimeout(); t > maxTimeout {
			maxTimeout = t
		}
	}

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, sup := range c.sups {
			wg.Add(1)
			go func(s *supervisor.Supervisor) { defer wg.Done(); s.Shutdown() }(sup)
		}
		for _, cl := range c.clusters {
			wg.Add(1)
			go func(cl *cluster.Cluster) { defer wg.Done(); cl.Shutdown() }(cl)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(maxTimeout):
	case <-c.forceKillCh:
	}

	c.lock.release()
}
