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

// Package cluster fans one ProcessSpec with instances > 1 out to N
// Supervisors and, when configured, fronts them with a load-balancing
// listener (SPEC_FULL.md §4.F). The coordinator never touches a
// replica's state directly: it only ever reads the last Status each
// Supervisor published, so dispatch decisions can never race a
// Supervisor's own transition.
package cluster

import (
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/pup-org/pup"
	"github.com/pup-org/pup/supervisor"
)

// replica bundles a Supervisor with the coordinator's most recently
// published view of it and, for HTTP/TCP fan-out, the loopback port it
// was told to bind via PUP_CLUSTER_PORT.
type replica struct {
	sup    *supervisor.Supervisor
	port   int
	status atomic.Value // pup.Status
}

func (r *replica) setStatus(st pup.Status) { r.status.Store(st) }

func (r *replica) running() bool {
	v := r.status.Load()
	if v == nil {
		return false
	}
	return v.(pup.Status).State == pup.Running
}

// Config parameterises a Cluster.
type Config struct {
	ID      string
	Spec    pup.ProcessSpec
	IPCPath string
	Logger  supervisor.Logger
	Starter supervisor.Starter // nil uses the real OS child runner; tests inject a fake

	Decorate bool
	Colors   bool

	// Router, if non-nil and Spec.Path is set, is the shared per-Plan
	// mux.Router the coordinator registers its path prefix on.
	Router *mux.Router
}

// Cluster owns N Supervisors presenting one logical process.
type Cluster struct {
	id       string
	spec     pup.ProcessSpec
	replicas []*replica
	rr       uint64 // round-robin cursor

	mu      sync.Mutex
	connCnt map[*replica]int // for least-connections

	listener net.Listener // raw TCP fan-out, when Spec.Path == ""
}

// New constructs the Cluster's Supervisors. It does not start them;
// call Run.
func New(cfg Config) *Cluster {
	n := cfg.Spec.Instances
	if n < 1 {
		n = 1
	}
	c := &Cluster{
		id:      cfg.ID,
		spec:    cfg.Spec,
		connCnt: make(map[*replica]int, n),
	}

	for i := 0; i < n; i++ {
		idx := i
		size := n
		port := allocatePort()
		r := &replica{port: port}
		spec := cfg.Spec
		if spec.Env == nil {
			spec.Env = map[string]string{}
		} else {
			env := make(map[string]string, len(spec.Env)+1)
			for k, v := range spec.Env {
				env[k] = v
			}
			spec.Env = env
		}
		spec.Env["PUP_CLUSTER_PORT"] = strconv.Itoa(port)

		replicaID := cfg.ID + "-" + strconv.Itoa(idx)
		r.sup = supervisor.New(supervisor.Config{
			ID:            replicaID,
			Spec:          spec,
			Instance:      &idx,
			Size:          &size,
			IPCPath:       cfg.IPCPath,
			Logger:        cfg.Logger,
			Starter:       cfg.Starter,
			Decorate:      cfg.Decorate,
			Colors:        cfg.Colors,
			OnStateChange: r.setStatus,
		})
		c.replicas = append(c.replicas, r)
	}

	if cfg.Spec.Path != "" && cfg.Router != nil {
		cfg.Router.PathPrefix(cfg.Spec.Path).Handler(c.httpHandler())
	}

	return c
}

// allocatePort asks the kernel for a free loopback port and releases it
// immediately; good enough for handing replicas a port to bind before
// they start (a small, accepted race if something else grabs it first).
func allocatePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// Run starts every replica's run loop and, if configured for raw TCP
// fan-out, the listener's accept loop. It returns once all replicas
// have started (not once they're RUNNING).
func (c *Cluster) Run() {
	for _, r := range c.replicas {
		go r.sup.Run()
	}
	if c.spec.Path == "" && c.listener != nil {
		go c.serveTCP()
	}
}

// Autostart fires the autostart trigger on every replica, matching the
// per-Supervisor semantics of a non-clustered process.
func (c *Cluster) Autostart() {
	for _, r := range c.replicas {
		r.sup.Autostart()
	}
}

// CronFire and WatchFire broadcast the corresponding trigger to every
// replica: a cluster shares one schedule and one watch list across all
// of its instances.
func (c *Cluster) CronFire() {
	for _, r := range c.replicas {
		r.sup.CronFire()
	}
}

func (c *Cluster) WatchFire() {
	for _, r := range c.replicas {
		r.sup.WatchFire()
	}
}

// Shutdown stops every replica and, if present, the fan-out listener.
func (c *Cluster) Shutdown() {
	if c.listener != nil {
		c.listener.Close()
	}
	var wg sync.WaitGroup
	for _, r := range c.replicas {
		wg.Add(1)
		go func(r *replica) {
			defer wg.Done()
			r.sup.Shutdown()
		}(r)
	}
	wg.Wait()
}

// Statuses returns every replica's last published Status, in instance
// order.
func (c *Cluster) Statuses() []pup.Status {
	out := make([]pup.Status, 0, len(c.replicas))
	for _, r := range c.replicas {
		v := r.status.Load()
		if v == nil {
			out = append(out, pup.Status{ID: r.sup.ID(), State: pup.Created})
			continue
		}
		out = append(out, v.(pup.Status))
	}
	return out
}

// Find returns the Supervisor for a replica id ("{id}-{instance}"), or
// false if this Cluster owns no such replica.
func (c *Cluster) Find(id string) (*supervisor.Supervisor, bool) {
	for _, r := range c.replicas {
		if r.sup.ID() == id {
			return r.sup, true
		}
	}
	return nil, false
}

// pick selects a RUNNING replica per the configured LBPolicy. It
// returns nil if none are RUNNING.
func (c *Cluster) pick() *replica {
	var running []*replica
	for _, r := range c.replicas {
		if r.running() {
			running = append(running, r)
		}
	}
	if len(running) == 0 {
		return nil
	}

	if c.spec.LBPolicy == pup.LBLeastConnection {
		c.mu.Lock()
		defer c.mu.Unlock()
		best := running[0]
		for _, r := range running[1:] {
			if c.connCnt[r] < c.connCnt[best] {
				best = r
			}
		}
		return best
	}

	n := atomic.AddUint64(&c.rr, 1)
	return running[n%uint64(len(running))]
}

// httpHandler returns the reverse-proxying http.Handler registered
// under Spec.Path on the shared router.
func (c *Cluster) httpHandler() http.Handler {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			// target is injected into the request context by ServeHTTP
			// below via req.URL; nothing further to do here.
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := c.pick()
		if target == nil {
			http.Error(w, "no replica available", http.StatusServiceUnavailable)
			return
		}
		c.mu.Lock()
		c.connCnt[target]++
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.connCnt[target]--
			c.mu.Unlock()
		}()

		r.URL.Scheme = "http"
		r.URL.Host = "127.0.0.1:" + strconv.Itoa(target.port)
		proxy.ServeHTTP(w, r)
	})
}

// ListenTCP opens the raw fan-out listener used when Spec.Path is empty
// but the Plan still wants connections spread across replicas (e.g. a
// non-HTTP protocol). addr is a Plan-level cluster listen address.
func (c *Cluster) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	c.listener = ln
	return nil
}

func (c *Cluster) serveTCP() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		target := c.pick()
		if target == nil {
			conn.Close()
			continue
		}
		go c.proxyTCP(conn, target)
	}
}

func (c *Cluster) proxyTCP(conn net.Conn, target *replica) {
	defer conn.Close()
	up, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(target.port))
	if err != nil {
		return
	}
	defer up.Close()

	c.mu.Lock()
	c.connCnt[target]++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.connCnt[target]--
		c.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); io.Copy(up, conn) }()
	go func() { defer wg.Done(); io.Copy(conn, up) }()
	wg.Wait()
}
