package registry

import (
	"context"
	"sync"
)

// Service identifies one of the managed units.
type Service string

const (
	ServiceNode    Service = "node"
	ServiceMiner   Service = "miner"
	ServiceWallet  Service = "wallet"
	ServiceGateway Service = "gateway"
)

// All returns the service catalog in dependency order (node first).
func All() []Service {
	return []Service{ServiceNode, ServiceMiner, ServiceWallet, ServiceGateway}
}

// Valid reports whether s names a known service.
func (s Service) Valid() bool {
	switch s {
	case ServiceNode, ServiceMiner, ServiceWallet, ServiceGateway:
		return true
	}
	return false
}

// RequiresNode reports whether the service may only start while the node runs.
// The check happens at start time only; a node death afterwards does not stop
// dependents.
func (s Service) RequiresNode() bool {
	return s == ServiceMiner || s == ServiceWallet
}

// Record is the registry's view of one service. PID is set for spawned OS
// processes; Shutdown is set for in-process servers (the gateway). Config
// holds the service-specific configuration captured at the last successful
// start so later operations can locate resources without re-deriving it.
type Record struct {
	Running  bool
	PID      int
	Shutdown context.CancelFunc
	Config   any
}

// Registry is the single piece of mutable shared state for the control
// plane. Every record mutation happens under one exclusive lock with a
// short critical section; callers must never perform process or network
// I/O through the closure helpers.
type Registry struct {
	mu      sync.Mutex
	records map[Service]*record
}

type record struct {
	Record
	starting bool
	gen      uint64
}

func New() *Registry {
	r := &Registry{records: make(map[Service]*record)}
	for _, s := range All() {
		r.records[s] = &record{}
	}
	return r
}

// Get returns a copy of the service's record.
func (r *Registry) Get(s Service) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[s].Record
}

// Running reports whether the service is currently considered active.
// A start in flight (between BeginStart and CommitStart) counts as active
// so that concurrent starts cannot both pass the precondition check.
func (r *Registry) Running(s Service) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	return rec.Running || rec.starting
}

// BeginStart atomically checks the start preconditions for s and claims the
// record. It returns (false, _) when s already runs or has a start in
// flight, and (_, false) when s requires the node and the node is not
// running. On success the record is marked starting; the caller must follow
// up with CommitStart or AbortStart.
func (r *Registry) BeginStart(s Service) (ok bool, depOK bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	if rec.Running || rec.starting {
		return false, true
	}
	if s.RequiresNode() {
		node := r.records[ServiceNode]
		if !node.Running {
			return true, false
		}
	}
	rec.starting = true
	return true, true
}

// CommitStart records a successful spawn. The previous config snapshot is
// replaced; PID-based and server-based services pass pid or cancel
// respectively. The returned generation identifies this incarnation of the
// record; ClearServer requires it.
func (r *Registry) CommitStart(s Service, pid int, cancel context.CancelFunc, cfg any) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	rec.starting = false
	rec.Running = true
	rec.PID = pid
	rec.Shutdown = cancel
	rec.Config = cfg
	rec.gen++
	return rec.gen
}

// AbortStart releases the claim taken by BeginStart after a failed spawn.
func (r *Registry) AbortStart(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s].starting = false
}

// EndRunning clears the running state synchronously (explicit stop path).
// It returns the record as it was, and false when the service was not
// running. The config snapshot is retained until the next successful start.
func (r *Registry) EndRunning(s Service) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	if !rec.Running {
		return Record{}, false
	}
	prev := rec.Record
	rec.Running = false
	rec.PID = 0
	rec.Shutdown = nil
	return prev, true
}

// ClearExited clears the record only if it still refers to the given PID.
// This is the monitor task's path: a stale monitor from a previous run must
// not clobber a newer run's record. It reports whether the record changed.
func (r *Registry) ClearExited(s Service, pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	if !rec.Running || rec.PID != pid {
		return false
	}
	rec.Running = false
	rec.PID = 0
	return true
}

// ClearServer clears a gateway-style record, but only while it still
// belongs to the incarnation identified by gen. This is the serve
// goroutine's path: a goroutine still draining connections from a stopped
// incarnation must not clobber a newer one's record, exactly as
// ClearExited guards with the PID. It reports whether the record changed.
func (r *Registry) ClearServer(s Service, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[s]
	if rec.gen != gen {
		return false
	}
	rec.Running = false
	rec.Shutdown = nil
	return true
}

// Snapshot copies every record. Shutdown handles are omitted; they are an
// implementation detail of the stop path.
func (r *Registry) Snapshot() map[Service]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Service]Record, len(r.records))
	for s, rec := range r.records {
		c := rec.Record
		c.Shutdown = nil
		out[s] = c
	}
	return out
}
