// Package dispatch maps opaque RPC handles onto internal/session objects
// and exposes one method per opcode in spec.md §6's RPC surface. It is
// almost entirely plumbing: every handler resolves a Handle to a typed
// session object, calls straight through, and translates the result into
// protoerr's RPC-level error codes (spec.md §7 "Propagation"). Neither
// this package nor internal/session talks to a transport directly —
// internal/transport frames calls against the methods here.
package dispatch

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Handle is an opaque RPC-facing object handle, distinct from
// store.Handle: it names a live SyncContext or FtContext in the
// dispatcher's registry, not a row in the store (spec.md §3
// "Lifecycles... SyncContext/FtContext are created on explicit RPCs,
// owned by the session's handle table").
type Handle uint64

// registry is a mutex-guarded handle table, generalized from
// internal/driveops/session_store.go's disk-backed keyed store to an
// in-memory one: dispatch handles live only as long as the process that
// minted them (spec.md §3 "Lifecycles").
type registry struct {
	mu      sync.Mutex
	objects map[Handle]any
	next    atomic.Uint64
}

func newRegistry() *registry {
	return &registry{objects: make(map[Handle]any)}
}

func (r *registry) put(obj any) Handle {
	h := Handle(r.next.Add(1))

	r.mu.Lock()
	r.objects[h] = obj
	r.mu.Unlock()

	return h
}

func (r *registry) get(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[h]

	return obj, ok
}

func (r *registry) delete(h Handle) {
	r.mu.Lock()
	delete(r.objects, h)
	r.mu.Unlock()
}

// Dispatcher owns the handle table and the shared replica allocator for
// one store. A deployment constructs one Dispatcher per store and routes
// every RPC for every session through it.
type Dispatcher struct {
	st        store.Store
	reg       fxid.ReplicaRegistry
	resolver  propstream.Resolver
	logger    *slog.Logger
	allocator *session.ReplicaAllocator

	handles *registry
}

// New returns a Dispatcher over st, using reg to resolve replica GUIDs
// and resolver to resolve named properties (spec.md §6 "Store interface
// consumed"). Both reg and resolver are commonly the same *store.Store
// value, satisfied structurally.
func New(st store.Store, reg fxid.ReplicaRegistry, resolver propstream.Resolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		st:        st,
		reg:       reg,
		resolver:  resolver,
		logger:    logger,
		allocator: session.NewReplicaAllocator(st, reg),
		handles:   newRegistry(),
	}
}

// Close releases handle h, whatever kind of session object it names. Not
// itself an opcode (spec.md §6 has no explicit "close"); a transport
// calls it when a client disconnects or a session object is spent.
func (d *Dispatcher) Close(h Handle) {
	d.handles.delete(h)
}

func (d *Dispatcher) syncContext(h Handle) (*session.SyncContext, error) {
	obj, ok := d.handles.get(h)
	if !ok {
		return nil, protoerr.New("", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	sc, ok := obj.(*session.SyncContext)
	if !ok {
		return nil, protoerr.New("", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	return sc, nil
}

func (d *Dispatcher) ftContext(h Handle) (*session.FtContext, error) {
	obj, ok := d.handles.get(h)
	if !ok {
		return nil, protoerr.New("", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	fc, ok := obj.(*session.FtContext)
	if !ok {
		return nil, protoerr.New("", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	return fc, nil
}

// exists reports whether h names any live object, used by opcodes whose
// precondition is merely "any handle" (spec.md §6 GetLocalReplicaIds,
// SetLocalReplicaMidsetDeleted).
func (d *Dispatcher) exists(h Handle) bool {
	_, ok := d.handles.get(h)

	return ok
}
