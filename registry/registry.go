// Package registry implements the uid -> Connection lookup spec.md §4.6
// describes: a mutex-guarded map keyed by a monotonically increasing uid,
// used by the upper layer to address a Connection from a cross-thread
// message (e.g. dispatching a received MSG_PEER_REPLY to the grid
// Connection that owns the addressed peer).
//
// The registry never owns what it stores; Register/Unregister only manage
// the mapping. This mirrors the mutex-guarded map + atomic counter pattern
// the example pack's net/mocknet.Internet uses for its listener table.
package registry

import (
	"sync"
	"sync/atomic"
)

// Registry maps a uid to an arbitrary value, typically a *conn.Connection.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	next uint64
	m    map[uint64]interface{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		m: map[uint64]interface{}{},
	}
}

// NextUID allocates a fresh uid. UIDs are never reused within the
// lifetime of a Registry.
func (r *Registry) NextUID() uint64 {
	return atomic.AddUint64(&r.next, 1)
}

// Register adds v under uid, allocated with NextUID. It overwrites any
// prior entry for that uid, which should never happen in practice since
// uids are never reused.
func (r *Registry) Register(uid uint64, v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[uid] = v
}

// Lookup returns the value registered under uid, or nil, false if none.
func (r *Registry) Lookup(uid uint64) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.m[uid]
	return v, ok
}

// Unregister removes uid from the registry. It is a no-op if uid is not
// present.
func (r *Registry) Unregister(uid uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, uid)
}

// Len reports the number of entries currently registered. Intended for
// diagnostics; racy with concurrent Register/Unregister by design.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
