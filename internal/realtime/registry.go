// Package realtime tracks live client connections per identity and routes
// dispatch messages to them.
package realtime

import (
	"context"
	"errors"
	"sync"

	"socialnet/internal/session"
)

// ErrStaleConnection is returned by Conn.Send once the underlying socket is gone.
var ErrStaleConnection = errors.New("stale connection")

type Conn interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
}

type entry struct {
	mu    sync.Mutex
	conns map[string]Conn
	dead  bool
}

// Registry maps an identity to its open connections. Operations on different
// identities never contend; operations on the same identity are serialized
// by that identity's entry lock.
type Registry struct {
	entries sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds conn under identity. Registering the same conn id twice is a
// no-op.
func (r *Registry) Register(identity session.Identity, conn Conn) {
	for {
		v, _ := r.entries.LoadOrStore(identity, &entry{conns: make(map[string]Conn)})
		e := v.(*entry)

		e.mu.Lock()
		if e.dead {
			// Lost a race with the last Unregister; the map slot is being freed.
			e.mu.Unlock()
			continue
		}
		e.conns[conn.ID()] = conn
		e.mu.Unlock()
		return
	}
}

// Unregister removes conn from identity. Absent handles are ignored. The
// identity's entry is dropped when its last connection goes away.
func (r *Registry) Unregister(identity session.Identity, conn Conn) {
	v, ok := r.entries.Load(identity)
	if !ok {
		return
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	delete(e.conns, conn.ID())
	if len(e.conns) == 0 {
		e.dead = true
		r.entries.CompareAndDelete(identity, e)
	}
}

// Get returns a snapshot of identity's connections.
func (r *Registry) Get(identity session.Identity) []Conn {
	v, ok := r.entries.Load(identity)
	if !ok {
		return nil
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || len(e.conns) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(e.conns))
	for _, c := range e.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of identities with at least one connection.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.dead && len(e.conns) > 0 {
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}
