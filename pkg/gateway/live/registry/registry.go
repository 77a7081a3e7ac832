// Package registry tracks active live session pairings keyed by their
// client websocket connection, so shutdown can close every session and
// wait for teardown to finish.
package registry

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Pairing is the per-connection session owned by the registry. Shutdown
// must be safe to call more than once.
type Pairing interface {
	Shutdown(reason string)
}

type Registry struct {
	mu       sync.Mutex
	pairings map[*websocket.Conn]*entry
	wg       sync.WaitGroup
}

type entry struct {
	pairing Pairing
	once    sync.Once
}

func New() *Registry {
	return &Registry{
		pairings: make(map[*websocket.Conn]*entry),
	}
}

// Register tracks a pairing for conn and returns its unregister
// function. Registering the same conn twice shuts down the old pairing
// first. The unregister function is idempotent.
func (r *Registry) Register(conn *websocket.Conn, p Pairing) (unregister func()) {
	if r == nil {
		return func() {}
	}

	e := &entry{pairing: p}

	r.mu.Lock()
	if r.pairings == nil {
		r.pairings = make(map[*websocket.Conn]*entry)
	}
	old := r.pairings[conn]
	r.pairings[conn] = e
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		if old.pairing != nil {
			old.pairing.Shutdown("replaced")
		}
		r.unregister(conn, old)
	}

	return func() { r.unregister(conn, e) }
}

func (r *Registry) unregister(conn *websocket.Conn, e *entry) {
	if r == nil || e == nil {
		return
	}
	e.once.Do(func() {
		r.mu.Lock()
		if r.pairings != nil && r.pairings[conn] == e {
			delete(r.pairings, conn)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

// Get returns the pairing registered for conn, if any.
func (r *Registry) Get(conn *websocket.Conn) (Pairing, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pairings[conn]
	if !ok || e.pairing == nil {
		return nil, false
	}
	return e.pairing, true
}

func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairings)
}

// ShutdownAll asks every registered pairing to shut down with the given
// reason. Pairings stay registered until their own teardown calls
// unregister.
func (r *Registry) ShutdownAll(reason string) (notified int) {
	if r == nil {
		return 0
	}

	var pairings []Pairing
	r.mu.Lock()
	for _, e := range r.pairings {
		if e == nil || e.pairing == nil {
			continue
		}
		pairings = append(pairings, e.pairing)
	}
	r.mu.Unlock()

	for _, p := range pairings {
		p.Shutdown(reason)
		notified++
	}
	return notified
}

// Wait blocks until every registered pairing has unregistered, or the
// context expires. It reports whether teardown completed.
func (r *Registry) Wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
