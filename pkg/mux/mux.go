// Package mux implements the handler multiplexer: a fn_id → handler table
// that is mutated only during registration and read-only once the owning
// server starts running.
package mux

import (
	"fmt"
	"sync"
)

// Handler processes one request's payload and writes its response into
// resp, returning the number of bytes written. A handler must not retain
// req or resp beyond its return: the cells backing them are reused as soon
// as the reply SEND completes. Returning 0 signals failure to the caller;
// the server represents that as a zero-length response.
type Handler func(req []byte, resp []byte) int

// Mux maps function ids to handlers.
type Mux struct {
	mu     sync.RWMutex
	frozen bool
	byFnID map[uint32]Handler
}

// New creates an empty Mux.
func New() *Mux {
	return &Mux{byFnID: make(map[uint32]Handler)}
}

// Register binds fnID to handler. It returns an error if fnID is already
// registered or if the Mux has already been frozen by a call to Freeze.
// Duplicate registration is a setup-time mistake: the error is meant to be
// treated as fatal by the caller before Run, not recovered from at request
// time.
func (m *Mux) Register(fnID uint32, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return fmt.Errorf("mux: cannot register fn_id %d after Freeze", fnID)
	}
	if _, exists := m.byFnID[fnID]; exists {
		return fmt.Errorf("mux: duplicate handler for fn_id %d", fnID)
	}
	m.byFnID[fnID] = handler
	return nil
}

// Freeze marks the handler table immutable. Servers call this before
// entering their worker loops so that Dispatch never contends with
// Register for the map lock on the fast path.
func (m *Mux) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
}

// Dispatch looks up fnID and invokes its handler. It returns 0 if no
// handler is registered, which the caller represents as a zero-length
// reply.
func (m *Mux) Dispatch(fnID uint32, req []byte, resp []byte) int {
	m.mu.RLock()
	h, ok := m.byFnID[fnID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return h(req, resp)
}
