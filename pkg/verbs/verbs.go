// Package verbs defines the narrow interface covrpc needs from an RDMA
// verbs provider: protection domains, registered memory, and two-sided
// SEND/RECV queue pairs. pkg/verbs/loopback supplies an in-process
// implementation for tests and environments without RDMA hardware; a
// hardware-backed implementation can satisfy the same interfaces via
// cgo bindings to libibverbs without touching any code above this package.
package verbs

import "context"

// MemoryRegion is a pinned, registered range of memory. Bytes returns the
// full backing slice; callers slice it themselves to get per-cell views,
// since a Go []byte already is a pointer+length view and needs no separate
// wrapper type.
type MemoryRegion interface {
	Bytes() []byte
	// Deregister releases the registration. It must not be called while
	// any queue pair may still post work referencing this region.
	Deregister() error
}

// ProtectionDomain registers memory regions for use by queue pairs that
// belong to it.
type ProtectionDomain interface {
	RegisterMemory(buf []byte) (MemoryRegion, error)
	Close() error
}

// Completion describes the result of a posted SEND or RECV once it
// finishes.
type Completion struct {
	// NBytes is the number of bytes transferred. For a RECV completion
	// this is the number of bytes actually written into the posted
	// buffer; for a SEND completion it echoes the requested length.
	NBytes int
	Err    error
}

// QueuePair is a two-sided, reliable-connected send/receive channel. All
// methods must be safe for concurrent use by multiple goroutines: the
// client submit path posts SEND while per-cell receive goroutines post
// RECV concurrently, and both may run from many goroutines at once.
type QueuePair interface {
	// PostSend transmits buf and blocks until the completion is known or
	// ctx is done. buf must not be touched by the caller until this
	// returns, matching the "pinned, registered, reused across calls"
	// contract of the cell it was sliced from.
	PostSend(ctx context.Context, buf []byte) Completion
	// PostRecv arms buf to receive the next inbound message and blocks
	// until a message lands in it or ctx is done.
	PostRecv(ctx context.Context, buf []byte) Completion
	// Close tears down the queue pair. Any PostSend/PostRecv blocked on
	// it returns a Completion with a non-nil Err.
	Close() error
}
