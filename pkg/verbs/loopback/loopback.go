// Package loopback provides an in-process implementation of pkg/verbs
// backed by Go channels instead of RDMA hardware. It exists so the rest of
// covrpc can be built, tested, and demoed without an RDMA-capable NIC; a
// hardware-backed provider implements the exact same interfaces.
package loopback

import (
	"context"
	"errors"
	"sync"

	"github.com/covrpc/covrpc/pkg/verbs"
)

// ErrClosed is returned by a Completion when the queue pair (or its peer)
// has been closed.
var ErrClosed = errors.New("loopback: queue pair closed")

var (
	_ verbs.ProtectionDomain = (*ProtectionDomain)(nil)
	_ verbs.MemoryRegion     = (*MemoryRegion)(nil)
	_ verbs.QueuePair        = (*QueuePair)(nil)
)

// ProtectionDomain is a no-op registration domain: loopback memory doesn't
// need to be pinned, it only needs to exist.
type ProtectionDomain struct {
	mu     sync.Mutex
	closed bool
}

// NewProtectionDomain creates a loopback protection domain.
func NewProtectionDomain() *ProtectionDomain {
	return &ProtectionDomain{}
}

// RegisterMemory wraps buf in a MemoryRegion. No actual pinning occurs.
func (pd *ProtectionDomain) RegisterMemory(buf []byte) (verbs.MemoryRegion, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.closed {
		return nil, errors.New("loopback: protection domain closed")
	}
	return &MemoryRegion{buf: buf}, nil
}

// Close marks the domain closed. Existing regions remain valid.
func (pd *ProtectionDomain) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.closed = true
	return nil
}

// MemoryRegion is the loopback MemoryRegion: a plain Go slice.
type MemoryRegion struct {
	buf []byte
}

// Bytes returns the backing slice.
func (mr *MemoryRegion) Bytes() []byte { return mr.buf }

// Deregister is a no-op for loopback regions.
func (mr *MemoryRegion) Deregister() error { return nil }

type message struct {
	data []byte
	err  error
}

// QueuePair is a pair-of-channels two-sided queue pair. Connect two
// QueuePairs with NewConnectedPair to get a client/server loopback link.
type QueuePair struct {
	outbound chan message
	inbound  chan message

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnectedPair returns two QueuePairs wired so that SENDs posted on one
// side land on RECVs posted on the other, in both directions.
func NewConnectedPair(bufSize int) (a, b *QueuePair) {
	ab := make(chan message, bufSize)
	ba := make(chan message, bufSize)
	a = &QueuePair{outbound: ab, inbound: ba, closed: make(chan struct{})}
	b = &QueuePair{outbound: ba, inbound: ab, closed: make(chan struct{})}
	return a, b
}

// PostSend copies buf onto the wire toward the peer's next PostRecv.
func (qp *QueuePair) PostSend(ctx context.Context, buf []byte) verbs.Completion {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	select {
	case qp.outbound <- message{data: cp}:
		return verbs.Completion{NBytes: len(buf)}
	case <-qp.closed:
		return verbs.Completion{Err: ErrClosed}
	case <-ctx.Done():
		return verbs.Completion{Err: ctx.Err()}
	}
}

// PostRecv blocks until a message from the peer lands in buf.
func (qp *QueuePair) PostRecv(ctx context.Context, buf []byte) verbs.Completion {
	select {
	case m, ok := <-qp.inbound:
		if !ok {
			return verbs.Completion{Err: ErrClosed}
		}
		if m.err != nil {
			return verbs.Completion{Err: m.err}
		}
		n := copy(buf, m.data)
		return verbs.Completion{NBytes: n}
	case <-qp.closed:
		return verbs.Completion{Err: ErrClosed}
	case <-ctx.Done():
		return verbs.Completion{Err: ctx.Err()}
	}
}

// Close tears down this side of the pair. Any PostSend/PostRecv blocked on
// this side returns ErrClosed; operations posted on the peer are not
// affected.
func (qp *QueuePair) Close() error {
	qp.closeOnce.Do(func() { close(qp.closed) })
	return nil
}
