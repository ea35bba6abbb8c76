// Package ring implements a bounded, lock-free, multi-producer
// multi-consumer queue of uint32 values (the free-slot ring backing the
// client slot pool). The algorithm is Dmitry Vyukov's bounded MPMC queue:
// each cell carries its own sequence number so producers and consumers can
// claim cells with a single CAS and never block each other.
package ring

import (
	"sync/atomic"
)

// cacheLinePad sizes padding to avoid false sharing between adjacent cells
// and between the producer/consumer cursors on typical 64-byte cache lines.
const cacheLinePad = 64

type cell struct {
	sequence atomic.Uint64
	value    uint32
	_        [cacheLinePad - 8 - 4]byte
}

// Ring is a fixed-capacity MPMC queue of uint32. The zero value is not
// usable; construct one with New.
type Ring struct {
	mask uint64
	_    [cacheLinePad - 8]byte

	enqueuePos atomic.Uint64
	_          [cacheLinePad - 8]byte

	dequeuePos atomic.Uint64
	_          [cacheLinePad - 8]byte

	cells []cell
}

// New creates a Ring with room for capacity elements. capacity must be a
// power of two and at least 2, matching the "ring sized >= 2x max_inflight"
// requirement so producers and consumers never starve each other under the
// worst-case inflight pattern.
func New(capacity int) *Ring {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two >= 2")
	}
	r := &Ring{
		mask:  uint64(capacity - 1),
		cells: make([]cell, capacity),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.cells)
}

// TryPush attempts to enqueue v without blocking. It returns false if the
// ring is full.
func (r *Ring) TryPush(v uint32) bool {
	pos := r.enqueuePos.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.value = v
				c.sequence.Store(pos + 1)
				return true
			}
			pos = r.enqueuePos.Load()
		case diff < 0:
			return false // full
		default:
			pos = r.enqueuePos.Load()
		}
	}
}

// TryPop attempts to dequeue a value without blocking. It returns false if
// the ring is empty.
func (r *Ring) TryPop() (uint32, bool) {
	pos := r.dequeuePos.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if r.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := c.value
				c.sequence.Store(pos + r.mask + 1)
				return v, true
			}
			pos = r.dequeuePos.Load()
		case diff < 0:
			return 0, false // empty
		default:
			pos = r.dequeuePos.Load()
		}
	}
}
