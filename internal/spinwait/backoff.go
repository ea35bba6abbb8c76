// Package spinwait implements the cooperative busy-wait bridge used to
// block a calling goroutine on a completion flag set by another goroutine
// without going through a channel or a condition variable: a CPU-relax
// busy loop backed by an atomic flag, cheaper than parking the goroutine
// when the expected wait is on the order of a round trip.
package spinwait

import (
	"runtime"
	"sync/atomic"
)

// spinLimit is how many pure cpu-relax iterations to try before yielding
// the OS thread with runtime.Gosched. Past that point the caller is almost
// certainly waiting on real I/O (a network RTT), not a few nanoseconds of
// remaining work, so spinning stops paying for itself.
const spinLimit = 2000

// Flag is a single-use, one-writer/one-reader readiness flag. The writer
// calls Set once the result it guards is safe to read; the reader calls
// Wait to block until that happens.
type Flag struct {
	ready atomic.Bool
}

// Set marks the flag ready. It must be called exactly once.
func (f *Flag) Set() {
	f.ready.Store(true)
}

// Reset clears the flag so a slot can be reused for the next call without
// allocating a new Flag.
func (f *Flag) Reset() {
	f.ready.Store(false)
}

// IsSet reports whether Set has been called since the last Reset.
func (f *Flag) IsSet() bool {
	return f.ready.Load()
}

// Wait busy-spins until the flag is set or abort reports true. abort is
// polled on every pure-spin iteration so a cancelled call returns promptly
// instead of waiting out the full spin budget.
func Wait(f *Flag, abort func() bool) {
	spins := 0
	for !f.ready.Load() {
		if abort != nil && abort() {
			return
		}
		spins++
		if spins < spinLimit {
			cpuRelax()
			continue
		}
		runtime.Gosched()
	}
}
