// Package futures bridges cooperative, poll-driven tasks onto the preemptive
// kernel without busy polling. A future that reports not-ready suspends its
// driving kernel task on a futex cell; the waker it received records a
// pending-wake flag and prods that cell, so a wake landing anywhere between
// the not-ready result and the block is never lost.
//
// The bridge sits above the futex like any other synchronization consumer and
// never touches scheduler internals.
package futures

import (
	"sync/atomic"

	"gokern/internal/kernel"
)

// Poll is the result of a single poll step.
type Poll uint8

const (
	// Pending means the future cannot progress yet; the waker it was handed
	// will fire when it can.
	Pending Poll = iota
	// Ready means the future completed and must not be polled again.
	Ready
)

func (p Poll) String() string {
	switch p {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Future is a cooperative task driven by an external poll loop. A Pending
// implementation must stash the waker and fire it exactly when progress
// becomes possible; returning Pending without arranging a wake stalls the
// driver forever.
type Future interface {
	Poll(w *Waker) Poll
}

// Waker records a pending wake for one future and unblocks the kernel task
// driving it. Safe to fire from any task or interrupt context, any number of
// times.
type Waker struct {
	k       *kernel.Kernel
	pending *atomic.Uint32 // per-future pending-wake flag
	notify  *atomic.Uint32 // futex cell the driver blocks on
}

// Wake marks the future able to progress and prods the driver. The pending
// flag is set before the notify cell moves, so a driver that misses the futex
// wake still observes the flag before blocking.
func (w *Waker) Wake() {
	w.pending.Store(1)
	if w.notify.CompareAndSwap(0, 1) {
		w.k.Wake(w.notify, 1)
	}
}
