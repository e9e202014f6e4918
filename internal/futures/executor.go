package futures

import (
	"errors"
	"sync/atomic"

	"gokern/internal/kernel"
)

// Executor multiplexes several cooperative tasks over one kernel task, the
// N:1 configuration of the bridge. Each future has its own pending-wake flag;
// the driver blocks on a shared notify cell only when no future can progress.
type Executor struct {
	k       *kernel.Kernel
	notify  atomic.Uint32
	entries []*entry
}

type entry struct {
	fut     Future
	waker   *Waker
	pending atomic.Uint32
	done    bool
}

// NewExecutor builds an executor bound to the kernel.
func NewExecutor(k *kernel.Kernel) *Executor {
	return &Executor{k: k}
}

// Add registers a future with the executor. All futures must be added before
// Run is called.
func (e *Executor) Add(fut Future) {
	en := &entry{fut: fut}
	en.pending.Store(1) // poll at least once
	en.waker = &Waker{k: e.k, pending: &en.pending, notify: &e.notify}
	e.entries = append(e.entries, en)
}

// Run drives every registered future to completion and returns. A completed
// future is never polled again. Must run on the kernel task dedicated to this
// executor.
func (e *Executor) Run() error {
	live := len(e.entries)
	for live > 0 {
		for _, en := range e.entries {
			if en.done || en.pending.Swap(0) != 1 {
				continue
			}
			if en.fut.Poll(en.waker) == Ready {
				en.done = true
				live--
			}
		}
		if live == 0 {
			break
		}
		// Re-arm, then re-check the pending flags before blocking so a wake
		// that raced the sweep is not lost.
		e.notify.Store(0)
		if e.anyPending() {
			continue
		}
		if err := e.k.Wait(&e.notify, 0); err != nil && !errors.Is(err, kernel.ErrWouldNotBlock) {
			return err
		}
	}
	return nil
}

func (e *Executor) anyPending() bool {
	for _, en := range e.entries {
		if !en.done && en.pending.Load() == 1 {
			return true
		}
	}
	return false
}
