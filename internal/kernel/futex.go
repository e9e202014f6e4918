package kernel

import (
	"sync/atomic"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// The futex is the kernel's sole low-level blocking mechanism, modeled after
// the Linux futex syscall: a caller-owned atomic integer cell identifies a
// wait queue that the kernel creates lazily and discards when empty.

// Wait atomically compares the cell's value to expected. If they differ it
// returns ErrWouldNotBlock without touching the task's state; otherwise the
// calling task blocks on the cell's FIFO wait queue until a matching Wake.
// The check-then-enqueue runs inside a critical section, closing the classic
// lost-wakeup race against a concurrent value change plus Wake. Task context
// only.
func (k *Kernel) Wait(cell *atomic.Uint32, expected uint32) error {
	if !k.started.Load() || k.halted.Load() {
		return ErrHalted
	}
	// Fast path: no wait when the value already moved on.
	if cell.Load() != expected {
		return ErrWouldNotBlock
	}

	k.port.Enter()
	// Re-check under the critical section: a wake may have slipped in after
	// the fast path.
	if cell.Load() != expected {
		k.port.Exit()
		return ErrWouldNotBlock
	}
	t := k.current
	t.state = StateBlocked
	t.queue = queueFutex
	t.waitCell = cell
	q := k.futexes[cell]
	if q == nil {
		q = linkedlistqueue.New()
		k.futexes[cell] = q
	}
	q.Enqueue(t)
	k.emit(TraceBlock, t.id, t.priority)
	k.schedule(false)
	return nil
}

// Wake dequeues up to n tasks from the cell's wait queue in FIFO order,
// readies each, and returns how many were woken. Waking zero waiters is not
// an error. A reschedule is requested when any woken task has priority at or
// above the caller's; which task runs next is the scheduler's priority rule,
// not the wake order. Callable from task or interrupt context.
func (k *Kernel) Wake(cell *atomic.Uint32, n int) int {
	if k.halted.Load() || n <= 0 {
		return 0
	}
	k.port.Enter()
	q := k.futexes[cell]
	woken := 0
	needResched := false
	for q != nil && woken < n {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		t := v.(*task)
		t.state = StateReady
		t.waitCell = nil
		k.enqueueReady(t)
		if t.priority >= k.current.priority {
			needResched = true
		}
		k.emit(TraceWake, t.id, t.priority)
		woken++
	}
	if q != nil && q.Empty() {
		delete(k.futexes, cell)
	}
	if needResched {
		k.resched.Store(true)
		k.port.RequestReschedule()
	}
	k.port.Exit()

	k.preemptionPoint()
	return woken
}

// WakeAll readies every task blocked on the cell.
func (k *Kernel) WakeAll(cell *atomic.Uint32) int {
	return k.Wake(cell, k.cfg.MaxTasks)
}

// removeFromFutex drops a task from the wait queue it is blocked on, keeping
// the lazily-created queue table tidy. Called with the critical section held.
func (k *Kernel) removeFromFutex(t *task) {
	q := k.futexes[t.waitCell]
	if q == nil {
		return
	}
	values := q.Values()
	q.Clear()
	for _, v := range values {
		if v.(*task) != t {
			q.Enqueue(v)
		}
	}
	if q.Empty() {
		delete(k.futexes, t.waitCell)
	}
	t.waitCell = nil
}
