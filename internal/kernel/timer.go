package kernel

import (
	"github.com/emirpasic/gods/trees/binaryheap"
)

// Tick-count timekeeping with a heap-based one-shot timer, a variation of the
// timer schemes from Varghese & Lauck's timing-wheel paper. Registrations of
// killed tasks go stale in the heap and are skipped on expiry.

type timerEntry struct {
	deadline uint64
	id       TaskID
}

type timerState struct {
	heap  *binaryheap.Heap
	slots int
}

func newTimerState(slots int) timerState {
	return timerState{heap: binaryheap.NewWith(byDeadline), slots: slots}
}

func byDeadline(a, b interface{}) int {
	ea, eb := a.(timerEntry), b.(timerEntry)
	switch {
	case ea.deadline < eb.deadline:
		return -1
	case ea.deadline > eb.deadline:
		return 1
	case ea.id < eb.id:
		return -1
	case ea.id > eb.id:
		return 1
	default:
		return 0
	}
}

// Now returns the current tick count.
func (k *Kernel) Now() uint64 { return k.port.CurrentTick() }

// SleepUntil blocks the current task until the given tick. Deadlines at or
// before the current tick return immediately. Task context only.
func (k *Kernel) SleepUntil(deadline uint64) error {
	if !k.started.Load() || k.halted.Load() {
		return ErrHalted
	}
	if deadline <= k.port.CurrentTick() {
		return nil
	}

	k.port.Enter()
	if deadline <= k.port.CurrentTick() {
		k.port.Exit()
		return nil
	}
	if k.timer.heap.Size() >= k.timer.slots {
		k.port.Exit()
		return ErrTimerFull
	}
	t := k.current
	t.state = StateBlocked
	t.queue = queueTimer
	k.timer.heap.Push(timerEntry{deadline: deadline, id: t.id})
	k.emit(TraceSleep, t.id, t.priority)
	k.schedule(false)
	return nil
}

// Sleep blocks the current task for at least the given number of ticks.
func (k *Kernel) Sleep(ticks uint64) error {
	return k.SleepUntil(k.port.CurrentTick() + ticks)
}

// timerTickLocked wakes every sleeper whose deadline has passed. All due
// entries wake on the same tick, not just the earliest. Called from the tick
// handler with the critical section held.
func (k *Kernel) timerTickLocked(now uint64) {
	needResched := false
	for {
		v, ok := k.timer.heap.Peek()
		if !ok {
			break
		}
		e := v.(timerEntry)
		if e.deadline > now {
			break
		}
		k.timer.heap.Pop()
		t, ok := k.tasks[e.id]
		if !ok || t.queue != queueTimer {
			continue
		}
		t.state = StateReady
		k.enqueueReady(t)
		if t.priority >= k.current.priority {
			needResched = true
		}
		k.emit(TraceWake, t.id, t.priority)
	}
	if needResched {
		k.resched.Store(true)
		k.port.RequestReschedule()
	}
}
