package kernel

// Park and Unpark form a per-task permit: Unpark of a task that is not parked
// banks one permit, and Park consumes a banked permit without blocking. The
// async bridge's 1:1 configuration could be built on this pair, but uses the
// futex directly so the two stay independent.

// Park blocks the current task until another grants it a permit via Unpark.
// Task context only.
func (k *Kernel) Park() error {
	if !k.started.Load() || k.halted.Load() {
		return ErrHalted
	}
	k.port.Enter()
	t := k.current
	if t.parkPermit {
		t.parkPermit = false
		k.port.Exit()
		return nil
	}
	t.state = StateBlocked
	t.queue = queueParked
	k.emit(TraceBlock, t.id, t.priority)
	k.schedule(false)
	return nil
}

// Unpark readies a parked task, or banks a permit for its next Park. Callable
// from task or interrupt context.
func (k *Kernel) Unpark(id TaskID) error {
	if k.halted.Load() {
		return ErrHalted
	}
	k.port.Enter()
	t, ok := k.tasks[id]
	if !ok {
		k.port.Exit()
		return ErrNotFound
	}
	if t.queue == queueParked {
		t.state = StateReady
		k.enqueueReady(t)
		if t.priority >= k.current.priority {
			k.resched.Store(true)
			k.port.RequestReschedule()
		}
		k.emit(TraceWake, t.id, t.priority)
	} else {
		t.parkPermit = true
	}
	k.port.Exit()

	k.preemptionPoint()
	return nil
}
