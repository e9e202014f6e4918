package kernel

// Test-only accessors. Exposed here so the black-box tests can reach state
// that has no production accessor.

// MinStackBytes is the smallest stack size Spawn accepts.
const MinStackBytes = minStackBytes

// CorruptStack destroys the canary words at the bottom of a task's stack,
// simulating a task that pushed past its stack boundary.
func (k *Kernel) CorruptStack(id TaskID) {
	k.port.Enter()
	defer k.port.Exit()
	t, ok := k.tasks[id]
	if !ok {
		return
	}
	for i := 0; i < stackCanaryWords*4; i++ {
		t.stack[i] = 0
	}
}

// FutexQueueCount returns the number of live futex wait queues.
func (k *Kernel) FutexQueueCount() int {
	k.port.Enter()
	defer k.port.Exit()
	return len(k.futexes)
}

// TimerQueueLen returns the number of registrations in the timer heap,
// including stale ones.
func (k *Kernel) TimerQueueLen() int {
	k.port.Enter()
	defer k.port.Exit()
	return k.timer.heap.Size()
}
