package kernel

import (
	"encoding/binary"
	"sync/atomic"
)

// TaskID uniquely identifies a task for the duration of its life. IDs are
// assigned from a monotonic counter and never reused while the task exists.
type TaskID uint64

// IdleTaskID is reserved for the built-in idle task.
const IdleTaskID TaskID = 0

// TaskState is the scheduling state of a task.
type TaskState int

const (
	StateReady TaskState = iota
	StateRunning
	StateBlocked
	StateSuspended
	StateTerminated
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateSuspended:
		return "Suspended"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// queueTag records which collection a task currently belongs to. A task is a
// member of exactly one collection whenever it is not Running.
type queueTag int

const (
	queueNone queueTag = iota
	queueReady
	queueFutex
	queueTimer
	queueParked
)

const (
	// maxPriorityLevels is bounded by the width of the ready bitmap.
	maxPriorityLevels = 32

	// idlePriority sits below every configurable level so the ordinary
	// preemption rule covers the idle task as well.
	idlePriority = -1

	stackCanaryWord  = 0xABCD1234
	stackCanaryWords = 4

	// minContextFrameBytes is the nominal space an initial context frame
	// occupies at the top of a fresh stack.
	minContextFrameBytes = 32

	minStackBytes = stackCanaryWords*4 + minContextFrameBytes
)

// task is the Task Control Block.
type task struct {
	id       TaskID
	priority int // fixed at creation, idlePriority for the idle task
	state    TaskState
	queue    queueTag

	ctx   Context
	stack []byte

	// waitCell is the futex cell this task is queued on while queue == queueFutex.
	waitCell *atomic.Uint32

	// parkPermit is consumed by Park and granted by Unpark.
	parkPermit bool
}

// TaskConfig carries per-task creation parameters.
type TaskConfig struct {
	Priority   int
	StackBytes int
}

// DefaultTaskConfig returns the creation parameters used when the caller does
// not care: priority 1 with a 4 KiB stack.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{Priority: 1, StackBytes: 4096}
}

// WithPriority returns a copy of the config with the priority replaced.
func (c TaskConfig) WithPriority(priority int) TaskConfig {
	c.Priority = priority
	return c
}

// WithStackBytes returns a copy of the config with the stack size replaced.
func (c TaskConfig) WithStackBytes(n int) TaskConfig {
	c.StackBytes = n
	return c
}

// Handle refers to a spawned task.
type Handle struct {
	id TaskID
}

// ID returns the task identifier behind the handle.
func (h Handle) ID() TaskID { return h.id }

// fillStackCanary writes the sentinel pattern at the lowest valid addresses of
// the stack region.
func fillStackCanary(stack []byte) {
	for i := 0; i < stackCanaryWords; i++ {
		binary.LittleEndian.PutUint32(stack[i*4:], stackCanaryWord)
	}
}

// stackCanaryIntact re-reads the sentinel words. A single destroyed word means
// the task has pushed past its stack boundary.
func stackCanaryIntact(stack []byte) bool {
	for i := 0; i < stackCanaryWords; i++ {
		if binary.LittleEndian.Uint32(stack[i*4:]) != stackCanaryWord {
			return false
		}
	}
	return true
}
