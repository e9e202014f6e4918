package kernel

import (
	"sync"
	"sync/atomic"
)

// FaultReason classifies fatal kernel conditions.
type FaultReason int

const (
	// FaultStackOverflow means a task destroyed its stack canary. Memory
	// beyond the canary is untrustworthy, so the kernel halts instead of
	// ever scheduling the task again.
	FaultStackOverflow FaultReason = iota
)

func (r FaultReason) String() string {
	switch r {
	case FaultStackOverflow:
		return "StackOverflow"
	default:
		return "Unknown"
	}
}

// FaultInfo describes the fatal condition handed to the fault hook.
type FaultInfo struct {
	Reason FaultReason
	Task   TaskID
	Tick   uint64
}

type faultState struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(FaultInfo)
	info    FaultInfo
}

// SetFaultHandler installs a hook invoked at most once, on the first fatal
// fault. The handler runs before the kernel halts and must not call back into
// scheduling operations.
func (k *Kernel) SetFaultHandler(fn func(FaultInfo)) {
	k.fault.handler.Store(fn)
}

// Faulted reports whether the kernel halted on a fatal fault, and the fault
// details if so.
func (k *Kernel) Faulted() (FaultInfo, bool) {
	if !k.fault.active.Load() {
		return FaultInfo{}, false
	}
	return k.fault.info, true
}

// trigger records the fault and runs the hook exactly once.
func (f *faultState) trigger(info FaultInfo) {
	f.once.Do(func() {
		f.info = info
		f.active.Store(true)
		if v := f.handler.Load(); v != nil {
			if fn, ok := v.(func(FaultInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
