package futures

import "sync/atomic"

// Signal is a one-shot future: Pending until Fire, Ready afterwards. The
// typical event-source shape: an interrupt handler or another task calls
// Fire, the driver re-polls and completes.
type Signal struct {
	fired atomic.Uint32
	waker atomic.Value // *Waker
}

// Poll stores the waker before checking the fired flag, so a Fire racing with
// the poll either sees the stored waker or is observed by the check.
func (s *Signal) Poll(w *Waker) Poll {
	s.waker.Store(w)
	if s.fired.Load() == 1 {
		return Ready
	}
	return Pending
}

// Fire completes the signal and wakes the driver. Callable from any task or
// interrupt context; extra calls are no-ops.
func (s *Signal) Fire() {
	s.fired.Store(1)
	if w, ok := s.waker.Load().(*Waker); ok && w != nil {
		w.Wake()
	}
}

// Fired reports whether the signal has completed.
func (s *Signal) Fired() bool { return s.fired.Load() == 1 }
