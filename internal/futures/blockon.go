package futures

import (
	"errors"
	"sync/atomic"

	"gokern/internal/kernel"
)

// BlockOn drives a single future to completion on the calling kernel task,
// the one-future-per-kernel-task configuration of the bridge. While the
// future is pending the task blocks on the notify cell; it is never re-polled
// between a not-ready result and the next wake. Task context only.
func BlockOn(k *kernel.Kernel, fut Future) error {
	var pending, notify atomic.Uint32
	w := &Waker{k: k, pending: &pending, notify: &notify}

	for {
		if fut.Poll(w) == Ready {
			return nil
		}
		// Re-arm the notify cell, then consume any wake that raced with the
		// poll. Order matters: a Wake after the re-arm trips the futex, a
		// Wake before it is caught by the pending flag.
		notify.Store(0)
		if pending.Swap(0) == 1 {
			continue
		}
		if err := k.Wait(&notify, 0); err != nil && !errors.Is(err, kernel.ErrWouldNotBlock) {
			return err
		}
	}
}
