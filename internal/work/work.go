// Package work provides ready-made task bodies for the simulator and for
// exercising the kernel in examples.
package work

import (
	"sync/atomic"

	"gokern/internal/kernel"
)

// SpinTicks returns a task body that stays runnable for about n ticks,
// touching the kernel's preemption boundary on every iteration so the hosted
// port can rotate it.
func SpinTicks(k *kernel.Kernel, n uint64) func() {
	return func() {
		deadline := k.Now() + n
		for k.Now() < deadline {
			k.Checkpoint()
		}
	}
}

// SleepEvery returns a task body that sleeps period ticks, rounds times.
func SleepEvery(k *kernel.Kernel, period uint64, rounds int) func() {
	return func() {
		for i := 0; i < rounds; i++ {
			if err := k.Sleep(period); err != nil {
				return
			}
		}
	}
}

// Consumer returns a task body that waits on the cell until the producer has
// published count values, consuming one per wake.
func Consumer(k *kernel.Kernel, cell *atomic.Uint32, count uint32) func() {
	return func() {
		for {
			seen := cell.Load()
			if seen >= count {
				return
			}
			// Block until the published count moves past what we saw.
			_ = k.Wait(cell, seen)
		}
	}
}

// Producer returns a task body that publishes count values on the cell, one
// per period ticks, waking the consumers after each.
func Producer(k *kernel.Kernel, cell *atomic.Uint32, count uint32, period uint64) func() {
	return func() {
		for i := uint32(0); i < count; i++ {
			if err := k.Sleep(period); err != nil {
				return
			}
			cell.Add(1)
			k.WakeAll(cell)
		}
	}
}
