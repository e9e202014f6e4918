package kernel_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"gokern/internal/kernel"
)

func TestSleepWakesAtDeadline(t *testing.T) {
	r := newRig(t, testConfig())

	var slept atomic.Uint64
	h, err := r.k.Spawn(func() {
		start := r.k.Now()
		if err := r.k.Sleep(3); err != nil {
			t.Errorf("Sleep: %v", err)
		}
		slept.Store(r.k.Now() - start)
	}, kernel.DefaultTaskConfig())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	r.start()
	r.waitFor("sleeper to block", func() bool { return r.state(h.ID()) == kernel.StateBlocked })

	r.tick()
	r.tick()
	if got := r.state(h.ID()); got != kernel.StateBlocked {
		t.Fatalf("sleeper woke early, state = %v", got)
	}
	r.tick()
	r.waitFor("sleeper to exit", func() bool { return r.k.TaskCount() == 0 })
	if err := r.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := slept.Load(); got != 3 {
		t.Fatalf("slept %d ticks, want 3", got)
	}
}

// Every sleeper whose deadline has passed wakes on the same tick, not just
// the earliest registration.
func TestAllDueSleepersWakeTogether(t *testing.T) {
	r := newRig(t, testConfig())

	for i := 0; i < 3; i++ {
		if _, err := r.k.Spawn(func() { _ = r.k.Sleep(2) }, kernel.DefaultTaskConfig()); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}

	r.start()
	r.waitFor("sleepers to block", func() bool {
		return r.k.TaskCount() == 3 && r.k.CurrentTask() == kernel.IdleTaskID
	})

	r.clock.Advance(2)
	r.waitFor("all sleepers to exit", func() bool { return r.k.TaskCount() == 0 })
	if got := r.k.TimerQueueLen(); got != 0 {
		t.Fatalf("timer heap len = %d, want 0", got)
	}
	if err := r.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// A deadline at or before the current tick never blocks.
func TestSleepPastDeadlineImmediate(t *testing.T) {
	r := newRig(t, testConfig())

	var serr atomic.Value
	if _, err := r.k.Spawn(func() {
		if err := r.k.Sleep(0); err != nil {
			serr.Store(err)
			return
		}
		if err := r.k.SleepUntil(0); err != nil {
			serr.Store(err)
		}
	}, kernel.DefaultTaskConfig()); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	r.start()
	// No ticks are driven, so only an immediate return lets the task exit.
	r.waitFor("task to exit", func() bool { return r.k.TaskCount() == 0 })
	if err := r.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got, _ := serr.Load().(error); got != nil {
		t.Fatalf("immediate sleep: %v", got)
	}
}

func TestTimerFull(t *testing.T) {
	cfg := testConfig()
	cfg.TimerSlots = 1
	r := newRig(t, cfg)

	first, err := r.k.Spawn(func() { _ = r.k.Sleep(10) }, kernel.DefaultTaskConfig().WithPriority(2))
	if err != nil {
		t.Fatalf("Spawn first: %v", err)
	}
	var serr atomic.Value
	if _, err := r.k.Spawn(func() { serr.Store(r.k.Sleep(5)) }, kernel.DefaultTaskConfig().WithPriority(1)); err != nil {
		t.Fatalf("Spawn second: %v", err)
	}

	r.start()
	r.waitFor("first sleeper to block", func() bool { return r.state(first.ID()) == kernel.StateBlocked })
	r.waitFor("second sleeper to be refused", func() bool { return serr.Load() != nil })
	if got, _ := serr.Load().(error); !errors.Is(got, kernel.ErrTimerFull) {
		t.Fatalf("second sleep: got %v, want ErrTimerFull", got)
	}
	if err := r.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// Killing a sleeping task leaves a stale heap entry that expiry skips.
func TestKillSleepingTask(t *testing.T) {
	r := newRig(t, testConfig())

	h, err := r.k.Spawn(func() { _ = r.k.Sleep(5) }, kernel.DefaultTaskConfig())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	r.start()
	r.waitFor("sleeper to block", func() bool { return r.state(h.ID()) == kernel.StateBlocked })

	var kerr error
	r.isr(func() { kerr = r.k.Kill(h.ID()) })
	if kerr != nil {
		t.Fatalf("Kill: %v", kerr)
	}
	if got := r.k.TimerQueueLen(); got != 1 {
		t.Fatalf("timer heap len after kill = %d, want stale entry retained", got)
	}

	r.clock.Advance(5)
	if got := r.k.TimerQueueLen(); got != 0 {
		t.Fatalf("timer heap len after expiry = %d, want 0", got)
	}
	if got := r.k.TaskCount(); got != 0 {
		t.Fatalf("task count = %d, want 0", got)
	}
	if err := r.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
