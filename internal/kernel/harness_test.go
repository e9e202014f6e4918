package kernel_test

import (
	"testing"
	"time"

	"gokern/internal/hostport"
	"gokern/internal/kernel"
)

// rig wires a kernel to the hosted port with a manually driven clock. Tests
// run the kernel on a background goroutine and observe it from the test
// goroutine through the kernel's query surface, polling with a deadline
// because the scheduled tasks run asynchronously.
type rig struct {
	t     *testing.T
	k     *kernel.Kernel
	port  *hostport.Port
	clock *hostport.Clock
	done  chan error
}

func newRig(t *testing.T, cfg kernel.Config) *rig {
	t.Helper()
	clock := hostport.NewClock()
	port := hostport.New(clock)
	k, err := kernel.New(cfg, port)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock.Bind(func() { port.RunInterrupt(k.Tick) })
	return &rig{t: t, k: k, port: port, clock: clock, done: make(chan error, 1)}
}

func testConfig() kernel.Config {
	cfg := kernel.DefaultConfig()
	cfg.TickMS = 1
	return cfg
}

func (r *rig) start() {
	r.t.Helper()
	go func() { r.done <- r.k.Start() }()
	r.waitFor("kernel start", func() bool { return r.k.Started() })
}

// stop halts the kernel from interrupt context and returns Start's error.
func (r *rig) stop() error {
	r.t.Helper()
	r.isr(r.k.Stop)
	return r.wait()
}

// wait collects Start's return value without issuing a Stop.
func (r *rig) wait() error {
	r.t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		r.t.Fatal("kernel did not return from Start")
		return nil
	}
}

// isr runs fn as an interrupt handler, the only legal way for the test
// goroutine to call mutating kernel operations.
func (r *rig) isr(fn func()) { r.port.RunInterrupt(fn) }

// tick advances the clock one tick, firing the bound tick interrupt.
func (r *rig) tick() { r.clock.Advance(1) }

func (r *rig) waitFor(what string, cond func() bool) {
	r.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
	r.t.Fatalf("timed out waiting for %s", what)
}

// state returns a task's state, or -1 once the task no longer exists.
func (r *rig) state(id kernel.TaskID) kernel.TaskState {
	s, err := r.k.State(id)
	if err != nil {
		return -1
	}
	return s
}
