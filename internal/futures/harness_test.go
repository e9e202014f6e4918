package futures_test

import (
	"testing"
	"time"

	"gokern/internal/hostport"
	"gokern/internal/kernel"
)

// rig runs a kernel on a background goroutine so the tests can drive futures
// from task context and fire wakes from interrupt context.
type rig struct {
	t    *testing.T
	k    *kernel.Kernel
	port *hostport.Port
	done chan error
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clock := hostport.NewClock()
	port := hostport.New(clock)
	cfg := kernel.DefaultConfig()
	cfg.TickMS = 1
	k, err := kernel.New(cfg, port)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock.Bind(func() { port.RunInterrupt(k.Tick) })
	return &rig{t: t, k: k, port: port, done: make(chan error, 1)}
}

func (r *rig) start() {
	r.t.Helper()
	go func() { r.done <- r.k.Start() }()
	r.waitFor("kernel start", func() bool { return r.k.Started() })
}

func (r *rig) stop() {
	r.t.Helper()
	r.port.RunInterrupt(r.k.Stop)
	select {
	case err := <-r.done:
		if err != nil {
			r.t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		r.t.Fatal("kernel did not return from Start")
	}
}

func (r *rig) isr(fn func()) { r.port.RunInterrupt(fn) }

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

func (r *rig) blocked(id kernel.TaskID) bool {
	s, err := r.k.State(id)
	return err == nil && s == kernel.StateBlocked
}
