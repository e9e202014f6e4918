// Package hostport implements the kernel's architecture boundary on a plain
// Go runtime: contexts are goroutines parked on resume channels, the critical
// section is a mutex, and interrupt handlers are functions run with the
// interrupt flag raised. Exactly one task context executes between switches.
//
// The preemption boundary of this port is the running task's next kernel
// entry point (or an explicit Checkpoint); a port for real hardware preempts
// at any instruction via its timer exception.
package hostport

import (
	"sync"
	"sync/atomic"

	"gokern/internal/kernel"
)

type Port struct {
	mu    sync.Mutex
	isr   atomic.Int32
	wfi   chan struct{}
	clock *Clock
}

// New builds a port over the given tick source.
func New(clock *Clock) *Port {
	return &Port{wfi: make(chan struct{}, 1), clock: clock}
}

// Enter takes the critical section. The kernel takes it at most once per
// entry point, so this port does not need nesting support.
func (p *Port) Enter() { p.mu.Lock() }

// Exit releases the critical section.
func (p *Port) Exit() { p.mu.Unlock() }

// context is a parked flow of control. The resume channel has capacity one so
// a switch can signal the target before parking itself.
type context struct {
	resume  chan struct{}
	entry   func()
	started bool
}

func (p *Port) PrepareContext(_ []byte, entry func()) kernel.Context {
	return &context{resume: make(chan struct{}, 1), entry: entry}
}

func (p *Port) CallerContext() kernel.Context {
	return &context{resume: make(chan struct{}, 1), started: true}
}

func (p *Port) Switch(from, to kernel.Context) {
	f := from.(*context)
	p.resume(to)
	<-f.resume
}

func (p *Port) SwitchNoSave(to kernel.Context) {
	p.resume(to)
}

// resume dispatches the target context, starting its goroutine on first use.
// Only the single running flow performs switches, so the started flag needs
// no synchronization.
func (p *Port) resume(to kernel.Context) {
	t := to.(*context)
	if !t.started {
		t.started = true
		go func() {
			<-t.resume
			t.entry()
		}()
	}
	t.resume <- struct{}{}
}

func (p *Port) RequestReschedule() {
	select {
	case p.wfi <- struct{}{}:
	default:
	}
}

// WaitForInterrupt blocks until the next reschedule request, the hosted
// equivalent of a WFI instruction.
func (p *Port) WaitForInterrupt() { <-p.wfi }

// HaltCurrent parks the calling flow permanently.
func (p *Port) HaltCurrent() {
	select {}
}

func (p *Port) CurrentTick() uint64 { return p.clock.Count() }

func (p *Port) InInterrupt() bool { return p.isr.Load() > 0 }

// RunInterrupt executes fn as an interrupt handler: kernel operations invoked
// inside never context-switch themselves, they only request a reschedule.
// Every call into the kernel from outside a task must go through here.
func (p *Port) RunInterrupt(fn func()) {
	p.isr.Add(1)
	defer p.isr.Add(-1)
	fn()
}
