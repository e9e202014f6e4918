package kernel

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// Kernel is the process-lifetime scheduler state: the task arena, one FIFO
// ready queue per priority level, the futex wait queues, and the tick timer.
// Every entry point takes it by reference; there are no package-level statics.
// All mutation happens inside the port's critical section, which is never held
// across a context switch.
type Kernel struct {
	port Port
	cfg  Config

	// Guarded by the port's critical section.
	tasks        map[TaskID]*task
	nextID       TaskID
	queues       []*linkedlistqueue.Queue
	readyMap     uint32 // bit n set when queues[n] is non-empty
	current      *task
	idle         *task
	bootCtx      Context
	stopping     bool
	bootReturned bool
	rotateDue    bool
	futexes      map[*atomic.Uint32]*linkedlistqueue.Queue
	timer        timerState

	// Flags readable without the critical section.
	started atomic.Bool
	resched atomic.Bool
	halted  atomic.Bool

	fault  faultState
	tracer *Tracer
}

// New builds a kernel bound to its architecture port. Configuration errors are
// fatal here; the kernel never starts half-configured.
func New(cfg Config, port Port) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kernel config: %w", err)
	}

	k := &Kernel{
		port:    port,
		cfg:     cfg,
		tasks:   make(map[TaskID]*task),
		nextID:  IdleTaskID + 1,
		queues:  make([]*linkedlistqueue.Queue, cfg.PriorityLevels),
		futexes: make(map[*atomic.Uint32]*linkedlistqueue.Queue),
		timer:   newTimerState(cfg.TimerSlots),
	}
	for i := range k.queues {
		k.queues[i] = linkedlistqueue.New()
	}

	idleStack := make([]byte, cfg.IdleStackBytes)
	if cfg.StackCanary {
		fillStackCanary(idleStack)
	}
	k.idle = &task{
		id:       IdleTaskID,
		priority: idlePriority,
		state:    StateReady,
		stack:    idleStack,
	}
	k.idle.ctx = port.PrepareContext(idleStack, k.idleLoop)
	k.current = k.idle

	return k, nil
}

// SetTracer attaches a trace consumer. Must be called before Start.
func (k *Kernel) SetTracer(tr *Tracer) { k.tracer = tr }

// Spawn creates a task in Ready state with a synthesized initial context.
// Callable before Start and, afterwards, from task or interrupt context. A new
// task with strictly higher priority than the running one preempts it.
func (k *Kernel) Spawn(entry func(), cfg TaskConfig) (Handle, error) {
	if k.halted.Load() {
		return Handle{}, ErrHalted
	}
	if cfg.Priority < 0 || cfg.Priority >= k.cfg.PriorityLevels {
		return Handle{}, ErrInvalidPriority
	}
	if cfg.StackBytes < minStackBytes {
		return Handle{}, ErrStackTooSmall
	}

	stack := make([]byte, cfg.StackBytes)
	if k.cfg.StackCanary {
		fillStackCanary(stack)
	}

	t := &task{
		priority: cfg.Priority,
		state:    StateReady,
		stack:    stack,
	}
	t.ctx = k.port.PrepareContext(stack, func() {
		entry()
		k.exitCurrent()
	})

	k.port.Enter()
	if len(k.tasks) >= k.cfg.MaxTasks {
		k.port.Exit()
		return Handle{}, ErrTaskLimitExceeded
	}
	t.id = k.nextID
	k.nextID++
	k.tasks[t.id] = t
	k.enqueueReady(t)
	if k.started.Load() && t.priority > k.current.priority {
		k.resched.Store(true)
		k.port.RequestReschedule()
	}
	k.emit(TraceSpawn, t.id, t.priority)
	k.port.Exit()

	k.preemptionPoint()
	return Handle{id: t.id}, nil
}

// Start dispatches the highest-priority ready task and blocks the calling
// flow of control until the kernel stops, either via Stop or on a fatal
// fault. With no tasks spawned, the idle task runs.
func (k *Kernel) Start() error {
	k.port.Enter()
	if k.started.Load() {
		k.port.Exit()
		return ErrAlreadyStarted
	}
	k.started.Store(true)
	k.bootCtx = k.port.CallerContext()
	boot := k.bootCtx

	next := k.dequeueTop()
	if next == nil {
		next = k.idle
	}
	next.state = StateRunning
	next.queue = queueNone
	k.current = next
	k.emit(TraceDispatch, next.id, next.priority)
	to := next.ctx
	k.port.Exit()

	k.port.Switch(boot, to)

	// Resumed: the kernel has stopped, cleanly or on a fault.
	if info, ok := k.Faulted(); ok {
		return fmt.Errorf("%w: task %d at tick %d", ErrStackOverflow, info.Task, info.Tick)
	}
	return nil
}

// Stop ends scheduling and returns control to the caller of Start. Callable
// from task or interrupt context; a task calling Stop does not run again.
func (k *Kernel) Stop() {
	k.port.Enter()
	if !k.started.Load() || k.stopping {
		k.port.Exit()
		return
	}
	k.stopping = true
	k.resched.Store(true)
	k.port.RequestReschedule()
	if k.port.InInterrupt() {
		k.port.Exit()
		return
	}
	k.schedule(false)
}

// Yield voluntarily gives up the processor; the caller rotates to the tail of
// its priority level. Task context only.
func (k *Kernel) Yield() {
	if !k.started.Load() || k.halted.Load() {
		return
	}
	k.port.Enter()
	k.emit(TraceYield, k.current.id, k.current.priority)
	k.schedule(true)
}

// Checkpoint honors any pending reschedule request. On the hosted port this is
// the preemption boundary; ports with true interrupt-driven switching never
// need it called explicitly.
func (k *Kernel) Checkpoint() {
	if !k.resched.Load() {
		return
	}
	k.port.Enter()
	if !k.resched.Load() && !k.stopping {
		k.port.Exit()
		return
	}
	rotate := k.rotateDue
	k.rotateDue = false
	k.schedule(rotate)
}

// Tick is the timer interrupt entry point: advances the tick timer, marks a
// round-robin boundary, and requests a reschedule. Interrupt context.
func (k *Kernel) Tick() {
	if !k.started.Load() || k.halted.Load() {
		return
	}
	now := k.port.CurrentTick()
	k.port.Enter()
	k.timerTickLocked(now)
	if k.cfg.StackCanary && k.cfg.CanaryEachTick {
		cur := k.current
		if cur.state == StateRunning && !k.canaryOK(cur) {
			k.faultLocked(FaultStackOverflow, cur.id, cur.priority)
			return // faultLocked released the critical section
		}
	}
	k.rotateDue = true
	k.resched.Store(true)
	k.port.RequestReschedule()
	k.emit(TraceTick, k.current.id, k.current.priority)
	k.port.Exit()
}

// Suspend pauses a task until Resume. Suspending the current task switches
// away immediately; a Ready task is pulled from its queue. Blocked tasks
// cannot be suspended.
func (k *Kernel) Suspend(id TaskID) error {
	if k.halted.Load() {
		return ErrHalted
	}
	k.port.Enter()
	t, ok := k.tasks[id]
	if !ok {
		k.port.Exit()
		return ErrNotFound
	}
	switch {
	case t == k.current:
		t.state = StateSuspended
		t.queue = queueNone
		k.emit(TraceSuspend, t.id, t.priority)
		if k.port.InInterrupt() {
			// Cannot switch here; the task leaves the processor at its next
			// boundary.
			k.resched.Store(true)
			k.port.RequestReschedule()
			k.port.Exit()
			return nil
		}
		k.schedule(false)
		return nil
	case t.state == StateReady:
		k.removeFromReady(t)
		t.state = StateSuspended
		t.queue = queueNone
		k.emit(TraceSuspend, t.id, t.priority)
		k.port.Exit()
		return nil
	default:
		k.port.Exit()
		return ErrWrongState
	}
}

// Resume readies a suspended task. Callable from task or interrupt context.
func (k *Kernel) Resume(id TaskID) error {
	if k.halted.Load() {
		return ErrHalted
	}
	k.port.Enter()
	t, ok := k.tasks[id]
	if !ok {
		k.port.Exit()
		return ErrNotFound
	}
	if t.state != StateSuspended {
		k.port.Exit()
		return ErrWrongState
	}
	t.state = StateReady
	k.enqueueReady(t)
	if t.priority >= k.current.priority {
		k.resched.Store(true)
		k.port.RequestReschedule()
	}
	k.emit(TraceResume, t.id, t.priority)
	k.port.Exit()

	k.preemptionPoint()
	return nil
}

// Kill terminates a task that is not the caller and reclaims its stack and id.
// Reclaiming a Running task is forbidden; on a single core that means the
// current task, so killing yourself is an error.
func (k *Kernel) Kill(id TaskID) error {
	if k.halted.Load() {
		return ErrHalted
	}
	k.port.Enter()
	t, ok := k.tasks[id]
	if !ok {
		k.port.Exit()
		return ErrNotFound
	}
	if t == k.current {
		k.port.Exit()
		return ErrKillSelf
	}
	switch t.queue {
	case queueReady:
		k.removeFromReady(t)
	case queueFutex:
		k.removeFromFutex(t)
	case queueTimer:
		// The heap registration goes stale and is skipped on expiry.
	}
	t.state = StateTerminated
	t.queue = queueNone
	t.stack = nil
	delete(k.tasks, id)
	k.emit(TraceKill, id, t.priority)
	k.port.Exit()
	return nil
}

// CurrentTask returns the id of the running task (IdleTaskID when idle).
func (k *Kernel) CurrentTask() TaskID {
	k.port.Enter()
	defer k.port.Exit()
	return k.current.id
}

// State reports a task's scheduling state.
func (k *Kernel) State(id TaskID) (TaskState, error) {
	k.port.Enter()
	defer k.port.Exit()
	if id == IdleTaskID {
		return k.idle.state, nil
	}
	t, ok := k.tasks[id]
	if !ok {
		return 0, ErrNotFound
	}
	return t.state, nil
}

// TaskCount returns the number of live tasks, excluding the idle task.
func (k *Kernel) TaskCount() int {
	k.port.Enter()
	defer k.port.Exit()
	return len(k.tasks)
}

// Started reports whether Start has been called.
func (k *Kernel) Started() bool { return k.started.Load() }

// Halted reports whether the kernel has stopped scheduling.
func (k *Kernel) Halted() bool { return k.halted.Load() }

// Config returns the configuration the kernel was built with.
func (k *Kernel) Config() Config { return k.cfg }

// idleLoop is the built-in do-nothing task: wait for the next interrupt, then
// let the scheduler take over. The idle task is never enqueued and never
// rotates.
func (k *Kernel) idleLoop() {
	for {
		k.port.WaitForInterrupt()
		k.Checkpoint()
	}
}

// exitCurrent is the return path of every task entry function.
func (k *Kernel) exitCurrent() {
	k.port.Enter()
	t := k.current
	if !k.canaryOK(t) {
		k.faultLocked(FaultStackOverflow, t.id, t.priority)
		return
	}
	t.state = StateTerminated
	t.queue = queueNone
	t.stack = nil
	delete(k.tasks, t.id)
	k.emit(TraceExit, t.id, t.priority)
	k.schedule(false)
	// Not reached: a terminated context is never resumed.
}

// preemptionPoint runs the scheduler when an operation may have readied a
// higher-priority task. Interrupt-context callers skip it; their switch
// happens at the running task's next boundary.
func (k *Kernel) preemptionPoint() {
	if !k.started.Load() || k.halted.Load() || k.port.InInterrupt() {
		return
	}
	k.Checkpoint()
}

// schedule picks the next task and performs the context switch. Called with
// the critical section held; returns with it released, executing as whichever
// task won. rotate moves a still-eligible current task to the tail of its
// level before selection.
func (k *Kernel) schedule(rotate bool) {
	k.resched.Store(false)
	prev := k.current

	if k.stopping {
		k.switchToBoot(prev)
		return
	}

	// The canary of the outgoing task is verified on every switch that could
	// leave it, regardless of why it is leaving.
	if prev.state != StateTerminated && !k.canaryOK(prev) {
		k.faultLocked(FaultStackOverflow, prev.id, prev.priority)
		return
	}

	if prev.state == StateRunning {
		top, any := k.topPriority()
		switch {
		case any && top > prev.priority:
			// A strictly higher-priority task is ready: preempt now,
			// regardless of tick boundaries.
			k.emit(TracePreempt, prev.id, prev.priority)
		case any && rotate && top == prev.priority:
			// Tick boundary crossed: round-robin within the level.
		default:
			k.port.Exit()
			return
		}
		prev.state = StateReady
		if prev != k.idle {
			k.enqueueReady(prev)
		}
	}

	next := k.dequeueTop()
	if next == nil {
		next = k.idle
	}
	if next == prev {
		prev.state = StateRunning
		prev.queue = queueNone
		k.port.Exit()
		return
	}
	next.state = StateRunning
	next.queue = queueNone
	k.current = next
	k.emit(TraceDispatch, next.id, next.priority)

	prevTerminated := prev.state == StateTerminated
	from, to := prev.ctx, next.ctx
	k.port.Exit()

	if prevTerminated {
		k.port.SwitchNoSave(to)
		return
	}
	k.port.Switch(from, to)

	// Resumed as the running task. If the kernel halted while we were
	// switched out, user code must not continue.
	if k.halted.Load() {
		k.port.HaltCurrent()
	}
}

// switchToBoot hands control back to the flow parked in Start. Called with the
// critical section held; only the first caller performs the hand-back, any
// later task context parks permanently.
func (k *Kernel) switchToBoot(prev *task) {
	k.halted.Store(true)
	if k.bootReturned {
		k.port.Exit()
		k.port.HaltCurrent()
		return
	}
	k.bootReturned = true
	boot := k.bootCtx
	k.port.Exit()
	k.port.Switch(prev.ctx, boot)
	// Not reached: the previous context is never dispatched again.
}

// faultLocked halts the kernel on a fatal condition and fires the fault hook
// exactly once. Called with the critical section held; releases it. In task
// context it never returns.
func (k *Kernel) faultLocked(reason FaultReason, id TaskID, priority int) {
	k.stopping = true
	k.halted.Store(true)
	k.resched.Store(true)
	k.port.RequestReschedule()
	k.emit(TraceFault, id, priority)
	inISR := k.port.InInterrupt()
	k.port.Exit()

	k.fault.trigger(FaultInfo{
		Reason: reason,
		Task:   id,
		Tick:   k.port.CurrentTick(),
	})

	if inISR {
		return
	}
	k.port.Enter()
	k.schedule(false)
}

func (k *Kernel) canaryOK(t *task) bool {
	if !k.cfg.StackCanary || t.stack == nil {
		return true
	}
	return stackCanaryIntact(t.stack)
}

func (k *Kernel) enqueueReady(t *task) {
	t.queue = queueReady
	k.queues[t.priority].Enqueue(t)
	k.readyMap |= 1 << uint(t.priority)
}

func (k *Kernel) dequeueTop() *task {
	if k.readyMap == 0 {
		return nil
	}
	level := bits.Len32(k.readyMap) - 1
	q := k.queues[level]
	v, ok := q.Dequeue()
	if !ok {
		return nil
	}
	if q.Empty() {
		k.readyMap &^= 1 << uint(level)
	}
	return v.(*task)
}

func (k *Kernel) topPriority() (int, bool) {
	if k.readyMap == 0 {
		return 0, false
	}
	return bits.Len32(k.readyMap) - 1, true
}

func (k *Kernel) removeFromReady(t *task) {
	q := k.queues[t.priority]
	values := q.Values()
	q.Clear()
	for _, v := range values {
		if v.(*task) != t {
			q.Enqueue(v)
		}
	}
	if q.Empty() {
		k.readyMap &^= 1 << uint(t.priority)
	}
}
