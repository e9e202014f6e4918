package kernel

// Context is an opaque saved execution context. Its representation belongs to
// the architecture port; the kernel only stores and hands it back.
type Context any

// CriticalSection is the global interrupt-disable capability consumed from the
// port. Enter and Exit bracket every mutation of kernel state and are never
// held across a context switch.
type CriticalSection interface {
	Enter()
	Exit()
}

// Port is the architecture boundary. The kernel never touches registers or
// stacks directly; every switch, initial context, and tick source is delegated
// here. A port for real hardware wires these to the trap/timer machinery; the
// hosted port backs them with goroutines and a virtual clock.
type Port interface {
	CriticalSection

	// PrepareContext synthesizes a context such that the first switch into it
	// begins executing entry. The stack region is owned by the task; ports
	// that execute elsewhere (such as the hosted port) may leave it untouched.
	PrepareContext(stack []byte, entry func()) Context

	// Switch saves the caller's execution state into from and resumes to.
	// The caller does not observe the return until from is dispatched again.
	Switch(from, to Context)

	// SwitchNoSave resumes to without saving the caller's state. Used on the
	// exit path, where the outgoing context is being discarded.
	SwitchNoSave(to Context)

	// CallerContext captures the calling flow of control as a context without
	// an entry point. The boot flow parks here while the kernel runs.
	CallerContext() Context

	// RequestReschedule flags that the scheduler should run at the next safe
	// boundary. Callable from interrupt context.
	RequestReschedule()

	// WaitForInterrupt blocks until the next reschedule request. The idle
	// task's low-power loop.
	WaitForInterrupt()

	// HaltCurrent parks the calling flow of control permanently. Invoked on
	// task contexts once the kernel has halted.
	HaltCurrent()

	// CurrentTick returns the monotonic tick count. Callable from interrupt
	// context.
	CurrentTick() uint64

	// InInterrupt reports whether the caller runs in interrupt context.
	// Operations invoked there never perform a context switch themselves;
	// they only request one.
	InInterrupt() bool
}
