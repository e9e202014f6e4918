package kernel

import "errors"

// ErrInvalidPriority is returned when a task priority is outside the configured level range.
var ErrInvalidPriority = errors.New("priority outside the configured level range")

// ErrStackTooSmall is returned when a stack region cannot hold a minimal context frame plus the canary.
var ErrStackTooSmall = errors.New("stack region too small")

// ErrTaskLimitExceeded is returned when the configured maximum task count is reached.
var ErrTaskLimitExceeded = errors.New("maximum task count reached")

// ErrWouldNotBlock is returned by Wait when the futex cell no longer holds the expected value.
var ErrWouldNotBlock = errors.New("futex value changed, no wait performed")

// ErrNotFound is returned when the referenced task does not exist or has terminated.
var ErrNotFound = errors.New("no such task")

// ErrKillSelf is returned when a task attempts to kill itself.
var ErrKillSelf = errors.New("a task cannot kill itself")

// ErrWrongState is returned when an operation does not apply to the task's current state.
var ErrWrongState = errors.New("operation not valid in the task's current state")

// ErrTimerFull is returned when the timer registration table is full.
var ErrTimerFull = errors.New("maximum timer registrations reached")

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("kernel already started")

// ErrHalted is returned when the kernel has stopped scheduling.
var ErrHalted = errors.New("kernel halted")

// ErrStackOverflow marks the fatal condition raised by a canary mismatch.
var ErrStackOverflow = errors.New("stack overflow detected")
