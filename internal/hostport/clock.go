package hostport

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock counts ticks atomically and drives a bound handler, either manually
// through Advance (deterministic tests) or from a wall-clock ticker (the
// simulator).
type Clock struct {
	count    atomic.Uint64
	handler  atomic.Value // func()
	stop     chan struct{}
	stopOnce sync.Once
}

// NewClock creates a clock with no handler bound.
func NewClock() *Clock {
	return &Clock{stop: make(chan struct{})}
}

// Bind installs the handler invoked after every tick, typically the kernel's
// tick entry wrapped in RunInterrupt. Must be bound before ticks are driven.
func (c *Clock) Bind(handler func()) {
	c.handler.Store(handler)
}

// Advance drives n ticks synchronously.
func (c *Clock) Advance(n int) {
	for i := 0; i < n; i++ {
		c.count.Add(1)
		c.invoke()
	}
}

// Start begins emitting ticks at the given interval until Stop.
func (c *Clock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				c.invoke()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the ticker goroutine to stop emitting ticks.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *Clock) Count() uint64 {
	return c.count.Load()
}

func (c *Clock) invoke() {
	if v := c.handler.Load(); v != nil {
		if fn, ok := v.(func()); ok && fn != nil {
			fn()
		}
	}
}
