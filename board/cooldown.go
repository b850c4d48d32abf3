package board

import (
	"sync"
	"time"
)

// Countdown is a locally ticking display value for the user's cooldown. It is
// reseeded from every remote cooldown read; the local decrement is a display
// approximation only, the remote read stays authoritative.
type Countdown struct {
	mu        sync.Mutex
	remaining uint64
	quit      chan struct{}
	stopped   bool
}

func NewCountdown() *Countdown {
	c := &Countdown{quit: make(chan struct{})}
	go c.run()
	return c
}

func (c *Countdown) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.quit:
			return
		}
	}
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.remaining > 0 {
		c.remaining--
	}
	c.mu.Unlock()
}

// Reseed overwrites the countdown with an authoritative remote value.
func (c *Countdown) Reseed(seconds uint64) {
	c.mu.Lock()
	c.remaining = seconds
	c.mu.Unlock()
}

// Remaining returns the approximate seconds left.
func (c *Countdown) Remaining() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop terminates the ticking goroutine. Idempotent.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.quit)
	}
}
