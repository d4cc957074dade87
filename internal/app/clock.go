package app

import (
	"sync"
	"time"
)

// Clock drives periodic ticks for an active session. At most one tick source
// is ever active: Start on a running clock stops the prior one first.
type Clock struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewClock() *Clock {
	return &Clock{}
}

// Start begins ticking every interval, invoking fn with the wall-clock time
// of each tick. Consumers recompute elapsed time from that wall-clock value
// rather than counting ticks, so scheduling jitter never accumulates.
func (c *Clock) Start(interval time.Duration, fn func(now time.Time)) {
	c.Stop()

	c.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-t.C:
				fn(now)
			}
		}
	}()
}

// Stop cancels ticking. No tick callback runs after Stop returns.
func (c *Clock) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
