package batch

import (
	"sync"
	"time"
)

// Coalescer collapses bursts of triggers into a single flush per interval.
// With a zero interval every trigger flushes synchronously.
type Coalescer struct {
	interval time.Duration
	flush    func()

	mu      sync.Mutex
	pending bool

	kickChan chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCoalescer creates a coalescer that calls flush at most once per interval.
func NewCoalescer(interval time.Duration, flush func()) *Coalescer {
	c := &Coalescer{
		interval: interval,
		flush:    flush,
		kickChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if interval > 0 {
		go c.run()
	} else {
		close(c.done)
	}

	return c
}

// Trigger requests a flush.
func (c *Coalescer) Trigger() {
	if c.interval <= 0 {
		c.flush()
		return
	}

	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()

	select {
	case c.kickChan <- struct{}{}:
	default:
	}
}

// Pending reports whether a flush is scheduled but has not run yet.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Coalescer) run() {
	defer close(c.done)

	for {
		select {
		case <-c.kickChan:
			timer := time.NewTimer(c.interval)
			select {
			case <-timer.C:
				c.flushPending()
			case <-c.stopChan:
				timer.Stop()
				c.flushPending()
				return
			}
		case <-c.stopChan:
			// Final flush on stop
			c.flushPending()
			return
		}
	}
}

func (c *Coalescer) flushPending() {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.mu.Unlock()

	c.flush()
}

// Stop stops the coalescer, running any pending flush first.
func (c *Coalescer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	<-c.done
}
