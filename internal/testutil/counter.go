package testutil

import "sync"

// Counter is a resettable, thread-safe sequence starting at 1.
//
// Tests use it wherever a deterministic sequence number is needed so that
// the same scenario run twice yields identical output.
type Counter struct {
	mu  sync.Mutex
	seq int64
}

// NewCounter creates a counter; the first Next returns 1.
func NewCounter() *Counter {
	return &Counter{}
}

// Next increments and returns the sequence number.
func (c *Counter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value returned by Next, or 0.
func (c *Counter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset restarts the sequence; the next call to Next returns 1.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
