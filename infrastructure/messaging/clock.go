package messaging

import (
	"sync"
	"time"
)

// MonotonicClock hands out event timestamps with millisecond precision.
// Every call returns a time strictly after the previous one, even when the
// wall clock stalls or steps backwards.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMonotonicClock creates a clock backed by time.Now
func NewMonotonicClock() *MonotonicClock {
	return NewMonotonicClockFrom(time.Now)
}

// NewMonotonicClockFrom creates a clock backed by now
func NewMonotonicClockFrom(now func() time.Time) *MonotonicClock {
	return &MonotonicClock{now: now}
}

// Now returns the next timestamp
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
