package arm

import (
	"sync"
	"time"
)

// Clock supplies write timestamps in Unix epoch milliseconds.
type Clock interface {
	NowMs() int64
}

// MonotonicClock never returns a value less than or equal to one it has
// already returned, even if the wall clock steps backwards.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewMonotonicClock wraps now, or time.Now when now is nil.
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

func (c *MonotonicClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// NextStamp returns the write stamp for a record last written at prev:
// the clock's time, bumped past prev if needed.
func NextStamp(c Clock, prev int64) int64 {
	now := c.NowMs()
	if now <= prev {
		return prev + 1
	}
	return now
}
