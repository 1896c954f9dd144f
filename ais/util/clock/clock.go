// Package clock provides a mock for time package.
package clock

import (
	"sync"
	"time"
)

type C interface {
	Now() time.Time
}

type Real struct{}

func (c *Real) Now() time.Time {
	return time.Now()
}

// Mock is a manually driven clock. It is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	MockNow time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{MockNow: now}
}

func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MockNow
}

func (c *Mock) Set(t time.Time) {
	c.mu.Lock()
	c.MockNow = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Mock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MockNow = c.MockNow.Add(d)
	return c.MockNow
}
