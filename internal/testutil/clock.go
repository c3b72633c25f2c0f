// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// FakeClock is a clock that only moves when told to. Its Now method fits
// the Now fields of options that stamp identifiers with the time.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock initialized to the given time.
// If initial is zero, defaults to a fixed reference time for reproducibility.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the fake time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set sets the fake time to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
