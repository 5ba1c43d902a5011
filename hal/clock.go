package hal

import (
	"sync"
	"time"
)

// monoClock reads the host monotonic clock relative to its creation.
type monoClock struct {
	boot time.Time
}

func newMonoClock() monoClock { return monoClock{boot: time.Now()} }

func (c monoClock) Micros() uint64 { return uint64(time.Since(c.boot) / time.Microsecond) }
func (c monoClock) Millis() uint64 { return uint64(time.Since(c.boot) / time.Millisecond) }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu sync.Mutex
	us uint64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{us: uint64(start / time.Microsecond)}
}

func (c *ManualClock) Micros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.us
}

func (c *ManualClock) Millis() uint64 { return c.Micros() / 1000 }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.us += uint64(d / time.Microsecond)
	c.mu.Unlock()
}
