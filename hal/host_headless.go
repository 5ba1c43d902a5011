//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64 // 0 runs until shutdown
	Host    HostConfig
}

// RunHeadless drives the step function from a ticker instead of a window.
// It returns nil on ErrShutdown or once cfg.Ticks steps have run, and
// ctx.Err() if ctx ends first.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	hz := cfg.Hz
	if hz <= 0 {
		hz = 60
	}
	period := time.Second / time.Duration(hz)
	if period <= 0 {
		return fmt.Errorf("headless: %d Hz is beyond ticker resolution", hz)
	}

	h := NewHost(cfg.Host).(*hostHAL)
	step := newApp(h)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for n := uint64(1); ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := h.tick(step); err != nil {
			if errors.Is(err, ErrShutdown) {
				return nil
			}
			return err
		}
		if cfg.Ticks != 0 && n >= cfg.Ticks {
			return nil
		}
	}
}
