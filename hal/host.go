//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// HostConfig sizes the host devices.
type HostConfig struct {
	Width, Height int
	LogOutput     io.Writer
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	t      *hostTime
}

// New returns a host HAL implementation with a 320x320 display logging to stdout.
func New() HAL {
	return NewHost(HostConfig{})
}

// NewHost returns a host HAL implementation.
func NewHost(cfg HostConfig) HAL {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 320, 320
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stdout
	}
	return &hostHAL{
		logger: &hostLogger{w: cfg.LogOutput},
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		t:      newHostTime(newMonoClock()),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

// tick advances host time and runs one step of the app. Both runners call
// it once per frame.
func (h *hostHAL) tick(step func() error) error {
	h.t.step(1)
	if step == nil {
		return nil
	}
	return step()
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
