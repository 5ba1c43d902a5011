// Package console draws the kernel console on the HAL framebuffer: a
// tinyterm pane for app stdout above a task table.
package console

import (
	"image/color"
	"io"
	"sync"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"ember/hal"
	"ember/kernel"
)

const (
	fontHeight = 10
	fontOffset = 6
)

var (
	font = &proggy.TinySZ8pt7b

	colorBG     = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xFF}
	colorTableB = color.RGBA{R: 0x20, G: 0x20, B: 0x30, A: 0xFF}
	colorHeader = color.RGBA{R: 0x60, G: 0xD0, B: 0xFF, A: 0xFF}
	colorText   = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	colorExited = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
)

// Console is safe for concurrent use.
type Console struct {
	mu sync.Mutex

	fb    hal.Framebuffer
	term  *tinyterm.Terminal
	out   *surface
	table *surface
	echo  io.Writer

	lines []tableLine
	dirty bool
}

// Option configures a Console.
type Option func(*Console)

// WithEcho copies everything written to the console to w.
func WithEcho(w io.Writer) Option {
	return func(c *Console) { c.echo = w }
}

// New returns a console drawing on fb. With a nil fb it only echoes.
func New(fb hal.Framebuffer, opts ...Option) *Console {
	c := &Console{fb: fb}
	for _, opt := range opts {
		opt(c)
	}
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		c.fb = nil
		return c
	}

	w, h := fb.Width(), fb.Height()
	tableH := min(h/3, (1+kernel.MaxAppNum)*fontHeight)
	c.table = newSurface(w, tableH)
	c.table.clear(colorTableB)
	c.out = newSurface(w, h-tableH)
	c.out.clear(colorBG)

	c.term = tinyterm.NewTerminal(c.out)
	c.term.Configure(&tinyterm.Config{
		Font:       font,
		FontHeight: fontHeight,
		FontOffset: fontOffset,
	})
	c.dirty = true
	return c
}

// Write prints app output.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.echo != nil {
		c.echo.Write(p)
	}
	if c.term != nil {
		c.term.Write(p)
		c.dirty = true
	}
	return len(p), nil
}

// SetTasks redraws the task table from tasks, ages taken against nowMs.
func (c *Console) SetTasks(tasks []kernel.TaskSnapshot, nowMs uint64) {
	lines := tableLines(tasks, nowMs)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = lines
	if c.table == nil {
		return
	}
	c.table.clear(colorTableB)
	rows := c.table.h / fontHeight
	for i, l := range lines {
		if i >= rows {
			break
		}
		fg := colorText
		switch {
		case i == 0:
			fg = colorHeader
		case l.exited:
			fg = colorExited
		}
		tinyfont.WriteLine(c.table, font, 2, int16(i*fontHeight+fontOffset+2), l.text, fg)
	}
	c.dirty = true
}

// Table returns the text of the task table, header first.
func (c *Console) Table() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.text
	}
	return out
}

// Present copies both panes to the framebuffer if anything changed.
func (c *Console) Present() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fb == nil || !c.dirty {
		return nil
	}
	c.out.blit(c.fb, 0)
	c.table.blit(c.fb, c.out.h)
	c.dirty = false
	return c.fb.Present()
}
