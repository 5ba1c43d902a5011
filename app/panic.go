package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"ember/hal"
	"ember/kernel"
)

func installPanicHandler(h hal.HAL, s *System) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		s.panicked.Store(&info)
		if l := h.Logger(); l != nil {
			l.WriteLineString(fmt.Sprintf("ember panic: task=%d panic=%v", info.TaskID, info.Value))
			for _, line := range stackLines(info.Stack) {
				l.WriteLineString(line)
			}
		}

		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil {
				drawPanicScreen(fb, info)
			}
		}
	})
}

// drawPanicScreen paints info over the whole framebuffer, black on white,
// and stops at the bottom edge.
func drawPanicScreen(fb hal.Framebuffer, info kernel.PanicInfo) {
	fb.ClearRGB(255, 255, 255)

	font := &proggy.TinySZ8pt7b
	fontHeight, fontOffset := int16(10), int16(6)
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		_ = fb.Present()
		return
	}

	d := panicDisplay{fb: fb}
	lines := []string{
		"ember panic:",
		fmt.Sprintf("task: %d", info.TaskID),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if stack := stackLines(info.Stack); len(stack) > 0 {
		lines = append(lines, "stack:")
		lines = append(lines, stack...)
	} else {
		lines = append(lines, "stack: unavailable")
	}

	fg := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	cols := int16(fb.Width()) / fontWidth
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if y+fontHeight > int16(fb.Height()) {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			drawTextLine(d, font, fontWidth, fontOffset, 0, y, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

func stackLines(stack []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func drawTextLine(
	d panicDisplay,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	drawX := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font, drawX, y0+fontOffset, r, fg)
		drawX += fontWidth
	}
}

type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}

	pixel := uint16((uint16(c.R>>3)&0x1F)<<11 | (uint16(c.G>>2)&0x3F)<<5 | (uint16(c.B>>3) & 0x1F))
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d panicDisplay) Display() error { return nil }

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
