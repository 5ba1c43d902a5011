package console

import (
	"image/color"

	"tinygo.org/x/drivers"

	"ember/hal"
)

// surface is an offscreen RGB565 pane that tinyterm and tinyfont draw into.
// Its rows form a ring: SetScroll picks the row shown at the top when the
// pane is blitted to the framebuffer.
type surface struct {
	w, h   int
	buf    []byte
	scroll int
}

func newSurface(w, h int) *surface {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &surface{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (s *surface) Size() (x, y int16) { return int16(s.w), int16(s.h) }

func (s *surface) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= s.w || iy < 0 || iy >= s.h {
		return
	}
	pixel := rgb565From888(c.R, c.G, c.B)
	off := (iy*s.w + ix) * 2
	s.buf[off] = byte(pixel)
	s.buf[off+1] = byte(pixel >> 8)
}

// Display is a no-op; the console blits on Present.
func (s *surface) Display() error { return nil }

func (s *surface) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0 := clampInt(int(x), 0, s.w)
	y0 := clampInt(int(y), 0, s.h)
	x1 := clampInt(int(x)+int(width), 0, s.w)
	y1 := clampInt(int(y)+int(height), 0, s.h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	lo := byte(pixel)
	hi := byte(pixel >> 8)
	for py := y0; py < y1; py++ {
		row := py * s.w * 2
		for px := x0; px < x1; px++ {
			s.buf[row+px*2] = lo
			s.buf[row+px*2+1] = hi
		}
	}
	return nil
}

func (s *surface) SetScroll(line int16) {
	if s.h == 0 {
		return
	}
	s.scroll = ((int(line) % s.h) + s.h) % s.h
}

// SetRotation is a no-op; panes are always drawn upright.
func (s *surface) SetRotation(drivers.Rotation) error { return nil }

// clear fills the pane with c and resets the scroll.
func (s *surface) clear(c color.RGBA) {
	s.scroll = 0
	s.FillRectangle(0, 0, int16(s.w), int16(s.h), c)
}

// blit copies the pane, scroll applied, into fb starting at row top.
func (s *surface) blit(fb hal.Framebuffer, top int) {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := fb.Buffer()
	stride := fb.StrideBytes()
	rowBytes := min(s.w, fb.Width()) * 2
	for y := 0; y < s.h; y++ {
		dy := top + y
		if dy < 0 || dy >= fb.Height() {
			continue
		}
		src := ((s.scroll + y) % s.h) * s.w * 2
		dst := dy * stride
		if dst+rowBytes > len(buf) {
			return
		}
		copy(buf[dst:dst+rowBytes], s.buf[src:src+rowBytes])
	}
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
