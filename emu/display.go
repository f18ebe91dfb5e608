package emu

import (
	"fmt"
	"strings"
)

// Display geometry of the classic CHIP-8 screen.
const (
	DisplayWidth  = 64
	DisplayHeight = 32
)

// Display is the monochrome pixel grid the emulator draws on.
// The emulator only clears it and flips pixels; rendering is up to the host.
type Display interface {
	// Width returns the number of columns.
	Width() int
	// Height returns the number of rows.
	Height() int
	// Clear turns every pixel off.
	Clear()
	// Flip toggles the pixel at (x, y) and reports whether it was on before.
	// Coordinates are always within [0, Width) and [0, Height).
	Flip(x, y int) bool
}

// FrameBuffer is the default 64x32 Display.
type FrameBuffer struct {
	pixels [DisplayWidth * DisplayHeight]bool
}

// NewFrameBuffer creates a cleared frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Width returns DisplayWidth.
func (f *FrameBuffer) Width() int { return DisplayWidth }

// Height returns DisplayHeight.
func (f *FrameBuffer) Height() int { return DisplayHeight }

// Clear turns every pixel off.
func (f *FrameBuffer) Clear() {
	f.pixels = [DisplayWidth * DisplayHeight]bool{}
}

// Flip toggles the pixel at (x, y) and reports whether it was on before.
func (f *FrameBuffer) Flip(x, y int) bool {
	i := f.index(x, y)
	was := f.pixels[i]
	f.pixels[i] = !was
	return was
}

// Pixel reports whether the pixel at (x, y) is on. Coordinates wrap.
func (f *FrameBuffer) Pixel(x, y int) bool {
	return f.pixels[f.index(x, y)]
}

// LitCount returns the number of pixels that are on.
func (f *FrameBuffer) LitCount() int {
	n := 0
	for _, p := range f.pixels {
		if p {
			n++
		}
	}
	return n
}

// Pixels returns a row-major copy of the grid.
func (f *FrameBuffer) Pixels() []bool {
	out := make([]bool, len(f.pixels))
	copy(out, f.pixels[:])
	return out
}

// LoadPixels replaces the grid from a row-major slice.
func (f *FrameBuffer) LoadPixels(pixels []bool) error {
	if len(pixels) != len(f.pixels) {
		return fmt.Errorf("frame buffer: got %d pixels, want %d", len(pixels), len(f.pixels))
	}
	copy(f.pixels[:], pixels)
	return nil
}

// String renders the grid as text, '#' for lit pixels and '.' otherwise.
func (f *FrameBuffer) String() string {
	var sb strings.Builder
	sb.Grow((DisplayWidth + 1) * DisplayHeight)
	for y := 0; y < DisplayHeight; y++ {
		for x := 0; x < DisplayWidth; x++ {
			if f.pixels[y*DisplayWidth+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *FrameBuffer) index(x, y int) int {
	x = ((x % DisplayWidth) + DisplayWidth) % DisplayWidth
	y = ((y % DisplayHeight) + DisplayHeight) % DisplayHeight
	return y*DisplayWidth + x
}

// PixelStore is implemented by displays whose contents can be captured in
// and restored from a Snapshot.
type PixelStore interface {
	Pixels() []bool
	LoadPixels(pixels []bool) error
}

// drawSprite XORs sprite rows onto d with the top-left corner at (x, y).
// The origin and every pixel wrap around both axes. It returns true if any
// lit pixel was turned off.
func drawSprite(d Display, sprite []byte, x, y uint8) bool {
	w, h := d.Width(), d.Height()
	ox := int(x) % w
	oy := int(y) % h

	collided := false
	for row, bits := range sprite {
		py := (oy + row) % h
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			if d.Flip((ox+col)%w, py) {
				collided = true
			}
		}
	}
	return collided
}
