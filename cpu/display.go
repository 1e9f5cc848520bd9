package cpu

import (
	"fmt"
	"math/bits"
	"strings"
)

const (
	DISPLAY_WIDTH  = 64
	DISPLAY_HEIGHT = 32
)

var _display_defines = map[string]string{
	"DISPLAY_WIDTH":  fmt.Sprintf("%d", DISPLAY_WIDTH),
	"DISPLAY_HEIGHT": fmt.Sprintf("%d", DISPLAY_HEIGHT),
}

// Display is the monochrome framebuffer, one uint64 per row.
// Bit 63 of a row is the leftmost pixel.
type Display [DISPLAY_HEIGHT]uint64

func pixelMask(x int) uint64 {
	return uint64(1) << (DISPLAY_WIDTH - 1 - (x % DISPLAY_WIDTH))
}

// Clear turns every pixel off.
func (d *Display) Clear() {
	clear(d[:])
}

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	x = ((x % DISPLAY_WIDTH) + DISPLAY_WIDTH) % DISPLAY_WIDTH
	y = ((y % DISPLAY_HEIGHT) + DISPLAY_HEIGHT) % DISPLAY_HEIGHT
	return d[y]&pixelMask(x) != 0
}

// Blit XORs an 8-pixel wide sprite onto the display with its top-left corner
// at (x, y). Pixels that fall off an edge wrap to the opposite edge.
// collision is set if any lit pixel was turned off.
func (d *Display) Blit(x, y int, sprite []byte) (collision bool) {
	for row, line := range sprite {
		py := (y + row) % DISPLAY_HEIGHT
		for bit := range 8 {
			if line&(0x80>>bit) == 0 {
				continue
			}
			mask := pixelMask(x + bit)
			if d[py]&mask != 0 {
				collision = true
			}
			d[py] ^= mask
		}
	}

	return
}

// Lit returns the number of lit pixels.
func (d *Display) Lit() (count int) {
	for _, row := range d {
		count += bits.OnesCount64(row)
	}
	return
}

// String renders the display as rows of '#' (lit) and '.' (dark).
func (d *Display) String() string {
	var sb strings.Builder
	sb.Grow((DISPLAY_WIDTH + 1) * DISPLAY_HEIGHT)
	for y := range DISPLAY_HEIGHT {
		for x := range DISPLAY_WIDTH {
			if d[y]&pixelMask(x) != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
