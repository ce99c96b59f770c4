package render

import (
	"sync/atomic"

	"github.com/coreman2200/dv8lights/internal/statebus"
)

type Color = statebus.RGB

// Frame is one pixel per LED, in wire order.
type Frame []Color

// Driver abstracts the LED transport (SPI, etc.).
type Driver interface {
	Write(Frame) error
	Close() error
}

// Array names used in logs, metrics and the status stream.
const (
	ArrayLight = "light"
	ArrayPanel = "panel"
)

// Observer sees every pushed frame. The frame is only valid for the call.
type Observer func(array string, f Frame)

// Scale multiplies each channel by k and truncates toward zero.
func Scale(c Color, k float64) Color {
	return Color{R: scaleByte(c.R, k), G: scaleByte(c.G, k), B: scaleByte(c.B, k)}
}

func scaleByte(v uint8, k float64) uint8 {
	x := float64(v) * k
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	}
	return uint8(x)
}

// ColorCell publishes one color from a single writer to any number of
// readers. The three channels travel in one word so a load is never torn.
type ColorCell struct{ v atomic.Uint32 }

func (c *ColorCell) Store(col Color) {
	c.v.Store(uint32(col.R)<<16 | uint32(col.G)<<8 | uint32(col.B))
}

func (c *ColorCell) Load() Color {
	v := c.v.Load()
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}
