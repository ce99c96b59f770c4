// Package expressions holds the face panel's eye masks. Every mask is built
// once at init on a two-eye canvas and then only read.
package expressions

import (
	"strings"

	"github.com/coreman2200/dv8lights/internal/layout"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/statebus"
)

// Mask is one boolean per panel pixel, in wire order.
type Mask = [statebus.PanelPixels]bool

type Eye uint8

const (
	EyeLeft Eye = 1 << iota
	EyeRight
	EyeBoth = EyeLeft | EyeRight
)

const side = 7

// canvas draws in eye coordinates: x to the right, y down.
type canvas struct {
	px [2][side][side]bool
}

func (c *canvas) SetPoint(e Eye, x, y int, on bool) {
	if x < 0 || y < 0 || x >= side || y >= side {
		return
	}
	for z := 0; z < 2; z++ {
		if e&(1<<z) != 0 {
			c.px[z][y][x] = on
		}
	}
}

// SetArea sets the inclusive rectangle x0..x1, y0..y1.
func (c *canvas) SetArea(e Eye, x0, x1, y0, y1 int, on bool) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c.SetPoint(e, x, y, on)
		}
	}
}

func (c *canvas) Mask() Mask {
	var m Mask
	for z := 0; z < 2; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				if i := layout.Panel.Index(x, y, z); i >= 0 {
					m[i] = c.px[z][y][x]
				}
			}
		}
	}
	return m
}

var library [policy.FaceCount]Mask

func init() {
	draw := func(f policy.Face, fn func(c *canvas)) {
		var c canvas
		fn(&c)
		library[f] = c.Mask()
	}

	draw(policy.FaceEmpty, func(c *canvas) {})
	draw(policy.FaceIdle, func(c *canvas) { c.SetArea(EyeBoth, 2, 4, 1, 5, true) })
	draw(policy.FaceLeft, func(c *canvas) { c.SetArea(EyeBoth, 1, 3, 1, 5, true) })
	draw(policy.FaceRight, func(c *canvas) { c.SetArea(EyeBoth, 3, 5, 1, 5, true) })
	draw(policy.FaceVeryLeft, func(c *canvas) { c.SetArea(EyeBoth, 0, 2, 1, 5, true) })
	draw(policy.FaceVeryRight, func(c *canvas) { c.SetArea(EyeBoth, 4, 6, 1, 5, true) })
	draw(policy.FaceHappy, func(c *canvas) {
		// upturned arcs
		c.SetPoint(EyeBoth, 3, 2, true)
		c.SetPoint(EyeBoth, 2, 3, true)
		c.SetPoint(EyeBoth, 4, 3, true)
		c.SetPoint(EyeBoth, 1, 4, true)
		c.SetPoint(EyeBoth, 5, 4, true)
	})
	draw(policy.FaceAngry, func(c *canvas) {
		c.SetArea(EyeBoth, 2, 4, 2, 5, true)
		// brows slope down toward the nose
		c.SetPoint(EyeLeft, 4, 2, false)
		c.SetPoint(EyeLeft, 4, 3, false)
		c.SetPoint(EyeLeft, 3, 2, false)
		c.SetPoint(EyeRight, 2, 2, false)
		c.SetPoint(EyeRight, 2, 3, false)
		c.SetPoint(EyeRight, 3, 2, false)
	})
	draw(policy.FaceDead, func(c *canvas) {
		for i := 1; i <= 5; i++ {
			c.SetPoint(EyeBoth, i, i, true)
			c.SetPoint(EyeBoth, 6-i, i, true)
		}
	})
}

// For returns the mask for f. Unknown faces are empty.
func For(f policy.Face) Mask {
	if f >= policy.FaceCount {
		return Mask{}
	}
	return library[f]
}

// Render draws m as text, both eyes side by side, for logs and the CLI.
func Render(m Mask) string {
	var b strings.Builder
	for y := 0; y < side; y++ {
		for z := 0; z < 2; z++ {
			if z == 1 {
				b.WriteString("  ")
			}
			for x := 0; x < side; x++ {
				if m[layout.Panel.Index(x, y, z)] {
					b.WriteString("⚪")
				} else {
					b.WriteString("⚫")
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Lit counts the set pixels in m.
func Lit(m Mask) int {
	n := 0
	for _, on := range m {
		if on {
			n++
		}
	}
	return n
}
