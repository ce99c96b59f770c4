package led

import (
	"image"
	"image/color"
	"sync"

	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/dv8lights/internal/render"
)

// Screen prints frames to the terminal as a row of colored blocks.
type Screen struct {
	mu  sync.Mutex
	d   *screen.Dev
	img *image.NRGBA
}

func NewScreen(count int) *Screen {
	return &Screen{
		d:   screen.New(count),
		img: image.NewNRGBA(image.Rect(0, 0, count, 1)),
	}
}

func (s *Screen) Write(f render.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for x := 0; x < s.img.Rect.Max.X; x++ {
		var c render.Color
		if x < len(f) {
			c = f[x]
		}
		s.img.SetNRGBA(x, 0, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	}
	return s.d.Draw(s.d.Bounds(), s.img, image.Point{})
}

func (s *Screen) Close() error { return s.d.Halt() }
