package led

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/dv8lights/internal/render"
)

// Sim keeps the last frame in memory and logs a compact summary of each
// frame (first pixel and average) at debug level.
type Sim struct {
	name string
	log  zerolog.Logger

	mu    sync.Mutex
	last  render.Frame
	count int
}

func NewSim(name string, log zerolog.Logger) *Sim {
	return &Sim{name: name, log: log}
}

func (d *Sim) Write(f render.Frame) error {
	d.mu.Lock()
	d.count++
	d.last = append(d.last[:0], f...)
	n := d.count
	d.mu.Unlock()

	if e := d.log.Debug(); e.Enabled() {
		var r, g, b float64
		for _, c := range f {
			r += float64(c.R)
			g += float64(c.G)
			b += float64(c.B)
		}
		px := float64(max(len(f), 1))
		first := render.Color{}
		if len(f) > 0 {
			first = f[0]
		}
		e.Str("array", d.name).Int("frame", n).
			Floats64("avg", []float64{r / px, g / px, b / px}).
			Stringer("first", first).
			Msg("sim frame")
	}
	return nil
}

// Last returns a copy of the last frame and how many frames were written.
func (d *Sim) Last() (render.Frame, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(render.Frame(nil), d.last...), d.count
}

func (d *Sim) Close() error { return nil }
