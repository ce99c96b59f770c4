package render

import (
	"context"
	"errors"
	"time"

	"github.com/coreman2200/dv8lights/internal/layout"
	"github.com/coreman2200/dv8lights/internal/metrics"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/statebus"
)

type LightConfig struct {
	Strip      layout.Strip
	Brightness float64
	Period     time.Duration
	// BlinkPeriod is the length of each blink phase.
	BlinkPeriod time.Duration
}

func DefaultLightConfig() LightConfig {
	return LightConfig{
		Strip:       layout.BodyStrip,
		Brightness:  0.5,
		Period:      time.Second,
		BlinkPeriod: time.Second,
	}
}

// LightRenderer draws the body strip.
type LightRenderer struct {
	bus   *statebus.Bus
	cell  *ColorCell
	cfg   LightConfig
	blink *policy.Blinker
	eng   *engine

	held  Color
	frame Frame
}

func NewLightRenderer(bus *statebus.Bus, cell *ColorCell, out Output, cfg LightConfig) (*LightRenderer, error) {
	if bus == nil || cell == nil {
		return nil, errors.New("render: light renderer needs a bus and a color cell")
	}
	if cfg.Strip.Count <= 0 {
		return nil, errors.New("render: invalid strip length")
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	eng, err := newEngine(ArrayLight, out)
	if err != nil {
		return nil, err
	}
	return &LightRenderer{
		bus:   bus,
		cell:  cell,
		cfg:   cfg,
		blink: policy.NewBlinker(cfg.BlinkPeriod),
		eng:   eng,
		frame: make(Frame, cfg.Strip.Count),
	}, nil
}

// Step computes the frame for now. The returned frame is reused by the next
// call.
func (r *LightRenderer) Step(now time.Time) Frame {
	s := r.bus.Snapshot()
	body := policy.BodyColor(s)
	if body.Hold {
		body.Color = r.held
	}
	r.held = body.Color
	r.cell.Store(body.Color)
	metrics.CurrentColor.WithLabelValues("r").Set(float64(body.Color.R))
	metrics.CurrentColor.WithLabelValues("g").Set(float64(body.Color.G))
	metrics.CurrentColor.WithLabelValues("b").Set(float64(body.Color.B))

	draw := body.Color
	if s.Light.Enabled {
		draw = s.Light.Color
	}
	if !r.blink.Lit(body.Blink && !s.Light.Enabled, now) {
		draw = Color{}
	}
	draw = Scale(draw, r.cfg.Brightness)

	for i := range r.frame {
		if r.cfg.Strip.Reserved(i) {
			r.frame[i] = Color{}
			continue
		}
		r.frame[i] = draw
	}
	return r.frame
}

// Run draws and pushes a frame every period until ctx is done.
func (r *LightRenderer) Run(ctx context.Context) error {
	r.eng.out.Log.Info().Dur("period", r.cfg.Period).Int("pixels", len(r.frame)).Msg("light renderer started")
	err := loop(ctx, r.cfg.Period, func(now time.Time) {
		_ = r.eng.push(r.Step(now))
	})
	r.eng.blank(len(r.frame))
	r.eng.out.Log.Info().Msg("light renderer stopped")
	return err
}

// CurrentColor is the body color last published to the panel.
func (r *LightRenderer) CurrentColor() Color { return r.cell.Load() }
