package render

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/coreman2200/dv8lights/internal/expressions"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/statebus"
)

type PanelConfig struct {
	Brightness float64
	FPS        int
}

func DefaultPanelConfig() PanelConfig {
	return PanelConfig{Brightness: 1.0, FPS: 30}
}

// PanelRenderer draws the two-eye face panel.
type PanelRenderer struct {
	bus   *statebus.Bus
	cell  *ColorCell
	cfg   PanelConfig
	faces *policy.FaceTimer
	eng   *engine

	face  policy.Face
	shown atomic.Uint32
	frame Frame
}

func NewPanelRenderer(bus *statebus.Bus, cell *ColorCell, faces *policy.FaceTimer, out Output, cfg PanelConfig) (*PanelRenderer, error) {
	if bus == nil || cell == nil {
		return nil, errors.New("render: panel renderer needs a bus and a color cell")
	}
	if faces == nil {
		faces = policy.NewFaceTimer()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	eng, err := newEngine(ArrayPanel, out)
	if err != nil {
		return nil, err
	}
	return &PanelRenderer{
		bus:   bus,
		cell:  cell,
		cfg:   cfg,
		faces: faces,
		eng:   eng,
		face:  policy.FaceEmpty,
		frame: make(Frame, statebus.PanelPixels),
	}, nil
}

// Face is the expression drawn by the last Step. Safe from any goroutine.
func (r *PanelRenderer) Face() policy.Face { return policy.Face(r.shown.Load()) }

// Step computes the frame for now. An unknown robot mode keeps the previous
// face.
func (r *PanelRenderer) Step(now time.Time) Frame {
	s := r.bus.Snapshot()
	state := r.faces.TickAt(now)
	if f, ok := policy.SelectFace(s, state); ok {
		r.face = f
	}
	r.shown.Store(uint32(r.face))

	if s.Panel.Enabled {
		fill(r.frame, s.Panel.Mask, Scale(s.Panel.Color, r.cfg.Brightness))
		return r.frame
	}
	fill(r.frame, expressions.For(r.face), Scale(r.cell.Load(), r.cfg.Brightness))
	return r.frame
}

func fill(dst Frame, mask expressions.Mask, c Color) {
	for i := range dst {
		if i < len(mask) && mask[i] {
			dst[i] = c
		} else {
			dst[i] = Color{}
		}
	}
}

// Run pushes frames at the configured rate until ctx is done.
func (r *PanelRenderer) Run(ctx context.Context) error {
	period := time.Second / time.Duration(r.cfg.FPS)
	r.eng.out.Log.Info().Int("fps", r.cfg.FPS).Msg("panel renderer started")
	err := loop(ctx, period, func(now time.Time) {
		_ = r.eng.push(r.Step(now))
	})
	r.eng.blank(len(r.frame))
	r.eng.out.Log.Info().Msg("panel renderer stopped")
	return err
}
