// Package render turns bus state into LED frames and pushes them.
//
// Each array has one renderer loop. The light renderer owns CurrentColor;
// the panel renderer only reads it through a ColorCell.
package render

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/coreman2200/dv8lights/internal/diagnostics"
	"github.com/coreman2200/dv8lights/internal/metrics"
)

// Output is where a renderer sends its frames.
type Output struct {
	Driver  Driver
	Log     zerolog.Logger
	Diag    diagnostics.Sink
	Observe Observer
	Limiter *Limiter
}

// engine is the push path shared by both renderers: post stages, the driver
// write, timing and error accounting.
type engine struct {
	array string
	out   Output
	errs  *rate.Limiter
}

func newEngine(array string, out Output) (*engine, error) {
	if out.Driver == nil {
		return nil, errors.New("render: nil driver for " + array)
	}
	if out.Diag == nil {
		out.Diag = diagnostics.Discard
	}
	return &engine{
		array: array,
		out:   out,
		errs:  rate.NewLimiter(rate.Every(5*time.Second), 1),
	}, nil
}

// push runs the post stages and writes f. Failures are logged and counted;
// the caller keeps running.
func (e *engine) push(f Frame) error {
	e.out.Limiter.Apply(f)

	start := time.Now()
	err := e.out.Driver.Write(f)
	metrics.PushDuration.WithLabelValues(e.array).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FramePushErrors.WithLabelValues(e.array).Inc()
		if e.errs.Allow() {
			e.out.Log.Error().Err(err).Str("array", e.array).Msg("frame push failed")
			e.out.Diag(diagnostics.Diagnostic{
				Time:     start,
				Severity: diagnostics.Err,
				Code:     diagnostics.CodePush,
				Summary:  "frame push failed",
				Detail:   err.Error(),
				Evidence: map[string]any{"array": e.array, "pixels": len(f)},
			})
		}
		return err
	}
	metrics.FramesPushed.WithLabelValues(e.array).Inc()
	if e.out.Observe != nil {
		e.out.Observe(e.array, f)
	}
	return nil
}

// blank pushes an all-off frame of n pixels.
func (e *engine) blank(n int) {
	if err := e.push(make(Frame, n)); err != nil {
		e.out.Log.Warn().Err(err).Str("array", e.array).Msg("blank on exit failed")
	}
}

// loop calls step on every tick of period until ctx is done. The first
// frame is drawn immediately.
func loop(ctx context.Context, period time.Duration, step func(time.Time)) error {
	t := time.NewTicker(period)
	defer t.Stop()
	step(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			step(now)
		}
	}
}
