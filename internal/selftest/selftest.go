// Package selftest drives the LED arrays through wiring check patterns
// without the robot state bus.
package selftest

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/dv8lights/internal/layout"
	"github.com/coreman2200/dv8lights/internal/render"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	GapCheck   Kind = "gap_check"
	EyeSweep   Kind = "eye_sweep"
)

// Kinds lists the patterns in the order the CLI documents them.
var Kinds = []Kind{IndexSweep, RGBTest, GapCheck, EyeSweep}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown self-test pattern %q", s)
}

// Plan picks a pattern and the array it runs on. Strip is only read by
// GapCheck; EyeSweep assumes the panel layout.
type Plan struct {
	Kind   Kind
	Count  int
	Strip  layout.Strip
	Cycles int // RGBTest phases; 0 means one pass of red, green, blue
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step fills f; returns false when complete.
func (r *Runner) Step(f render.Frame) bool {
	n := len(f)
	for i := range f {
		f[i] = render.Color{}
	}

	switch r.plan.Kind {
	case IndexSweep:
		idx := r.step
		if idx >= n {
			return false
		}
		f[idx] = render.Color{R: 255, G: 255, B: 255}
	case RGBTest:
		cycles := r.plan.Cycles
		if cycles <= 0 {
			cycles = 3
		}
		if r.step >= cycles {
			return false
		}
		var c render.Color
		switch r.step % 3 {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		for i := range f {
			f[i] = c
		}
	case GapCheck:
		// lit everywhere the strip may draw; a lit pixel inside the gap is a
		// miswired or misconfigured strip
		if r.step > 0 {
			return false
		}
		for i := range f {
			if !r.plan.Strip.Reserved(i) {
				f[i] = render.Color{G: 255}
			}
		}
	case EyeSweep:
		l := layout.Panel
		row := r.step
		if row >= l.Dim.Y {
			return false
		}
		for z := 0; z < l.Dim.Z; z++ {
			for x := 0; x < l.Dim.X; x++ {
				if i := l.Index(x, row, z); i >= 0 && i < n {
					f[i] = render.Color{G: 255, B: 255} // cyan
				}
			}
		}
	default:
		return false
	}
	r.step++
	return true
}

// Run pushes one pattern step per period to d, then blanks the array.
func Run(ctx context.Context, d render.Driver, plan Plan, period time.Duration) error {
	r := NewRunner(plan)
	f := make(render.Frame, plan.Count)
	t := time.NewTicker(period)
	defer t.Stop()
	for r.Step(f) {
		if err := d.Write(f); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return blank(d, plan.Count, ctx.Err())
		case <-t.C:
		}
	}
	return blank(d, plan.Count, nil)
}

func blank(d render.Driver, n int, err error) error {
	if werr := d.Write(make(render.Frame, n)); werr != nil && err == nil {
		err = werr
	}
	return err
}
