package render

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/coreman2200/dv8lights/internal/diagnostics"
	"github.com/coreman2200/dv8lights/internal/expressions"
	"github.com/coreman2200/dv8lights/internal/metrics"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/statebus"
)

// fakeDriver captures the last frame written.
type fakeDriver struct {
	last  Frame
	count int
	err   error
}

func (d *fakeDriver) Write(f Frame) error {
	if d.err != nil {
		return d.err
	}
	d.count++
	d.last = make(Frame, len(f))
	copy(d.last, f)
	return nil
}

func (d *fakeDriver) Close() error { return nil }

func newLight(t *testing.T, bus *statebus.Bus, cell *ColorCell, drv Driver) *LightRenderer {
	t.Helper()
	r, err := NewLightRenderer(bus, cell, Output{Driver: drv, Log: zerolog.Nop()}, DefaultLightConfig())
	if err != nil {
		t.Fatalf("light: %v", err)
	}
	return r
}

func newPanel(t *testing.T, bus *statebus.Bus, cell *ColorCell, drv Driver) *PanelRenderer {
	t.Helper()
	faces := policy.NewFaceTimer(policy.WithRand(rand.New(rand.NewPCG(3, 4))))
	r, err := NewPanelRenderer(bus, cell, faces, Output{Driver: drv, Log: zerolog.Nop()}, DefaultPanelConfig())
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	return r
}

func TestScaleTruncates(t *testing.T) {
	got := Scale(Color{R: 255, G: 41, B: 1}, 0.5)
	if got != (Color{R: 127, G: 20, B: 0}) {
		t.Fatalf("scale: got %v", got)
	}
	if Scale(Color{R: 200}, 2) != (Color{R: 255}) {
		t.Fatalf("scale should saturate")
	}
}

func TestColorCell(t *testing.T) {
	var c ColorCell
	if !c.Load().IsZero() {
		t.Fatalf("zero cell should load black")
	}
	c.Store(Color{R: 1, G: 2, B: 3})
	if c.Load() != (Color{R: 1, G: 2, B: 3}) {
		t.Fatalf("cell: got %v", c.Load())
	}
}

func TestColorCellNeverTorn(t *testing.T) {
	var c ColorCell
	colors := []Color{{R: 10, G: 10, B: 10}, {R: 200, G: 200, B: 200}}
	c.Store(colors[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			c.Store(colors[i%2])
		}
	}()

	for i := 0; i < 20000; i++ {
		got := c.Load()
		if got != colors[0] && got != colors[1] {
			t.Fatalf("torn load %v", got)
		}
	}
	close(stop)
	wg.Wait()
}

// lockedDriver is a fakeDriver safe for a renderer loop and the test
// goroutine at once. check runs on every written frame.
type lockedDriver struct {
	mu    sync.Mutex
	count int
	check func(Frame) error
	err   error
}

func (d *lockedDriver) Write(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	if d.err == nil && d.check != nil {
		d.err = d.check(f)
	}
	return nil
}

func (d *lockedDriver) Close() error { return nil }

func (d *lockedDriver) result() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count, d.err
}

func TestRenderersRunTogether(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.RobotMode, int64(statebus.ModeError))
	cell := &ColorCell{}

	panelDrv := &lockedDriver{check: func(f Frame) error {
		for i, c := range f {
			if c != (Color{}) && c != policy.AlarmRed && c != policy.Amber {
				return fmt.Errorf("pixel %d: %v is neither body color", i, c)
			}
		}
		return nil
	}}
	lightDrv := &lockedDriver{}

	cfg := DefaultLightConfig()
	cfg.Period = time.Millisecond
	light, err := NewLightRenderer(bus, cell, Output{Driver: lightDrv, Log: zerolog.Nop()}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	faces := policy.NewFaceTimer(policy.WithRand(rand.New(rand.NewPCG(5, 6))))
	panel, err := NewPanelRenderer(bus, cell, faces, Output{Driver: panelDrv, Log: zerolog.Nop()}, PanelConfig{Brightness: 1, FPS: 240})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = light.Run(ctx) }()
	go func() { defer wg.Done(); _ = panel.Run(ctx) }()

	deadline := time.Now().Add(300 * time.Millisecond)
	for i := int64(0); time.Now().Before(deadline); i++ {
		bus.SetInt(statebus.EStop, i%2)
		time.Sleep(time.Millisecond)
	}
	cancel()
	wg.Wait()

	n, err := panelDrv.result()
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Fatalf("panel pushed %d frames", n)
	}
	if n, _ := lightDrv.result(); n < 2 {
		t.Fatalf("light pushed %d frames", n)
	}
	if panel.Face() != policy.FaceDead {
		t.Fatalf("error mode face: %v", panel.Face())
	}
}

func TestLightEStopAndGap(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.EStop, 1)
	cell := &ColorCell{}
	r := newLight(t, bus, cell, &fakeDriver{})

	f := r.Step(time.Unix(0, 0))
	if len(f) != 120 {
		t.Fatalf("frame length %d", len(f))
	}
	for i, c := range f {
		want := Color{R: 127}
		if i >= 15 && i <= 35 {
			want = Color{}
		}
		if c != want {
			t.Fatalf("pixel %d: got %v want %v", i, c, want)
		}
	}
	if cell.Load() != policy.AlarmRed {
		t.Fatalf("current color: got %v", cell.Load())
	}
}

func TestLightChargingBlinks(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.BatteryIsCharging, 1)
	cell := &ColorCell{}
	r := newLight(t, bus, cell, &fakeDriver{})

	start := time.Unix(100, 0)
	want := []bool{false, true, false, true}
	for i, lit := range want {
		f := r.Step(start.Add(time.Duration(i) * time.Second))
		if got := !f[0].IsZero(); got != lit {
			t.Fatalf("cycle %d: lit=%v want %v", i, got, lit)
		}
		if cell.Load() != policy.ChargingGreen {
			t.Fatalf("cycle %d: current color %v, blink must not clear it", i, cell.Load())
		}
	}
}

func TestLightOverrideIgnoresPolicy(t *testing.T) {
	for _, mode := range []statebus.Mode{statebus.ModeClear, statebus.ModeError, statebus.ModeLitterPicking} {
		for _, estop := range []int64{0, 1} {
			for _, direct := range []int64{0, 1} {
				bus := statebus.New()
				bus.SetInt(statebus.RobotMode, int64(mode))
				bus.SetInt(statebus.EStop, estop)
				bus.SetInt(statebus.DirectStatus, direct)
				bus.UpdateLightOverride(func(o *statebus.Override) {
					o.Enabled = true
					o.Color = Color{R: 10, G: 20, B: 30}
				})
				cell := &ColorCell{}
				r := newLight(t, bus, cell, &fakeDriver{})
				for step := 0; step < 3; step++ {
					f := r.Step(time.Unix(int64(step), 0))
					if f[0] != (Color{R: 5, G: 10, B: 15}) || !f[20].IsZero() {
						t.Fatalf("mode=%v estop=%d direct=%d: got %v", mode, estop, direct, f[0])
					}
				}
				if cell.Load() != policy.BodyColor(bus.Snapshot()).Color {
					t.Fatalf("current color should follow policy, got %v", cell.Load())
				}
			}
		}
	}
}

func TestLightExplicitBlackOverride(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.EStop, 1)
	bus.UpdateLightOverride(func(o *statebus.Override) { o.Enabled = true })
	r := newLight(t, bus, &ColorCell{}, &fakeDriver{})
	if f := r.Step(time.Unix(0, 0)); !f[0].IsZero() {
		t.Fatalf("enabled black override should draw black, got %v", f[0])
	}
}

func TestLightUnknownModeHoldsColor(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.RobotMode, int64(statebus.ModeError))
	cell := &ColorCell{}
	r := newLight(t, bus, cell, &fakeDriver{})
	r.Step(time.Unix(0, 0))

	bus.SetInt(statebus.RobotMode, 5)
	r.Step(time.Unix(1, 0))
	if cell.Load() != policy.Amber {
		t.Fatalf("unknown mode should hold amber, got %v", cell.Load())
	}
}

func TestLitterPickingEndToEnd(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.RobotMode, int64(statebus.ModeLitterPicking))
	cell := &ColorCell{}
	light := newLight(t, bus, cell, &fakeDriver{})
	panel := newPanel(t, bus, cell, &fakeDriver{})

	start := time.Unix(0, 0)
	var phases []bool
	for i := 0; i < 4; i++ {
		phases = append(phases, !light.Step(start.Add(time.Duration(i)*time.Second))[0].IsZero())
	}
	if phases[0] || !phases[1] || phases[2] || !phases[3] {
		t.Fatalf("expected off/on alternation, got %v", phases)
	}

	f := panel.Step(start)
	if panel.Face() != policy.FaceAngry {
		t.Fatalf("face: got %v", panel.Face())
	}
	mask := expressions.For(policy.FaceAngry)
	for i, c := range f {
		want := Color{}
		if mask[i] {
			want = policy.ManualBlue
		}
		if c != want {
			t.Fatalf("pixel %d: got %v want %v", i, c, want)
		}
	}
}

func TestPanelOverrideUsesMask(t *testing.T) {
	bus := statebus.New()
	bus.UpdatePanelOverride(func(o *statebus.PanelOverride) {
		o.Enabled = true
		o.Color = Color{G: 200}
		o.Mask[0] = true
		o.Mask[97] = true
	})
	r := newPanel(t, bus, &ColorCell{}, &fakeDriver{})
	f := r.Step(time.Unix(0, 0))
	lit := 0
	for _, c := range f {
		if !c.IsZero() {
			lit++
		}
	}
	if lit != 2 || f[0] != (Color{G: 200}) || f[97] != (Color{G: 200}) {
		t.Fatalf("override frame: lit=%d first=%v last=%v", lit, f[0], f[97])
	}
}

func TestPanelUnknownModeKeepsFace(t *testing.T) {
	bus := statebus.New()
	bus.SetInt(statebus.RobotMode, int64(statebus.ModeError))
	r := newPanel(t, bus, &ColorCell{}, &fakeDriver{})
	r.Step(time.Unix(0, 0))
	bus.SetInt(statebus.RobotMode, 5)
	r.Step(time.Unix(1, 0))
	if r.Face() != policy.FaceDead {
		t.Fatalf("face: got %v", r.Face())
	}
}

func TestPushFailureIsReported(t *testing.T) {
	drv := &fakeDriver{err: errors.New("bus fault")}
	var got []diagnostics.Diagnostic
	observed := 0
	eng, err := newEngine(ArrayLight, Output{
		Driver:  drv,
		Log:     zerolog.Nop(),
		Diag:    func(d diagnostics.Diagnostic) { got = append(got, d) },
		Observe: func(string, Frame) { observed++ },
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := eng.push(make(Frame, 4)); err == nil {
			t.Fatalf("push should fail")
		}
	}
	if len(got) != 1 || got[0].Code != diagnostics.CodePush {
		t.Fatalf("expected one rate limited diagnostic, got %v", got)
	}
	if observed != 0 {
		t.Fatalf("failed frames must not reach observers")
	}

	drv.err = nil
	if err := eng.push(make(Frame, 4)); err != nil || observed != 1 {
		t.Fatalf("recovered push: err=%v observed=%d", err, observed)
	}
}

func TestPushRecordsTiming(t *testing.T) {
	eng, err := newEngine("timing", Output{Driver: &fakeDriver{}, Log: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	series := testutil.CollectAndCount(metrics.PushDuration)
	if err := eng.push(make(Frame, 2)); err != nil {
		t.Fatal(err)
	}
	if got := testutil.CollectAndCount(metrics.PushDuration); got != series+1 {
		t.Fatalf("push duration series: %d -> %d", series, got)
	}
	if n := testutil.ToFloat64(metrics.FramesPushed.WithLabelValues("timing")); n != 1 {
		t.Fatalf("frames pushed: %v", n)
	}
}

func TestNilDriverRejected(t *testing.T) {
	if _, err := NewLightRenderer(statebus.New(), &ColorCell{}, Output{}, DefaultLightConfig()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	bus := statebus.New()
	drv := &fakeDriver{}
	cfg := DefaultLightConfig()
	cfg.Period = 5 * time.Millisecond
	r, err := NewLightRenderer(bus, &ColorCell{}, Output{Driver: drv, Log: zerolog.Nop()}, cfg)
	if err != nil {
		t.Fatalf("light: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}
	if drv.count < 2 {
		t.Fatalf("expected several frames, got %d", drv.count)
	}
}
