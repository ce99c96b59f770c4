package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/dv8lights/internal/config"
	"github.com/coreman2200/dv8lights/internal/metrics"
	"github.com/coreman2200/dv8lights/internal/render"
	"github.com/coreman2200/dv8lights/internal/scenario"
	"github.com/coreman2200/dv8lights/internal/transport"
)

func TestFacesCommandPrintsLibrary(t *testing.T) {
	var buf bytes.Buffer
	cmd := facesCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	for _, name := range []string{"empty (0 lit)", "happy", "very_right", "dead (18 lit)"} {
		assert.Contains(t, out, name)
	}
	assert.Equal(t, 9, strings.Count(out, " lit)"))
}

func TestScenarioControl(t *testing.T) {
	p := scenario.NewPlayer(scenario.Hooks{})
	require.NoError(t, p.Load(scenario.Program{Steps: []scenario.Step{{Name: "a", DurationS: 1}}}))
	p.Start()

	scenarioControl(p, actionToggle)
	assert.Equal(t, scenario.Paused, p.State())
	scenarioControl(p, actionToggle)
	assert.Equal(t, scenario.Running, p.State())
	scenarioControl(p, "rewind")
	assert.Equal(t, scenario.Running, p.State())
	scenarioControl(p, actionStop)
	assert.Equal(t, scenario.Idle, p.State())
}

type fakeBroker struct {
	connect func(ctx context.Context) error
	closed  bool
}

func (b *fakeBroker) Connect(ctx context.Context) error { return b.connect(ctx) }
func (b *fakeBroker) Close() { b.closed = true }

func withBroker(t *testing.T, b *fakeBroker) {
	t.Helper()
	orig := newSubscriber
	newSubscriber = func(transport.Options, []string, transport.Handler) broker { return b }
	t.Cleanup(func() { newSubscriber = orig })
}

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Light.Driver, cfg.Panel.Driver = "sim", "sim"
	cfg.Status.Addr = ""
	return cfg
}

func lightFrames() float64 {
	return testutil.ToFloat64(metrics.FramesPushed.WithLabelValues(render.ArrayLight))
}

func TestServeRendersNothingBeforeBrokerConnects(t *testing.T) {
	b := &fakeBroker{connect: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	withBroker(t, b)
	before := lightFrames()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, serve(ctx, simConfig(), nil))
	assert.Equal(t, before, lightFrames())
}

func TestServeRendersAfterConnect(t *testing.T) {
	b := &fakeBroker{connect: func(context.Context) error { return nil }}
	withBroker(t, b)
	before := lightFrames()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, serve(ctx, simConfig(), nil))
	assert.Greater(t, lightFrames(), before)
	assert.True(t, b.closed)
}
