package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/dv8lights/internal/config"
	"github.com/coreman2200/dv8lights/internal/ingest"
	"github.com/coreman2200/dv8lights/internal/layout"
	"github.com/coreman2200/dv8lights/internal/led"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/render"
	"github.com/coreman2200/dv8lights/internal/scenario"
	"github.com/coreman2200/dv8lights/internal/statebus"
	"github.com/coreman2200/dv8lights/internal/status"
	"github.com/coreman2200/dv8lights/internal/transport"
)

func runCmd() *cobra.Command {
	var sim bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Subscribe to the robot broker and drive both LED arrays",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if sim {
				cfg.Light.Driver, cfg.Panel.Driver = "sim", "sim"
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
	cmd.Flags().BoolVar(&sim, "sim", false, "force simulated LED drivers")
	return cmd
}

func simCmd() *cobra.Command {
	var (
		path     string
		driver   string
		interval time.Duration
		startAt  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Play a scenario file into the controller without a broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			prog, err := scenario.LoadFile(path)
			if err != nil {
				return err
			}
			cfg.Light.Driver, cfg.Panel.Driver = driver, driver
			if driver == "screen" {
				// one terminal line is enough for a preview
				cfg.Panel.Driver = "sim"
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, &simSource{prog: prog, interval: interval, startAt: startAt})
		},
	}
	cmd.Flags().StringVarP(&path, "scenario", "s", "", "scenario YAML file")
	cmd.Flags().StringVar(&driver, "driver", "sim", "driver for both arrays: sim or screen")
	cmd.Flags().DurationVar(&interval, "tick", 50*time.Millisecond, "scenario tick interval")
	cmd.Flags().DurationVar(&startAt, "start-at", 0, "begin the scenario at this program time")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

// broker is the part of transport.Subscriber that serve drives.
type broker interface {
	Connect(ctx context.Context) error
	Close()
}

var newSubscriber = func(o transport.Options, topics []string, h transport.Handler) broker {
	return transport.NewSubscriber(o, topics, h)
}

var errScenarioDone = errors.New("scenario finished")

// simSource replaces the broker with a scenario player feeding the ingestor.
type simSource struct {
	prog     scenario.Program
	interval time.Duration
	startAt  time.Duration
}

// serve wires the bus, ingestor, renderers and status surfaces and runs them
// until ctx ends. Updates come from the broker unless src is set.
func serve(ctx context.Context, cfg *config.Config, src *simSource) error {
	bus := statebus.New()
	cell := &render.ColorCell{}

	lightDrv, err := led.Open(render.ArrayLight, cfg.Light.Output, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("light driver init failed")
	}
	defer lightDrv.Close()
	panelDrv, err := led.Open(render.ArrayPanel, cfg.Panel.Output, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("panel driver init failed")
	}
	defer panelDrv.Close()

	// panel is set below; status readers only call Face once running
	var panel *render.PanelRenderer
	srcs := status.Sources{Bus: bus, Color: cell, Face: func() policy.Face { return panel.Face() }}

	var ing *ingest.Ingestor
	handle := func(topic string, payload []byte) { ing.Handle(topic, payload) }
	srv := status.NewServer(srcs, log.Logger, status.WithInject(handle))
	ing = ingest.New(bus,
		ingest.WithLogger(log.With().Str("component", "ingest").Logger()),
		ingest.WithDiagnostics(srv.Diagnostic),
	)

	light, err := render.NewLightRenderer(bus, cell, output(lightDrv, cfg.Light.Output, srv), render.LightConfig{
		Strip:       layout.Strip{Count: cfg.Light.Count, GapStart: cfg.Light.GapStart, GapEnd: cfg.Light.GapEnd},
		Brightness:  cfg.Light.Brightness,
		Period:      cfg.Light.Period,
		BlinkPeriod: cfg.Light.BlinkPeriod,
	})
	if err != nil {
		return err
	}
	faces := policy.NewFaceTimer(policy.WithHold(cfg.Face.MinHold, cfg.Face.MaxHold))
	panel, err = render.NewPanelRenderer(bus, cell, faces, output(panelDrv, cfg.Panel.Output, srv), render.PanelConfig{
		Brightness: cfg.Panel.Brightness,
		FPS:        cfg.Panel.FPS,
	})
	if err != nil {
		return err
	}

	// startup blocks on the broker; nothing renders or serves until then
	var sub broker
	if src == nil {
		sub = newSubscriber(transport.FromConfig(cfg.MQTT), ingest.Topics(), handle)
		if err := sub.Connect(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return light.Run(ctx) })
	g.Go(func() error { return panel.Run(ctx) })
	g.Go(func() error { return status.NewReporter(srcs, log.Logger, cfg.Status.Interval).Run(ctx) })
	if cfg.Status.Addr != "" {
		g.Go(func() error { return srv.Run(ctx, cfg.Status.Addr) })
	}

	if src != nil {
		g.Go(func() error {
			p := scenario.NewPlayer(scenario.Hooks{
				Publish: handle,
				OnStep: func(i int, s scenario.Step) {
					log.Info().Int("step", i).Str("name", s.Name).Msg("scenario step")
				},
			})
			if err := p.Load(src.prog); err != nil {
				return err
			}
			p.StartAt(src.startAt.Seconds())
			go watchScenario(ctx, p)
			if err := p.Run(ctx, src.interval); err != nil {
				return err
			}
			log.Info().Msg("scenario finished")
			return errScenarioDone
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			sub.Close()
			return ctx.Err()
		})
	}

	log.Info().Str("light", cfg.Light.Driver).Str("panel", cfg.Panel.Driver).Msg("dv8lights running")
	err = g.Wait()
	log.Info().Msg("shutting down")
	if errors.Is(err, context.Canceled) || errors.Is(err, errScenarioDone) {
		return nil
	}
	return err
}

func output(d render.Driver, o config.Output, srv *status.Server) render.Output {
	return render.Output{
		Driver:  d,
		Log:     log.With().Str("component", "render").Logger(),
		Diag:    srv.Diagnostic,
		Observe: srv.Observe,
		Limiter: &render.Limiter{BudgetMA: o.BudgetMA, ChannelMA: o.ChannelMA, Knee: 0.9},
	}
}
