package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/dv8lights/internal/config"
	"github.com/coreman2200/dv8lights/internal/expressions"
	"github.com/coreman2200/dv8lights/internal/layout"
	"github.com/coreman2200/dv8lights/internal/led"
	"github.com/coreman2200/dv8lights/internal/policy"
	"github.com/coreman2200/dv8lights/internal/render"
	"github.com/coreman2200/dv8lights/internal/selftest"
	"github.com/coreman2200/dv8lights/internal/transport"
)

func selftestCmd() *cobra.Command {
	var (
		array   string
		pattern string
		period  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run a wiring test pattern on one LED array",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kind, err := selftest.ParseKind(pattern)
			if err != nil {
				return err
			}
			var out config.Output
			switch array {
			case render.ArrayLight:
				out = cfg.Light.Output
			case render.ArrayPanel:
				out = cfg.Panel.Output
			default:
				return fmt.Errorf("unknown array %q", array)
			}
			d, err := led.Open(array, out, log.Logger)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			plan := selftest.Plan{
				Kind:  kind,
				Count: out.Count,
				Strip: layout.Strip{Count: cfg.Light.Count, GapStart: cfg.Light.GapStart, GapEnd: cfg.Light.GapEnd},
			}
			log.Info().Str("array", array).Str("pattern", string(kind)).Msg("self-test started")
			if err := selftest.Run(ctx, d, plan, period); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info().Msg("self-test done")
			return nil
		},
	}
	cmd.Flags().StringVar(&array, "array", render.ArrayLight, "array to test: light or panel")
	cmd.Flags().StringVar(&pattern, "pattern", string(selftest.IndexSweep), "index_sweep, rgb_channels, gap_check or eye_sweep")
	cmd.Flags().DurationVar(&period, "period", 100*time.Millisecond, "time per pattern step")
	return cmd
}

func publishCmd() *cobra.Command {
	var key, value string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one update to the broker, e.g. --key robot_mode --value 3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// JSON values pass through; anything else is sent as a string
			var v any
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				v = value
			}
			opts := transport.FromConfig(cfg.MQTT)
			opts.ClientID = ""
			p := transport.NewPublisher(opts)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := p.Connect(ctx); err != nil {
				return err
			}
			defer p.Close()
			return p.PublishKey(key, v)
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "channel key (robot_mode, e_stop, led_light, ...)")
	cmd.Flags().StringVarP(&value, "value", "v", "", "value; JSON objects for led_light and led_panel")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func facesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "faces",
		Short: "Print the expression library",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for f := policy.FaceEmpty; f < policy.FaceCount; f++ {
				m := expressions.For(f)
				fmt.Fprintf(w, "%s (%d lit)\n%s\n", f, expressions.Lit(m), expressions.Render(m))
			}
		},
	}
}

func configCmd() *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if write != "" {
				return config.Save(write, cfg)
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "write the configuration to this path instead")
	return cmd
}

