package status

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/dv8lights/internal/statebus"
)

// Registers flattens the scalar registers of snap by register name.
func Registers(snap statebus.Snapshot) map[string]any {
	return map[string]any{
		statebus.LinearVelocity.String():    snap.LinearVelocity,
		statebus.AngularVelocity.String():   snap.AngularVelocity,
		statebus.BatteryPercentage.String(): snap.BatteryPercentage,
		statebus.BrushSpeed.String():        snap.BrushSpeed,
		statebus.BatteryIsCharging.String(): snap.BatteryIsCharging,
		statebus.EStop.String():             snap.EStop,
		statebus.Handbrake.String():         snap.Handbrake,
		statebus.DirectStatus.String():      snap.DirectStatus,
		statebus.SafetyMode.String():        snap.SafetyMode,
		statebus.RobotMode.String():         int32(snap.RobotMode),
	}
}

// Reporter logs a status line at a fixed interval.
type Reporter struct {
	src      Sources
	log      zerolog.Logger
	interval time.Duration
}

func NewReporter(src Sources, log zerolog.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{src: src, log: log.With().Str("component", "report").Logger(), interval: interval}
}

// Report writes one status line.
func (r *Reporter) Report() {
	snap := r.src.Bus.Snapshot()
	e := r.log.Info().
		Fields(Registers(snap)).
		Str("mode", snap.RobotMode.String()).
		Uint64("bus_version", snap.Version)
	if r.src.Color != nil {
		e = e.Stringer("current_color", r.src.Color.Load())
	}
	if r.src.Face != nil {
		e = e.Stringer("face", r.src.Face())
	}
	if snap.Light.Enabled {
		e = e.Stringer("light_override", snap.Light.Color)
	}
	if snap.Panel.Enabled {
		e = e.Stringer("panel_override", snap.Panel.Color)
	}
	e.Msg("status")
}

func (r *Reporter) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.Report()
		}
	}
}
