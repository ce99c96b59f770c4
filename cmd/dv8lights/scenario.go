package main

import (
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/dv8lights/internal/scenario"
)

// Scenario control actions sent by signals while `sim` runs.
const (
	actionToggle = "toggle"
	actionStop   = "stop"
)

func scenarioControl(p *scenario.Player, action string) {
	switch action {
	case actionToggle:
		if p.State() == scenario.Paused {
			p.Resume()
		} else {
			p.Pause()
		}
	case actionStop:
		p.Stop()
	default:
		return
	}
	log.Info().Str("action", action).Str("state", string(p.State())).
		Float64("at_s", p.Position()).Msg("scenario control")
}
