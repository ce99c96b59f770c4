//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreman2200/dv8lights/internal/scenario"
)

// watchScenario maps SIGUSR1 to pause/resume and SIGUSR2 to stop.
func watchScenario(ctx context.Context, p *scenario.Player) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			if sig == syscall.SIGUSR2 {
				scenarioControl(p, actionStop)
				continue
			}
			scenarioControl(p, actionToggle)
		}
	}
}
