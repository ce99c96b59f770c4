//go:build !unix

package main

import (
	"context"

	"github.com/coreman2200/dv8lights/internal/scenario"
)

// watchScenario is a no-op where SIGUSR1/SIGUSR2 do not exist.
func watchScenario(ctx context.Context, p *scenario.Player) {}
