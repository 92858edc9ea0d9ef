package main

import (
	"context"
	"fmt"
	"io"

	"github.com/soulteary/action-guard/config"
	"github.com/soulteary/action-guard/guard"
)

func checkCommand(cfg config.Config, stdout, stderr io.Writer) int {
	a, err := newApp(cfg, guard.DefaultConfig().WithConsole(stderr))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer a.close()

	status := a.backend.Health(context.Background())
	if !status.Healthy {
		fmt.Fprintf(stdout, "%s: unhealthy: %v\n", status.Name, status.Error)
		return exitFailure
	}
	fmt.Fprintf(stdout, "%s: ok (%v)\n", status.Name, status.Latency)
	return exitOK
}
