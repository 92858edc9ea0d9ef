package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/soulteary/action-guard/client"
	"github.com/soulteary/action-guard/config"
	"github.com/soulteary/action-guard/guard"
)

func runCommand(cfg config.Config, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	key := fs.StringP("key", "k", "", "lock key (default: the command line)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	command := fs.Args()
	if len(command) == 0 {
		fmt.Fprintln(stderr, "run: missing command")
		return exitUsage
	}

	// each invocation is its own process, so an in-process table excludes nothing
	switch cfg.Backend.Driver {
	case "", client.DriverLocal, client.DriverNone:
		fmt.Fprintf(stderr, "run: driver %q cannot exclude other processes; configure a shared backend (redis, etcd, nats, mysql, postgres)\n",
			driverName(cfg.Backend.Driver))
		return exitFailure
	}

	gcfg := guard.DefaultConfig().WithConsole(stderr)
	if *key != "" {
		gcfg = gcfg.WithKey(guard.FixedKey(*key))
	}
	a, err := newApp(cfg, gcfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	op := guard.NewAction(strings.Join(command, " "))
	ran, err := a.guard.Do(ctx, op, func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		return cmd.Run()
	})
	return exitCode(ran, err, stderr)
}

func driverName(driver string) string {
	if driver == "" {
		return client.DriverLocal
	}
	return driver
}

func exitCode(ran bool, err error, stderr io.Writer) int {
	if !ran {
		return exitLocked
	}
	if err == nil {
		return exitOK
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	fmt.Fprintln(stderr, err)
	return exitFailure
}
