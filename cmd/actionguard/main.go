// Command actionguard runs a command unless another run with the same lock
// key is still in progress.
//
//	actionguard [flags] run [--key KEY] -- COMMAND [ARGS...]
//	actionguard [flags] check
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/soulteary/action-guard/config"
)

const (
	exitOK = 0
	// exitFailure covers configuration and backend errors
	exitFailure = 1
	exitUsage   = 2
	// exitLocked is EX_TEMPFAIL: the command may be retried later
	exitLocked = 75
)

const usage = `Usage:
  actionguard [flags] run [--key KEY] -- COMMAND [ARGS...]
  actionguard [flags] check

run needs a backend shared by every host running the command; the local
and none drivers are refused. Redis locks expire after
backend.redis.lock_time (default 10m) and are not renewed, so set it
above the longest expected run.

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("actionguard", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	configPath := fs.StringP("config", "c", "", "config file (yaml, toml or json)")
	fs.String("driver", "", "lock backend: none, local, redis, hybrid, etcd, nats, mysql, postgres")
	fs.String("redis-addr", "", "redis address")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	loader := config.NewLoader()
	for key, name := range map[string]string{
		"backend.driver":     "driver",
		"backend.redis.addr": "redis-addr",
		"log.level":          "log-level",
		"metrics.addr":       "metrics-addr",
	} {
		if err := loader.BindFlag(key, fs.Lookup(name)); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
	}
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	switch rest[0] {
	case "run":
		return runCommand(cfg, rest[1:], stdout, stderr)
	case "check":
		return checkCommand(cfg, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}
}
