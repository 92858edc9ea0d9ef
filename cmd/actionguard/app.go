package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/soulteary/action-guard/client"
	"github.com/soulteary/action-guard/config"
	"github.com/soulteary/action-guard/guard"
	"github.com/soulteary/action-guard/metrics"
	"github.com/soulteary/action-guard/sink"
)

// app holds what a command needs; close releases it in reverse order
type app struct {
	logger  sink.Sink
	backend *client.Backend
	guard   *guard.Guard
	closers []func()
}

func newApp(cfg config.Config, gcfg guard.Config) (*app, error) {
	a := &app{}

	logger, flush, err := sink.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, flush)

	backend, err := client.Open(cfg.Backend)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend.Driver, err)
	}
	a.backend = backend
	a.closers = append(a.closers, func() {
		if err := backend.Close(); err != nil {
			logger.Write(sink.LevelWarning, "actionguard", fmt.Sprintf("closing backend: %v", err))
		}
	})

	gcfg = cfg.Guard.Apply(gcfg).WithLogger(logger)
	if cfg.Metrics.Addr != "" {
		recorder, stop, err := serveMetrics(cfg.Metrics.Addr, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		gcfg = gcfg.WithMetrics(recorder)
		a.closers = append(a.closers, stop)
	}

	var locker guard.Backend
	if backend.Locker != nil {
		locker = backend.Locker
	}
	a.guard = guard.New(locker, gcfg)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func serveMetrics(addr string, logger sink.Sink) (*metrics.Recorder, func(), error) {
	reg := metrics.NewRegistry()
	recorder := metrics.NewRecorder()
	metrics.Register(reg, recorder)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Write(sink.LevelError, "metrics", err.Error())
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return recorder, stop, nil
}
