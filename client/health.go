package client

import (
	"context"
	"fmt"
	"time"
)

// DefaultHealthTimeout bounds a single health check
const DefaultHealthTimeout = 2 * time.Second

// PingFunc pings a backend connection
type PingFunc func(ctx context.Context) error

// HealthStatus represents the health status of a backend connection
type HealthStatus struct {
	Name      string
	Healthy   bool
	Latency   time.Duration
	Error     error
	Timestamp time.Time
}

// CheckHealth runs ping with a short timeout and measures its latency
func CheckHealth(ctx context.Context, name string, ping PingFunc) HealthStatus {
	status := HealthStatus{
		Name:      name,
		Timestamp: time.Now(),
	}

	if ping == nil {
		status.Error = fmt.Errorf("%s: no health check", name)
		return status
	}

	start := time.Now()
	healthCtx, cancel := context.WithTimeout(ctx, DefaultHealthTimeout)
	defer cancel()

	err := ping(healthCtx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Error = err
		status.Healthy = false
	} else {
		status.Healthy = true
	}

	return status
}
