// Package middleware guards HTTP handlers and gRPC methods so that only one
// request per lock key runs at a time. Rejected requests are answered
// immediately instead of queued.
package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/soulteary/action-guard/middleware"

type options struct {
	rejectStatus  int
	rejectMessage string
	tracer        trace.Tracer
}

// Option configures HTTP and the gRPC interceptors
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		rejectStatus:  http.StatusConflict,
		rejectMessage: "operation already in progress",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRejectStatus sets the HTTP status of rejected requests (default: 409)
func WithRejectStatus(code int) Option {
	return func(o *options) {
		o.rejectStatus = code
	}
}

// WithRejectMessage sets the message returned to rejected callers
func WithRejectMessage(message string) Option {
	return func(o *options) {
		o.rejectMessage = message
	}
}

// WithTracerProvider records a span per guarded request
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

func (o *options) startSpan(ctx context.Context, name, route string) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("actionguard.route", route)))
}

func endSpan(span trace.Span, proceeded bool) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Bool("actionguard.proceed", proceeded))
	span.End()
}
