package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/soulteary/action-guard/guard"
)

// Call is the Operation of a guarded gRPC call; its route is the full method
// name
type Call struct {
	*guard.Action
	// Request is the unary request message, nil for streams
	Request any
}

// CallFrom returns the gRPC call behind op, for use in key functions
func CallFrom(op guard.Operation) (*Call, bool) {
	c, ok := op.(*Call)
	return c, ok
}

func (o *options) rejected(method string) error {
	return status.Errorf(codes.Aborted, "%s: %s", method, o.rejectMessage)
}

// UnaryServerInterceptor guards unary methods with g; rejected calls fail
// with codes.Aborted.
func UnaryServerInterceptor(g *guard.Guard, opts ...Option) grpc.UnaryServerInterceptor {
	o := newOptions(opts)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := o.startSpan(ctx, "actionguard.grpc", info.FullMethod)

		var resp any
		op := &Call{Action: guard.NewAction(info.FullMethod), Request: req}
		ran, err := g.Do(ctx, op, func(ctx context.Context) error {
			var err error
			resp, err = handler(ctx, req)
			return err
		})
		endSpan(span, ran)

		if !ran {
			return nil, o.rejected(info.FullMethod)
		}
		return resp, err
	}
}

type guardedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *guardedStream) Context() context.Context {
	return s.ctx
}

// StreamServerInterceptor guards streaming methods with g
func StreamServerInterceptor(g *guard.Guard, opts ...Option) grpc.StreamServerInterceptor {
	o := newOptions(opts)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := o.startSpan(ss.Context(), "actionguard.grpc", info.FullMethod)

		op := &Call{Action: guard.NewAction(info.FullMethod)}
		ran, err := g.Do(ctx, op, func(ctx context.Context) error {
			return handler(srv, &guardedStream{ServerStream: ss, ctx: ctx})
		})
		endSpan(span, ran)

		if !ran {
			return o.rejected(info.FullMethod)
		}
		return err
	}
}
