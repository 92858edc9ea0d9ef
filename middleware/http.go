package middleware

import (
	"context"
	"net/http"

	"github.com/soulteary/action-guard/guard"
)

// Request is the Operation of a guarded HTTP request; its route is the URL path
type Request struct {
	*guard.Action
	req *http.Request
}

// RequestFrom returns the HTTP request behind op, for use in key functions
func RequestFrom(op guard.Operation) (*http.Request, bool) {
	r, ok := op.(*Request)
	if !ok {
		return nil, false
	}
	return r.req, true
}

// HTTP wraps handlers with g. A request whose lock is taken gets the reject
// status without reaching the handler.
func HTTP(g *guard.Guard, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := o.startSpan(r.Context(), "actionguard.http", r.URL.Path)
			r = r.WithContext(ctx)

			op := &Request{Action: guard.NewAction(r.URL.Path), req: r}
			ran, _ := g.Do(ctx, op, func(context.Context) error {
				next.ServeHTTP(w, r)
				return nil
			})
			endSpan(span, ran)

			if !ran {
				http.Error(w, o.rejectMessage, o.rejectStatus)
			}
		})
	}
}
