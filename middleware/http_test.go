package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/soulteary/action-guard/guard"
	"github.com/soulteary/action-guard/testutil"
)

func newTestGuard(backend guard.Backend, cfg guard.Config) *guard.Guard {
	return guard.New(backend, cfg.WithConsoleOutput(false))
}

func TestHTTP(t *testing.T) {
	t.Run("runs handler and releases", func(t *testing.T) {
		backend := testutil.NewBackend()
		g := newTestGuard(backend, guard.DefaultConfig())
		calls := 0
		h := HTTP(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if !backend.IsHeld("/reports/build") {
				t.Error("lock not held while handler runs")
			}
			w.WriteHeader(http.StatusAccepted)
		}))

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports/build", nil))
			if rec.Code != http.StatusAccepted {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
			}
		}
		if calls != 2 {
			t.Errorf("handler calls = %d, want 2", calls)
		}
		if backend.IsHeld("/reports/build") {
			t.Error("lock still held after response")
		}
	})

	t.Run("rejects concurrent request", func(t *testing.T) {
		g := newTestGuard(testutil.NewBackend(), guard.DefaultConfig())
		entered := make(chan struct{})
		unblock := make(chan struct{})
		h := HTTP(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-unblock
		}))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sync", nil))
		}()
		<-entered

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
		close(unblock)
		wg.Wait()

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
		if body, _ := io.ReadAll(rec.Body); !strings.Contains(string(body), "operation already in progress") {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("custom reject response", func(t *testing.T) {
		backend := testutil.NewBackend()
		backend.Hold("/busy")
		g := newTestGuard(backend, guard.DefaultConfig())
		h := HTTP(g, WithRejectStatus(http.StatusTooManyRequests), WithRejectMessage("busy"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler called for a locked route")
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/busy", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "busy" {
			t.Errorf("body = %q, want %q", got, "busy")
		}
	})

	t.Run("key from request", func(t *testing.T) {
		backend := testutil.NewBackend()
		g := newTestGuard(backend, guard.DefaultConfig().
			WithKeyPrefix("tenant:").
			WithKey(guard.KeyFunc(func(op guard.Operation) string {
				r, ok := RequestFrom(op)
				if !ok {
					return ""
				}
				return r.URL.Query().Get("tenant")
			})))
		h := HTTP(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/import?tenant=acme", nil))

		acquires := backend.Acquires()
		if len(acquires) != 1 || acquires[0].Key != "tenant:acme" {
			t.Errorf("Acquires() = %+v, want key tenant:acme", acquires)
		}
	})

	t.Run("missing key rejects", func(t *testing.T) {
		g := newTestGuard(testutil.NewBackend(), guard.DefaultConfig().
			WithKey(guard.KeyFunc(func(guard.Operation) string { return "" })))
		h := HTTP(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler called without a key")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/import", nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})
}

func TestRequestFrom(t *testing.T) {
	if _, ok := RequestFrom(guard.NewAction("job")); ok {
		t.Error("RequestFrom(Action) ok = true, want false")
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	got, ok := RequestFrom(&Request{Action: guard.NewAction("/x"), req: req})
	if !ok || got != req {
		t.Errorf("RequestFrom() = %v, %v, want the request", got, ok)
	}
}

func TestHTTPTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	backend := testutil.NewBackend()
	backend.Hold("/locked")
	g := newTestGuard(backend, guard.DefaultConfig())
	h := HTTP(g, WithTracerProvider(tp))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/free", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/locked", nil))

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	want := map[string]bool{"/free": true, "/locked": false}
	for _, span := range spans {
		if span.Name() != "actionguard.http" {
			t.Errorf("span name = %q, want %q", span.Name(), "actionguard.http")
		}
		var route string
		var proceed, found bool
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case "actionguard.route":
				route = kv.Value.AsString()
			case "actionguard.proceed":
				proceed, found = kv.Value.AsBool(), true
			}
		}
		if !found {
			t.Errorf("span for %q has no proceed attribute", route)
			continue
		}
		if proceed != want[route] {
			t.Errorf("span for %q proceed = %v, want %v", route, proceed, want[route])
		}
	}
}
