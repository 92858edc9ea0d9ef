// Package guard prevents concurrent executions of the same logical operation.
//
// A Guard wraps an operation with a non-blocking acquire/release protocol
// against a shared Backend. Before derives and validates the operation's key
// and makes exactly one immediate acquisition attempt; when it fails the
// operation is aborted instead of queued. After releases the lock. Every
// failure is reported through the operation's proceed flag and the configured
// log sink, never through panics or returned errors.
//
// The scoped form is preferred:
//
//	ran, err := g.Do(ctx, guard.NewAction("report/build"), func(ctx context.Context) error {
//		return build(ctx)
//	})
//
// When Before and After are called directly, defer Hold.Close so the lock is
// released even if After is skipped.
package guard

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/soulteary/action-guard/sink"
	"github.com/soulteary/action-guard/utils"
)

// maxToken bounds the per-invocation liveness token
const maxToken = 1000 * 1000

// Backend performs the actual mutual exclusion. A zero timeout means a single
// immediate attempt. Implementations must tolerate empty or oversized keys by
// failing rather than corrupting state.
type Backend interface {
	// Acquire returns true if the lock for key was obtained
	Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error)
	// Release returns true if the lock for key was released
	Release(ctx context.Context, key string) (bool, error)
}

// Reason describes why Before rejected an operation
type Reason string

const (
	ReasonAborted    Reason = "aborted"
	ReasonKeyTooLong Reason = "key_too_long"
	ReasonKeyMissing Reason = "key_missing"
	ReasonContention Reason = "contention"
)

// Recorder observes guard outcomes
type Recorder interface {
	Acquired()
	Rejected(reason Reason)
	Released(ok bool)
}

// Guard is safe for concurrent use; all per-execution state lives in the
// Hold returned by Before.
type Guard struct {
	backend Backend
	cfg     Config
}

// New creates a guard over backend. A nil backend disables locking: keys are
// still validated but acquisition and release always succeed.
func New(backend Backend, cfg Config) *Guard {
	if cfg.MaxKeyLength <= 0 {
		cfg.MaxKeyLength = DefaultMaxKeyLength
	}
	if cfg.ConsoleOutput && cfg.Console == nil {
		cfg = cfg.WithConsole(DefaultConfig().Console)
	}
	return &Guard{backend: backend, cfg: cfg}
}

// Config returns the guard configuration
func (g *Guard) Config() Config {
	return g.cfg
}

// Before runs ahead of the operation. It returns the execution's Hold, which
// is never nil, and whether the operation may proceed. On rejection op is
// aborted.
func (g *Guard) Before(ctx context.Context, op Operation) (*Hold, bool) {
	h := &Hold{guard: g}

	if !op.Proceed() {
		g.rejected(ReasonAborted)
		return h, false
	}

	h.key = g.deriveKey(op)
	if utils.KeyLength(h.key) > g.cfg.MaxKeyLength {
		g.log(fmt.Sprintf("key length must be smaller than %d symbols", g.cfg.MaxKeyLength), sink.LevelInfo)
		g.rejected(ReasonKeyTooLong)
		op.Abort()
		return h, false
	}

	h.token = rand.IntN(maxToken) + 1

	if reason, ok := g.lock(ctx, h); !ok {
		g.log("cannot lock key record", sink.LevelInfo)
		g.rejected(reason)
		op.Abort()
		return h, false
	}

	if g.cfg.Metrics != nil {
		g.cfg.Metrics.Acquired()
	}
	return h, op.Proceed()
}

// After runs once the operation finished. It releases the lock and returns
// the operation's proceed flag unchanged.
func (g *Guard) After(ctx context.Context, op Operation, h *Hold) bool {
	if h != nil {
		ctx, cancel := utils.WithReleaseTimeout(ctx)
		h.Free(ctx, true)
		cancel()
	}
	return op.Proceed()
}

// Do runs fn under the guard. fn is only called when the lock was acquired
// and op may proceed; the lock is released when fn returns or panics. The
// returned error is fn's.
func (g *Guard) Do(ctx context.Context, op Operation, fn func(context.Context) error) (bool, error) {
	h, ok := g.Before(ctx, op)
	if !ok {
		h.Close()
		return false, nil
	}
	defer g.After(ctx, op, h)
	return true, fn(ctx)
}

func (g *Guard) deriveKey(op Operation) string {
	key := g.cfg.Key.derive(op)
	if key == "" {
		return ""
	}
	return utils.BuildKey(g.cfg.KeyPrefix, key)
}

func (g *Guard) lock(ctx context.Context, h *Hold) (Reason, bool) {
	if h.key == "" || h.token <= 0 {
		g.log("Key and token cannot be empty", sink.LevelInfo)
		return ReasonKeyMissing, false
	}

	if g.backend == nil {
		return "", true
	}

	locked, err := g.backend.Acquire(ctx, h.key, 0)
	if err != nil {
		g.log(fmt.Sprintf("lock backend failed for `%s`: %v", h.key, err), sink.LevelWarning)
		locked = false
	}
	if !locked {
		g.log(fmt.Sprintf("`%s` already locked", h.key), sink.LevelInfo)
		return ReasonContention, false
	}

	h.hold()
	return "", true
}

func (g *Guard) rejected(reason Reason) {
	if g.cfg.Metrics != nil {
		g.cfg.Metrics.Rejected(reason)
	}
}

func (g *Guard) log(message string, level sink.Level) {
	if g.cfg.ConsoleOutput && g.cfg.Console != nil {
		_, _ = fmt.Fprintln(g.cfg.Console, message)
	}
	if g.cfg.Logger != nil {
		g.cfg.Logger.Write(level, g.cfg.LogCategory, message)
	}
}

// Hold is the state of one guarded execution
type Hold struct {
	guard   *Guard
	key     string
	token   int
	state   *holdState
	cleanup runtime.Cleanup
}

// holdState is shared with the runtime cleanup, so it must not point back to
// its Hold.
type holdState struct {
	backend  Backend
	key      string
	metrics  Recorder
	released atomic.Bool
}

// hold records a successful acquisition and arms the unreachable-Hold backstop.
func (h *Hold) hold() {
	h.state = &holdState{
		backend: h.guard.backend,
		key:     h.key,
		metrics: h.guard.cfg.Metrics,
	}
	h.cleanup = runtime.AddCleanup(h, (*holdState).releaseSilently, h.state)
}

func (s *holdState) releaseSilently() {
	if s.released.Load() {
		return
	}
	ctx, cancel := utils.WithDefaultTimeout(context.Background())
	defer cancel()
	freed, err := s.backend.Release(ctx, s.key)
	freed = freed && err == nil
	if freed {
		s.released.Store(true)
	}
	if s.metrics != nil {
		s.metrics.Released(freed)
	}
}

// Key returns the derived lock key, empty if none could be derived
func (h *Hold) Key() string {
	return h.key
}

// Token returns the liveness token, zero if acquisition was never attempted
func (h *Hold) Token() int {
	return h.token
}

// Held reports whether this execution currently owns its lock
func (h *Hold) Held() bool {
	return h.state != nil && !h.state.released.Load()
}

// Free releases the lock. Without a backend it always succeeds; for an
// execution that never acquired its lock it fails without contacting the
// backend. Otherwise every call asks the backend and returns its answer.
// Failures are logged only when verbose is set.
func (h *Hold) Free(ctx context.Context, verbose bool) bool {
	g := h.guard
	if g.backend == nil {
		return true
	}
	if h.state == nil {
		if verbose {
			g.log(fmt.Sprintf("Cannot free `%s` from source", h.key), sink.LevelInfo)
		}
		return false
	}

	freed, err := g.backend.Release(ctx, h.key)
	if err != nil {
		if verbose {
			g.log(fmt.Sprintf("lock backend failed for `%s`: %v", h.key, err), sink.LevelWarning)
		}
		freed = false
	}
	if freed && h.state.released.CompareAndSwap(false, true) {
		h.cleanup.Stop()
	}
	if verbose && !freed {
		g.log(fmt.Sprintf("Cannot free `%s` from source", h.key), sink.LevelInfo)
	}
	if g.cfg.Metrics != nil {
		g.cfg.Metrics.Released(freed)
	}
	return freed
}

// Close silently releases the lock if it is still held. It is safe to call
// any number of times and after After.
func (h *Hold) Close() bool {
	if !h.Held() {
		return true
	}
	ctx, cancel := utils.WithDefaultTimeout(context.Background())
	defer cancel()
	return h.Free(ctx, false)
}
