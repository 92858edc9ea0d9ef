package utils

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	t.Run("creates context with timeout", func(t *testing.T) {
		ctx, cancel := WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context should have timed out")
		}
	})

	t.Run("handles nil context", func(t *testing.T) {
		//nolint:staticcheck // SA1012: intentionally passing nil to test nil handling
		ctx, cancel := WithTimeout(nil, 50*time.Millisecond)
		defer cancel()

		if ctx == nil {
			t.Fatal("context should not be nil (should use Background)")
		}
		<-ctx.Done()
	})
}

func TestWithDefaultTimeout(t *testing.T) {
	ctx, cancel := WithDefaultTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("WithDefaultTimeout() context has no deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > DefaultOperationTimeout {
		t.Errorf("WithDefaultTimeout() remaining = %v, want within (0, %v]", remaining, DefaultOperationTimeout)
	}
}

type ctxKey struct{}

func TestWithReleaseTimeout(t *testing.T) {
	t.Run("survives parent cancellation", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
		cancelParent()

		ctx, cancel := WithReleaseTimeout(parent)
		defer cancel()

		if err := ctx.Err(); err != nil {
			t.Errorf("WithReleaseTimeout() ctx.Err() = %v, want nil", err)
		}
		if got := ctx.Value(ctxKey{}); got != "v" {
			t.Errorf("WithReleaseTimeout() value = %v, want v", got)
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("WithReleaseTimeout() context has no deadline")
		}
	})

	t.Run("handles nil context", func(t *testing.T) {
		//nolint:staticcheck // SA1012: intentionally passing nil to test nil handling
		ctx, cancel := WithReleaseTimeout(nil)
		defer cancel()
		if ctx == nil {
			t.Fatal("context should not be nil")
		}
	})
}
