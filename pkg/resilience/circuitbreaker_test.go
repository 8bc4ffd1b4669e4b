package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatal("expected open after threshold")
	}

	// Advance the clock past the open timeout.
	later := time.Now().Add(2 * time.Minute)
	b.now = func() time.Time { return later }

	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State())
	}
	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	later := time.Now().Add(2 * time.Minute)
	b.now = func() time.Time { return later }

	if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected reopened, got %v", b.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, succeeding)
	_ = b.Call(ctx, failing)
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
}
