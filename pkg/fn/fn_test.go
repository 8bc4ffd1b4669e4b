package fn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestResultUnwrap(t *testing.T) {
	r := Ok(42)
	v, err := r.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("got (%v, %v)", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("expected error result")
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, n int) Result[int] { return Err[int](boom) }
	var called bool
	second := func(_ context.Context, n int) Result[string] {
		called = true
		return Ok("never")
	}

	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatal("second stage should not run after failure")
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Err[string](fmt.Errorf("attempt %d", attempts))
		}
		return Ok("done")
	})
	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Fatalf("got (%v, %v)", v, err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetryExhausts(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Err[int](fmt.Errorf("always fails"))
	})
	if r.IsOk() {
		t.Fatal("expected failure after exhausting attempts")
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("n<=0 should return nil")
	}
}

func TestUniqueByKeepsFirstOccurrence(t *testing.T) {
	type pair struct{ a, b string }
	in := []pair{{"x", "1"}, {"y", "2"}, {"x", "3"}}
	out := UniqueBy(in, func(p pair) string { return p.a })
	if len(out) != 2 || out[0].b != "1" || out[1].b != "2" {
		t.Fatalf("unexpected: %v", out)
	}
}
