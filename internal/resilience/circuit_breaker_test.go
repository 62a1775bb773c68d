package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: threshold, ResetAfter: time.Minute})
	cb.now = clock.now
	return cb, clock
}

func fail(ctx context.Context) error    { return errors.New("blocked") }
func succeed(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed below threshold, got %v", cb.State())
	}
	_ = cb.Execute(ctx, fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 failures, got %v", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != ErrCircuitOpen || called {
		t.Errorf("open circuit should reject without calling: err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	if cb.Failures() != 0 {
		t.Errorf("expected failures reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(time.Minute)

	// Failed probe reopens.
	_ = cb.Execute(ctx, fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("failed probe should reopen, got %v", cb.State())
	}
	if err := cb.Execute(ctx, succeed); err != ErrCircuitOpen {
		t.Fatalf("expected rejection right after failed probe, got %v", err)
	}

	clock.advance(time.Minute)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("successful probe should close, got %v", cb.State())
	}
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(1)
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("cancellation should not open the circuit, got %v", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half-open",
		CircuitState(9): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
