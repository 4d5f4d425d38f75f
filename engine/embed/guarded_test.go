package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
)

func fastRetry(n int) fn.RetryOpts {
	return fn.RetryOpts{MaxAttempts: n, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
}

func TestGuarded_RetriesTransientFailure(t *testing.T) {
	stub := &stubProvider{vec: domain.Vector{1}, errs: []error{errors.New("503"), errors.New("503")}}
	g := NewGuarded(stub, GuardOpts{Retry: fastRetry(3)})
	vec, err := g.Embed(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(vec) != 1 || stub.callCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", stub.callCount())
	}
}

func TestGuarded_WrapsAsProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	stub := &stubProvider{errs: []error{cause, cause}}
	g := NewGuarded(stub, GuardOpts{Retry: fastRetry(2)})
	_, err := g.Embed(context.Background(), "Paris")
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected provider error wrapping cause, got %v", err)
	}
}

func TestGuarded_DoesNotRetryValidation(t *testing.T) {
	bad := domain.NewValidationError("text", "", domain.ErrEmptyInput)
	stub := &stubProvider{errs: []error{bad}}
	g := NewGuarded(stub, GuardOpts{Retry: fastRetry(3)})
	if _, err := g.Embed(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if stub.callCount() != 1 {
		t.Fatalf("validation errors should not be retried, got %d calls", stub.callCount())
	}
}

func TestGuarded_BreakerOpens(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = errors.New("down")
	}
	stub := &stubProvider{errs: errs}
	g := NewGuarded(stub, GuardOpts{
		Retry:   fastRetry(1),
		Breaker: resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Hour},
	})
	ctx := context.Background()
	g.Embed(ctx, "a")
	g.Embed(ctx, "b")
	if g.State() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %s", g.State())
	}
	_, err := g.Embed(ctx, "c")
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected open-circuit provider error, got %v", err)
	}
	if stub.callCount() != 2 {
		t.Fatalf("open breaker should short-circuit, got %d calls", stub.callCount())
	}
}

func TestRetryable(t *testing.T) {
	if retryable(context.Canceled) || retryable(resilience.ErrCircuitOpen) {
		t.Fatal("cancellation and open circuit are not retryable")
	}
	if !retryable(errors.New("timeout from upstream")) {
		t.Fatal("generic errors are retryable")
	}
}
