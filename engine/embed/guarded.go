package embed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
)

// GuardOpts configures Guarded.
type GuardOpts struct {
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
	Limiter resilience.LimiterOpts
	Logger  *slog.Logger
}

// Guarded wraps a provider with a rate limiter, circuit breaker and retry.
// Every failure it returns matches domain.ErrProviderUnavailable.
type Guarded struct {
	Provider
	breaker *resilience.Breaker
	call    fn.Stage[string, domain.Vector]
}

// NewGuarded creates a Guarded provider. Zero-valued options take the package defaults.
func NewGuarded(p Provider, opts GuardOpts) *Guarded {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = fn.DefaultRetry
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = retryable
	}
	if opts.Breaker.OnStateChange == nil {
		model := p.Model()
		opts.Breaker.OnStateChange = func(from, to resilience.State) {
			log.Warn("embed: breaker state change", "model", model, "from", from.String(), "to", to.String())
		}
	}
	breaker := resilience.NewBreaker(opts.Breaker)
	call := fn.Stage[string, domain.Vector](func(ctx context.Context, text string) fn.Result[domain.Vector] {
		v, err := p.Embed(ctx, text)
		return fn.FromPair(v, err)
	})
	limited := resilience.LimiterStageWait(resilience.NewLimiter(opts.Limiter), resilience.BreakerStage(breaker, call))
	return &Guarded{
		Provider: p,
		breaker:  breaker,
		call:     fn.RetryStage(opts.Retry, limited),
	}
}

// retryable excludes failures that another attempt cannot fix.
func retryable(err error) bool {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// State reports the breaker state.
func (g *Guarded) State() resilience.State { return g.breaker.State() }

func (g *Guarded) Embed(ctx context.Context, text string) (domain.Vector, error) {
	v, err := g.call(ctx, text).Unwrap()
	if err != nil {
		return nil, domain.NewProviderError(g.Model(), "embed", err)
	}
	return v, nil
}
