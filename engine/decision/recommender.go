package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/fn"
)

// Options configures the Recommender.
type Options struct {
	Threshold     float32
	Namespace     string
	SearchTimeout time.Duration
}

// DefaultOptions returns the default acceptance threshold and timeout.
func DefaultOptions() Options {
	return Options{
		Threshold:     domain.DefaultThreshold,
		SearchTimeout: 5 * time.Second,
	}
}

// Recommender embeds a query, fetches the single best match and decides on it.
type Recommender struct {
	embedder embed.Provider
	search   semantic.Searcher
	opts     Options
	logger   *slog.Logger
	pipeline fn.Stage[string, Decision]
}

// NewRecommender validates opts and wires the lookup pipeline.
func NewRecommender(embedder embed.Provider, search semantic.Searcher, opts Options, logger *slog.Logger) (*Recommender, error) {
	if err := domain.ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recommender{embedder: embedder, search: search, opts: opts, logger: logger}
	r.pipeline = fn.Then(
		fn.TracedStage("recommend.embed", fn.Stage[string, domain.Vector](r.embed)),
		fn.Then(
			fn.TracedStage("recommend.search", fn.Stage[domain.Vector, []domain.Match](r.topMatch)),
			fn.MapStage(func(m []domain.Match) Decision { return Decide(m, r.opts.Threshold) }),
		),
	)
	return r, nil
}

func (r *Recommender) embed(ctx context.Context, query string) fn.Result[domain.Vector] {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return fn.Errf[domain.Vector]("decision: embed query: %w", err)
	}
	return fn.Ok(vec)
}

func (r *Recommender) topMatch(ctx context.Context, vec domain.Vector) fn.Result[[]domain.Match] {
	searchCtx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()
	matches, err := r.search.Search(searchCtx, vec, 1, r.opts.Namespace)
	if err != nil {
		return fn.Errf[[]domain.Match]("decision: search: %w", err)
	}
	if len(matches) > 0 {
		r.logger.Debug("recommend top match", "id", matches[0].ID, "score", matches[0].Score)
	}
	return fn.Ok(matches)
}

// Recommend returns the decision for query. A miss is a NotFound decision,
// never an error; errors come only from validation or the providers.
func (r *Recommender) Recommend(ctx context.Context, query string) (Decision, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return NotFound(), err
	}
	start := time.Now()
	d, err := r.pipeline(ctx, query).Unwrap()
	if err != nil {
		r.logger.Warn("recommend failed", "err", err)
		return NotFound(), fmt.Errorf("decision: recommend: %w", err)
	}
	r.logger.Info("recommend", "found", d.IsFound(), "destination", d.DestinationName, "duration", time.Since(start))
	return d, nil
}
