package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/similarity"
)

// Prober computes the metrics that need an embedding provider and a searcher.
type Prober struct {
	embedder  embed.Provider
	search    semantic.Searcher
	namespace string
	topK      int
}

// NewProber creates a Prober that retrieves the top-1 match in namespace.
func NewProber(embedder embed.Provider, search semantic.Searcher, namespace string) *Prober {
	return &Prober{embedder: embedder, search: search, namespace: namespace, topK: 1}
}

// Robustness compares a query with a perturbed variant of it.
type Robustness struct {
	// Score is the cosine similarity of the two input embeddings.
	Score float64 `json:"score"`
	// ResultAgreement reports whether both retrieved the same top match.
	ResultAgreement bool           `json:"result_agreement"`
	QueryMatches    []domain.Match `json:"query_matches"`
	VariantMatches  []domain.Match `json:"variant_matches"`
}

// embedPair embeds both texts concurrently.
func (p *Prober) embedPair(ctx context.Context, a, b string) (domain.Vector, domain.Vector, error) {
	embedOne := func(text string) func() fn.Result[domain.Vector] {
		return func() fn.Result[domain.Vector] {
			v, err := p.embedder.Embed(ctx, text)
			return fn.FromPair(v, err)
		}
	}
	vecs, err := fn.FanOutResult(embedOne(a), embedOne(b)).Unwrap()
	if err != nil {
		return nil, nil, err
	}
	return vecs[0], vecs[1], nil
}

func (p *Prober) retrieve(ctx context.Context, vec domain.Vector) ([]domain.Match, error) {
	return p.search.Search(ctx, vec, p.topK, p.namespace)
}

func (p *Prober) robustness(ctx context.Context, query, variant string) (Robustness, error) {
	qv, vv, err := p.embedPair(ctx, query, variant)
	if err != nil {
		return Robustness{}, err
	}
	qm, err := p.retrieve(ctx, qv)
	if err != nil {
		return Robustness{}, err
	}
	vm, err := p.retrieve(ctx, vv)
	if err != nil {
		return Robustness{}, err
	}
	return Robustness{
		Score:           similarity.Cosine(qv, vv),
		ResultAgreement: len(qm) > 0 && len(vm) > 0 && qm[0].ID == vm[0].ID,
		QueryMatches:    qm,
		VariantMatches:  vm,
	}, nil
}

// ContextRelevance embeds query and every retrieved context, then averages
// their cosine similarities. No contexts yields 0 without any provider call.
func (p *Prober) ContextRelevance(ctx context.Context, query string, retrieved domain.ContextSet) (float64, error) {
	if len(retrieved) == 0 {
		return 0, nil
	}
	texts := append([]string{query}, retrieved...)
	vecs, err := fn.Collect(fn.ParMapCtx(ctx, texts, len(texts), func(ctx context.Context, text string) fn.Result[domain.Vector] {
		v, err := p.embedder.Embed(ctx, text)
		return fn.FromPair(v, err)
	})).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("quality: context relevance: %w", err)
	}
	return ContextRelevance(vecs[0], vecs[1:]), nil
}

// NoiseRobustness measures how close a noisy query stays to the clean one.
func (p *Prober) NoiseRobustness(ctx context.Context, query, noise string) (Robustness, error) {
	r, err := p.robustness(ctx, query, noise)
	if err != nil {
		return Robustness{}, fmt.Errorf("quality: noise robustness: %w", err)
	}
	return r, nil
}

// CounterfactualRobustness measures how close a counterfactual query stays to the base query.
func (p *Prober) CounterfactualRobustness(ctx context.Context, query, counterfactual string) (Robustness, error) {
	r, err := p.robustness(ctx, query, counterfactual)
	if err != nil {
		return Robustness{}, fmt.Errorf("quality: counterfactual robustness: %w", err)
	}
	return r, nil
}

// FaithfulnessRelevance returns the verbatim faithfulness of answer together
// with the cosine similarity of the answer and trueCtx embeddings.
func (p *Prober) FaithfulnessRelevance(ctx context.Context, answer, trueCtx string) (int, float64, error) {
	av, tv, err := p.embedPair(ctx, answer, trueCtx)
	if err != nil {
		return 0, 0, fmt.Errorf("quality: answer relevance: %w", err)
	}
	return Faithfulness(answer, trueCtx), similarity.Cosine(av, tv), nil
}

// NegativeRejection is 1 when the query has no match or its best score is
// strictly below threshold.
func (p *Prober) NegativeRejection(ctx context.Context, query string, threshold float32) (int, error) {
	if err := domain.ValidateThreshold(threshold); err != nil {
		return 0, err
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("quality: negative rejection: %w", err)
	}
	matches, err := p.retrieve(ctx, vec)
	if err != nil {
		return 0, fmt.Errorf("quality: negative rejection: %w", err)
	}
	if len(matches) == 0 || matches[0].Score < threshold {
		return 1, nil
	}
	return 0, nil
}

// Latency times one embed plus top-1 search.
func (p *Prober) Latency(ctx context.Context, query string) (time.Duration, error) {
	start := time.Now()
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("quality: latency: %w", err)
	}
	if _, err := p.retrieve(ctx, vec); err != nil {
		return 0, fmt.Errorf("quality: latency: %w", err)
	}
	return time.Since(start), nil
}
