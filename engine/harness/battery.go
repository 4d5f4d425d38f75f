package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/quality"
)

// Metric names in report order.
const (
	MetricPrecisionRecall   = "context_precision_recall"
	MetricRelevance         = "context_relevance"
	MetricEntityRecall      = "context_entity_recall"
	MetricNoise             = "noise_robustness"
	MetricFaithfulness      = "faithfulness_relevance"
	MetricIntegration       = "information_integration"
	MetricCounterfactual    = "counterfactual_robustness"
	MetricNegativeRejection = "negative_rejection"
	MetricLatency           = "latency"
)

type metric struct {
	name string
	// ready reports whether a provider-backed metric has its inputs; nil for pure metrics.
	ready func(Fixture) bool
	run   func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error)
	line  func(r quality.Result) string
}

func present(texts ...string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return false
		}
	}
	return true
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// formatScore prints v in shortest form, keeping a ".0" on integral values.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

func value(r quality.Result, name string) float64 {
	v, _ := r.Get(name)
	return v
}

var battery = []metric{
	{
		name: MetricPrecisionRecall,
		run: func(_ *Harness, _ context.Context, f Fixture) (quality.Result, error) {
			p, r := quality.ContextPrecisionRecall(f.TrueContext, f.RetrievedContexts)
			res := quality.Result{Inputs: map[string]any{"true_context": f.TrueContext, "retrieved_contexts": f.RetrievedContexts}}
			return res.With("precision", p).With("recall", r), nil
		},
		line: func(r quality.Result) string {
			return fmt.Sprintf("Context Precision: %s, Context Recall: %s", formatScore(value(r, "precision")), formatScore(value(r, "recall")))
		},
	},
	{
		name:  MetricRelevance,
		ready: func(f Fixture) bool { return present(f.Query) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			rel, err := h.prober.ContextRelevance(ctx, f.Query, f.RetrievedContexts)
			res := quality.Result{Inputs: map[string]any{"query": f.Query, "retrieved_contexts": f.RetrievedContexts}}
			return res.With("relevance", rel), err
		},
		line: func(r quality.Result) string { return "Context Relevance: " + formatScore(value(r, "relevance")) },
	},
	{
		name: MetricEntityRecall,
		run: func(_ *Harness, _ context.Context, f Fixture) (quality.Result, error) {
			res := quality.Result{Inputs: map[string]any{"entity_truth": f.EntityTruth, "entity_retrieved": f.EntityRetrieved}}
			return res.With("entity_recall", quality.ContextEntityRecall(f.EntityTruth, f.EntityRetrieved)), nil
		},
		line: func(r quality.Result) string {
			return "Context Entity Recall: " + formatScore(value(r, "entity_recall"))
		},
	},
	{
		name:  MetricNoise,
		ready: func(f Fixture) bool { return present(f.Query, f.NoiseQuery) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			rb, err := h.prober.NoiseRobustness(ctx, f.Query, f.NoiseQuery)
			return robustnessResult(rb, f.Query, f.NoiseQuery), err
		},
		line: func(r quality.Result) string { return "Noise Robustness Score: " + formatScore(value(r, "score")) },
	},
	{
		name:  MetricFaithfulness,
		ready: func(f Fixture) bool { return present(f.GeneratedAnswer, f.FaithfulnessContext) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			faith, rel, err := h.prober.FaithfulnessRelevance(ctx, f.GeneratedAnswer, f.FaithfulnessContext)
			res := quality.Result{Inputs: map[string]any{"generated_answer": f.GeneratedAnswer, "true_context": f.FaithfulnessContext}}
			return res.With("faithfulness", float64(faith)).With("answer_relevance", rel), err
		},
		line: func(r quality.Result) string {
			return fmt.Sprintf("Faithfulness: %d, Answer Relevance: %s", int(value(r, "faithfulness")), formatScore(value(r, "answer_relevance")))
		},
	},
	{
		name: MetricIntegration,
		run: func(_ *Harness, _ context.Context, f Fixture) (quality.Result, error) {
			res := quality.Result{Inputs: map[string]any{"answer": f.IntegrationAnswer, "contexts": f.IntegrationContexts}}
			return res.With("integration", quality.InformationIntegration(f.IntegrationAnswer, f.IntegrationContexts)), nil
		},
		line: func(r quality.Result) string {
			return "Information Integration: " + formatScore(value(r, "integration"))
		},
	},
	{
		name:  MetricCounterfactual,
		ready: func(f Fixture) bool { return present(f.Query, f.CounterfactualQuery) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			rb, err := h.prober.CounterfactualRobustness(ctx, f.Query, f.CounterfactualQuery)
			return robustnessResult(rb, f.Query, f.CounterfactualQuery), err
		},
		line: func(r quality.Result) string {
			return "Counterfactual Robustness Score: " + formatScore(value(r, "score"))
		},
	},
	{
		name:  MetricNegativeRejection,
		ready: func(f Fixture) bool { return present(f.InappropriateQuery) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			rej, err := h.prober.NegativeRejection(ctx, f.InappropriateQuery, h.opts.Threshold)
			res := quality.Result{Inputs: map[string]any{"inappropriate_query": f.InappropriateQuery, "threshold": h.opts.Threshold}}
			return res.With("rejection", float64(rej)), err
		},
		line: func(r quality.Result) string {
			return fmt.Sprintf("Negative Rejection Score: %d", int(value(r, "rejection")))
		},
	},
	{
		name:  MetricLatency,
		ready: func(f Fixture) bool { return present(f.Query) },
		run: func(h *Harness, ctx context.Context, f Fixture) (quality.Result, error) {
			d, err := h.prober.Latency(ctx, f.Query)
			res := quality.Result{Inputs: map[string]any{"query": f.Query}}
			return res.With("seconds", d.Seconds()), err
		},
		line: func(r quality.Result) string {
			return fmt.Sprintf("Latency: %s seconds", formatScore(value(r, "seconds")))
		},
	},
}

func robustnessResult(rb quality.Robustness, query, variant string) quality.Result {
	res := quality.Result{Inputs: map[string]any{
		"query":           query,
		"variant":         variant,
		"query_matches":   rb.QueryMatches,
		"variant_matches": rb.VariantMatches,
	}}
	return res.With("score", rb.Score).With("result_agreement", boolValue(rb.ResultAgreement))
}

// MetricNames returns the battery's metric names in report order.
func MetricNames() []string {
	names := make([]string, len(battery))
	for i, m := range battery {
		names[i] = m.name
	}
	return names
}
