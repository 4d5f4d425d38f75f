// Package harness runs the quality battery over a set of fixtures with
// bounded concurrency and collects the results into an ordered report.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/quality"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
)

// Options configures a Harness.
type Options struct {
	// Workers bounds concurrent metric jobs. Zero means one per job.
	Workers int
	// CallTimeout bounds each metric job. Zero means no per-job deadline.
	CallTimeout time.Duration
	// Threshold is the negative-rejection acceptance threshold.
	Threshold float32
	// Namespace scopes retrieval for the robustness and rejection probes.
	Namespace string
	// Landmarks, when set, fills a fixture's empty ground truth from the graph.
	Landmarks LandmarkSource
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}

// DefaultOptions returns four workers, a 10s per-call timeout and the default threshold.
func DefaultOptions() Options {
	return Options{Workers: 4, CallTimeout: 10 * time.Second, Threshold: domain.DefaultThreshold}
}

// Harness evaluates fixtures against one embedding provider and searcher.
type Harness struct {
	prober *quality.Prober
	opts   Options
	log    *slog.Logger
}

// New creates a Harness.
func New(embedder embed.Provider, search semantic.Searcher, opts Options) (*Harness, error) {
	if err := domain.ValidateThreshold(opts.Threshold); err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Harness{
		prober: quality.NewProber(embedder, search, opts.Namespace),
		opts:   opts,
		log:    log,
	}, nil
}

type job struct {
	fixture Fixture
	metric  metric
}

// Run evaluates every metric of the battery for each fixture. Metric failures
// are recorded on their entry; Run itself fails only on invalid fixtures or a
// cancelled context.
func (h *Harness) Run(ctx context.Context, fixtures []Fixture) (*Report, error) {
	if err := ValidateFixtures(fixtures); err != nil {
		return nil, err
	}
	start := time.Now()
	fixtures = h.resolveLandmarks(ctx, fixtures)

	jobs := make([]job, 0, len(fixtures)*len(battery))
	for _, f := range fixtures {
		for _, m := range battery {
			jobs = append(jobs, job{fixture: f, metric: m})
		}
	}

	results := fn.ParMapCtx(ctx, jobs, h.opts.Workers, func(ctx context.Context, j job) fn.Result[Entry] {
		return fn.Ok(h.runJob(ctx, j))
	})

	report := newReport()
	for i, r := range results {
		entry, err := r.Unwrap()
		if err != nil {
			entry = Entry{Fixture: jobs[i].fixture.Name, Metric: jobs[i].metric.name, Err: err}
		}
		h.record(entry)
		report.add(entry)
	}
	report.Duration = time.Since(start)

	if h.opts.Metrics != nil {
		h.opts.Metrics.Histogram("eval_run_duration_seconds", "Wall time of an evaluation run", nil).Since(start)
	}
	h.log.Info("evaluation complete",
		"fixtures", len(fixtures),
		"entries", len(report.entries),
		"failed", len(report.Failed()),
		"duration", report.Duration,
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("harness: run: %w", err)
	}
	return report, nil
}

func (h *Harness) runJob(ctx context.Context, j job) Entry {
	entry := Entry{Fixture: j.fixture.Name, Metric: j.metric.name}
	if j.metric.ready != nil && !j.metric.ready(j.fixture) {
		entry.Skipped = true
		return entry
	}
	if h.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.CallTimeout)
		defer cancel()
	}
	res, err := j.metric.run(h, ctx, j.fixture)
	res.Name = j.metric.name
	if err != nil {
		res.Err = err
		entry.Err = err
		h.log.Warn("metric failed", "fixture", j.fixture.Name, "metric", j.metric.name, "error", err)
	} else {
		entry.Line = j.metric.line(res)
	}
	entry.Result = res
	return entry
}

func (h *Harness) record(e Entry) {
	if h.opts.Metrics == nil || e.Skipped {
		return
	}
	if e.Err != nil {
		h.opts.Metrics.Counter(metrics.WithLabels("eval_metric_errors_total", "metric", e.Metric), "Failed metric computations").Inc()
		return
	}
	for _, v := range e.Result.Values {
		name := metrics.WithLabels("eval_metric_value", "fixture", e.Fixture, "metric", e.Metric, "value", v.Name)
		h.opts.Metrics.FloatGauge(name, "Latest value of an evaluation metric").Set(v.Value)
	}
}

// resolveLandmarks fills empty ground-truth fields from the landmark source.
// Lookup failures leave the fixture unchanged.
func (h *Harness) resolveLandmarks(ctx context.Context, fixtures []Fixture) []Fixture {
	if h.opts.Landmarks == nil {
		return fixtures
	}
	out := make([]Fixture, len(fixtures))
	copy(out, fixtures)
	for i := range out {
		f := &out[i]
		if len(f.TrueContext) > 0 || strings.TrimSpace(f.Query) == "" {
			continue
		}
		landmarks, err := h.opts.Landmarks.Landmarks(ctx, f.Query)
		if err != nil {
			h.log.Warn("landmark lookup failed", "fixture", f.Name, "destination", f.Query, "error", err)
			continue
		}
		if len(landmarks) == 0 {
			continue
		}
		f.TrueContext = landmarks
		if strings.TrimSpace(f.EntityTruth) == "" {
			f.EntityTruth = strings.Join(landmarks, ", ")
		}
		h.log.Debug("ground truth from graph", "fixture", f.Name, "landmarks", len(landmarks))
	}
	return out
}
