// Package main runs the retrieval-quality battery and prints the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/harness"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/config"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/WessleyAI/wayfarer/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

type flags struct {
	fixtures string
	asJSON   bool
	publish  bool
	strict   bool
	metrics  bool
}

type evaluator interface {
	Run(ctx context.Context, fixtures []harness.Fixture) (*harness.Report, error)
}

func main() {
	var f flags
	flag.StringVar(&f.fixtures, "fixtures", "", "fixture JSON file (default: built-in battery, or EVAL_FIXTURES)")
	flag.BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	flag.BoolVar(&f.publish, "publish", false, "publish the report to NATS subject "+harness.ReportSubject)
	flag.BoolVar(&f.strict, "strict", false, "exit non-zero when any metric fails")
	flag.BoolVar(&f.metrics, "metrics", false, "print the metrics registry after the report")
	flag.Parse()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if f.fixtures == "" {
		f.fixtures = cfg.Eval.Fixtures
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f, logger); err != nil {
		logger.Error("evaluation failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, logger *slog.Logger) error {
	fixtures, err := loadFixtures(f.fixtures)
	if err != nil {
		return err
	}

	reg := metrics.New()
	embedder, err := embed.FromConfig(ctx, cfg.Embed, reg, logger)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	defer embedder.Close()

	index, err := semantic.Open(ctx, cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()

	opts := harness.Options{
		Workers:     cfg.Eval.Workers,
		CallTimeout: cfg.Eval.CallTimeout,
		Threshold:   float32(cfg.Retrieval.Threshold),
		Namespace:   cfg.Retrieval.Namespace,
		Metrics:     reg,
		Logger:      logger,
	}
	if cfg.Graph.URL != "" {
		driver, err := graph.Connect(ctx, cfg.Graph.URL, cfg.Graph.User, cfg.Graph.Pass)
		if err != nil {
			return err
		}
		defer driver.Close(context.Background())
		opts.Landmarks = graph.New(driver, logger)
	}

	h, err := harness.New(embedder, index, opts)
	if err != nil {
		return err
	}

	var nc *nats.Conn
	if f.publish {
		if cfg.Server.NATSURL == "" {
			return fmt.Errorf("-publish requires NATS_URL")
		}
		nc, err = nats.Connect(cfg.Server.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
	}

	report, err := evaluate(ctx, h, fixtures, f.asJSON, os.Stdout)
	if err != nil {
		return err
	}
	if f.metrics {
		fmt.Fprint(os.Stdout, reg.Render())
	}
	if nc != nil {
		if err := natsutil.Publish(ctx, nc, harness.ReportSubject, report); err != nil {
			return err
		}
		if err := nc.Flush(); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		logger.Info("report published", "subject", harness.ReportSubject)
	}
	if failed := report.Failed(); f.strict && len(failed) > 0 {
		return fmt.Errorf("%d metrics failed, first: %s: %w", len(failed), failed[0].Key(), failed[0].Err)
	}
	return nil
}

func loadFixtures(path string) ([]harness.Fixture, error) {
	if path == "" {
		return harness.DefaultFixtures(), nil
	}
	return harness.LoadFixtures(path)
}

// evaluate runs the battery and writes the report as text or JSON.
func evaluate(ctx context.Context, h evaluator, fixtures []harness.Fixture, asJSON bool, out io.Writer) (*harness.Report, error) {
	report, err := h.Run(ctx, fixtures)
	if err != nil {
		return nil, err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return report, nil
	}
	fmt.Fprint(out, report.Text())
	return report, nil
}
