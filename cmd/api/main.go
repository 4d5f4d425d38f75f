// Package main implements the Wayfarer API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/wayfarer/engine/decision"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/harness"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/config"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// --- Embedding provider ---
	embedder, err := embed.FromConfig(ctx, cfg.Embed, reg, logger)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	defer embedder.Close()

	// --- Vector index ---
	index, err := semantic.Open(ctx, cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()

	// --- Knowledge graph (optional) ---
	var graphStore *graph.GraphStore
	if cfg.Graph.URL != "" {
		driver, err := graph.Connect(ctx, cfg.Graph.URL, cfg.Graph.User, cfg.Graph.Pass)
		if err != nil {
			return err
		}
		defer driver.Close(context.Background())
		graphStore = graph.New(driver, logger)
	}

	threshold := float32(cfg.Retrieval.Threshold)
	recOpts := decision.DefaultOptions()
	recOpts.Threshold = threshold
	recOpts.Namespace = cfg.Retrieval.Namespace
	recommender, err := decision.NewRecommender(embedder, index, recOpts, logger)
	if err != nil {
		return fmt.Errorf("recommender: %w", err)
	}

	evalOpts := harness.Options{
		Workers:     cfg.Eval.Workers,
		CallTimeout: cfg.Eval.CallTimeout,
		Threshold:   threshold,
		Namespace:   cfg.Retrieval.Namespace,
		Metrics:     reg,
		Logger:      logger,
	}
	if graphStore != nil {
		evalOpts.Landmarks = graphStore
	}
	evaluator, err := harness.New(embedder, index, evalOpts)
	if err != nil {
		return fmt.Errorf("harness: %w", err)
	}

	srv := &server{
		recommender: recommender,
		evaluator:   evaluator,
		evalLimiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.Eval.RatePerSec, Burst: 1}),
		log:         logger,
	}
	if graphStore != nil {
		srv.graph = graphStore
	}

	// --- Published evaluation reports (optional) ---
	if cfg.Server.NATSURL != "" {
		nc, err := nats.Connect(cfg.Server.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sub, err := srv.subscribeReports(nc)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.routes(reg, cfg.Server.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting",
			"port", cfg.Server.Port,
			"embedder", embedder.Model(),
			"backend", cfg.Retrieval.Backend,
			"graph", graphStore != nil,
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
