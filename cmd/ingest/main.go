// Command ingest bootstraps the vector index from the destination corpus and,
// with -consume, keeps indexing destination records that arrive over NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/ingest"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/config"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/nats-io/nats.go"
)

type flags struct {
	corpus      string
	force       bool
	reset       bool
	consume     bool
	metricsAddr string
	workers     int
}

func main() {
	var f flags
	flag.StringVar(&f.corpus, "corpus", "", "destination corpus JSON (default CORPUS_FILE)")
	flag.BoolVar(&f.force, "force", false, "re-embed the corpus even when the index is populated")
	flag.BoolVar(&f.reset, "reset", false, "delete the namespace's vectors before seeding")
	flag.BoolVar(&f.consume, "consume", false, "after seeding, consume records from NATS subject "+ingest.CorpusSubject)
	flag.StringVar(&f.metricsAddr, "metrics-addr", ":9091", "metrics listen address while consuming")
	flag.IntVar(&f.workers, "workers", 4, "concurrent embedding calls while seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if f.corpus == "" {
		f.corpus = cfg.Retrieval.Corpus
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f, log); err != nil {
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, log *slog.Logger) error {
	reg := metrics.New()

	embedder, err := embed.FromConfig(ctx, cfg.Embed, reg, log)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	defer embedder.Close()

	index, err := semantic.Open(ctx, cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()

	deps := ingest.Deps{
		Embedder:  embedder,
		Index:     index,
		Namespace: cfg.Retrieval.Namespace,
		Logger:    log,
	}
	if cfg.Graph.URL != "" {
		driver, err := graph.Connect(ctx, cfg.Graph.URL, cfg.Graph.User, cfg.Graph.Pass)
		if err != nil {
			return err
		}
		defer driver.Close(context.Background())
		deps.Graph = graph.New(driver, log)
		log.Info("connected to Neo4j")
	}

	if f.reset {
		if err := reset(ctx, index, deps.Namespace, cfg.Embed.Dimensions); err != nil {
			return err
		}
		log.Info("namespace reset", "namespace", deps.Namespace)
	}

	res, err := seed(ctx, deps, f, cfg.Embed.Dimensions)
	if err != nil {
		return err
	}
	log.Info("seed finished", "skipped", res.Skipped, "seeded", res.Seeded, "existing", res.Existing)

	if !f.consume {
		return nil
	}
	if cfg.Server.NATSURL == "" {
		return fmt.Errorf("-consume requires NATS_URL")
	}
	nc, err := nats.Connect(cfg.Server.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	metricsSrv := reg.ServeAsync(f.metricsAddr, log)
	defer metricsSrv.Close()

	log.Info("consuming", "subject", ingest.CorpusSubject, "dlq", ingest.DLQSubject)
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

type resettable interface {
	EnsureCollection(ctx context.Context, dims int) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// reset empties the namespace so the following seed embeds the whole corpus
// and records dropped from it disappear from the index.
func reset(ctx context.Context, idx resettable, namespace string, dims int) error {
	if err := idx.EnsureCollection(ctx, dims); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := idx.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// seed loads the corpus and indexes it when the namespace is empty or force is set.
func seed(ctx context.Context, deps ingest.Deps, f flags, dims int) (ingest.SeedResult, error) {
	dests, err := ingest.LoadCorpus(f.corpus)
	if err != nil {
		return ingest.SeedResult{}, err
	}
	return ingest.Seed(ctx, deps, dests, ingest.SeedOptions{
		Dims:    dims,
		Workers: f.workers,
		Force:   f.force,
	})
}
