// Command backfill writes the destination corpus into the knowledge graph.
// Seeding skips a populated vector index, so a graph added later is filled
// here without re-embedding anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/ingest"
	"github.com/WessleyAI/wayfarer/pkg/config"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/repo"
)

func main() {
	corpus := flag.String("corpus", "", "destination corpus JSON (default CORPUS_FILE)")
	workers := flag.Int("workers", 4, "concurrent graph writes")
	prune := flag.Bool("prune", false, "delete graph destinations missing from the corpus")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if cfg.Graph.URL == "" {
		log.Error("NEO4J_URL is required")
		os.Exit(1)
	}
	if *corpus == "" {
		*corpus = cfg.Retrieval.Corpus
	}

	dests, err := ingest.LoadCorpus(*corpus)
	if err != nil {
		log.Error("load corpus", "err", err)
		os.Exit(1)
	}

	driver, err := graph.Connect(ctx, cfg.Graph.URL, cfg.Graph.User, cfg.Graph.Pass)
	if err != nil {
		log.Error("neo4j connect", "err", err)
		os.Exit(1)
	}
	defer driver.Close(context.Background())

	store := graph.New(driver, log)
	st := backfill(ctx, store, dests, *workers, log)
	log.Info("backfill complete", "linked", st.linked, "skipped", st.skipped, "errors", st.errors)
	if *prune {
		removed, err := pruneStale(ctx, store, dests, log)
		if err != nil {
			log.Error("prune", "err", err, "removed", removed)
			os.Exit(1)
		}
		log.Info("prune complete", "removed", removed)
	}
	if gs, err := store.Stats(ctx); err != nil {
		log.Warn("graph stats", "err", err)
	} else {
		log.Info("graph stats", "nodes", gs.Nodes, "relationships", gs.Relationships)
	}
	if st.errors > 0 {
		os.Exit(1)
	}
}

type stats struct {
	linked, skipped, errors int
}

// backfill saves every valid destination. Invalid records are skipped.
func backfill(ctx context.Context, g ingest.GraphWriter, dests []domain.Destination, workers int, log *slog.Logger) stats {
	var st stats
	valid := fn.Filter(dests, func(d domain.Destination) bool {
		if err := domain.ValidateDestination(d); err != nil {
			log.Warn("skipping invalid destination", "err", err)
			return false
		}
		return true
	})
	st.skipped = len(dests) - len(valid)

	results := fn.ParMapCtx(ctx, valid, workers, func(ctx context.Context, d domain.Destination) fn.Result[string] {
		if err := g.SaveDestination(ctx, d); err != nil {
			return fn.Err[string](fmt.Errorf("%s: %w", d.Name, err))
		}
		return fn.Ok(d.Name)
	})
	for _, r := range results {
		name, err := r.Unwrap()
		if err != nil {
			st.errors++
			log.Error("save destination", "err", err)
			continue
		}
		st.linked++
		log.Debug("linked", "destination", name)
	}
	return st
}

const prunePageSize = 100

type prunableGraph interface {
	Destinations(ctx context.Context, opts repo.ListOpts) ([]graph.DestinationNode, error)
	DeleteDestination(ctx context.Context, name string) error
}

// pruneStale deletes graph destinations whose name is not in the corpus. The
// full listing is read before anything is deleted so paging stays stable.
func pruneStale(ctx context.Context, g prunableGraph, dests []domain.Destination, log *slog.Logger) (int, error) {
	keep := make(map[string]bool, len(dests))
	for _, d := range dests {
		keep[strings.TrimSpace(d.Name)] = true
	}

	var stale []string
	for offset := 0; ; offset += prunePageSize {
		page, err := g.Destinations(ctx, repo.ListOpts{Offset: offset, Limit: prunePageSize})
		if err != nil {
			return 0, err
		}
		for _, n := range page {
			if !keep[n.Name] {
				stale = append(stale, n.Name)
			}
		}
		if len(page) < prunePageSize {
			break
		}
	}

	removed := 0
	for _, name := range stale {
		if err := g.DeleteDestination(ctx, name); err != nil {
			return removed, fmt.Errorf("%s: %w", name, err)
		}
		removed++
		log.Info("pruned destination", "destination", name)
	}
	return removed, nil
}
