package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/fn"
)

// LoadCorpus reads a JSON array of {destination_name, highlights} records.
func LoadCorpus(path string) ([]domain.Destination, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: load corpus: %w", err)
	}
	defer f.Close()
	return DecodeCorpus(f)
}

// DecodeCorpus decodes a corpus without validating individual records.
func DecodeCorpus(r io.Reader) ([]domain.Destination, error) {
	var dests []domain.Destination
	if err := json.NewDecoder(r).Decode(&dests); err != nil {
		return nil, fmt.Errorf("ingest: decode corpus: %w", err)
	}
	return dests, nil
}

// SeedOptions configures Seed.
type SeedOptions struct {
	Dims      int
	Workers   int
	BatchSize int
	// Force seeds even when the namespace already holds vectors.
	Force bool
}

// SeedResult reports what Seed did.
type SeedResult struct {
	Skipped  bool  `json:"skipped"`
	Existing int   `json:"existing"`
	Seeded   int   `json:"seeded"`
	Invalid  int   `json:"invalid"`
	Failed   int   `json:"failed"`
	Err      error `json:"-"`
}

// Seed creates the collection if missing and indexes the corpus when the
// namespace is empty. Invalid records are skipped and counted; embedding
// failures are counted and joined into the returned error.
func Seed(ctx context.Context, deps Deps, dests []domain.Destination, opts SeedOptions) (SeedResult, error) {
	log := deps.logger()
	if opts.Dims <= 0 {
		opts.Dims = domain.DefaultDimensions
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}

	if err := deps.Index.EnsureCollection(ctx, opts.Dims); err != nil {
		return SeedResult{}, fmt.Errorf("ingest: seed: %w", err)
	}
	existing, err := deps.Index.Count(ctx, deps.Namespace)
	if err != nil {
		return SeedResult{}, fmt.Errorf("ingest: seed: %w", err)
	}
	res := SeedResult{Existing: existing}
	if existing > 0 && !opts.Force {
		res.Skipped = true
		log.Info("ingest: index already seeded", "namespace", deps.Namespace, "vectors", existing)
		return res, nil
	}

	var valid []domain.Destination
	for _, d := range dests {
		if err := domain.ValidateDestination(d); err != nil {
			res.Invalid++
			log.Warn("ingest: invalid destination", "error", err)
			continue
		}
		valid = append(valid, d)
	}

	embedStage := NewEmbed(deps.Embedder)
	results := fn.ParMapCtx(ctx, valid, opts.Workers, func(ctx context.Context, d domain.Destination) fn.Result[EmbeddedDestination] {
		return embedStage(ctx, d)
	})

	var errs []error
	var embedded []EmbeddedDestination
	for _, r := range results {
		e, err := r.Unwrap()
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		embedded = append(embedded, e)
	}

	for _, batch := range fn.Chunk(embedded, opts.BatchSize) {
		records := fn.Map(batch, EmbeddedDestination.Record)
		if err := deps.Index.Upsert(ctx, deps.Namespace, records); err != nil {
			res.Failed += len(batch)
			errs = append(errs, fmt.Errorf("vector upsert: %w", err))
			continue
		}
		res.Seeded += len(batch)
		if deps.Graph == nil {
			continue
		}
		for _, e := range batch {
			if err := deps.Graph.SaveDestination(ctx, e.Destination); err != nil {
				log.Warn("ingest: graph save", "error", err, "destination", e.Name)
			}
		}
	}

	log.Info("ingest: seed complete",
		"namespace", deps.Namespace,
		"seeded", res.Seeded,
		"invalid", res.Invalid,
		"failed", res.Failed,
	)
	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		return res, fmt.Errorf("ingest: seed: %d of %d records failed: %w", res.Failed, len(valid), res.Err)
	}
	return res, nil
}
