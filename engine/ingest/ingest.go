// Package ingest loads destination records, embeds them and writes them to
// the vector index and, optionally, the knowledge graph.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/fn"
)

// GraphWriter stores destinations in the knowledge graph.
type GraphWriter interface {
	SaveDestination(ctx context.Context, d domain.Destination) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder  embed.Provider
	Index     semantic.Indexer
	Graph     GraphWriter // optional
	Namespace string
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Validate checks a destination via domain validation.
var Validate fn.Stage[domain.Destination, domain.Destination] = func(_ context.Context, d domain.Destination) fn.Result[domain.Destination] {
	if err := domain.ValidateDestination(d); err != nil {
		return fn.Err[domain.Destination](err)
	}
	return fn.Ok(d)
}

// NewEmbed creates a stage that embeds the destination's text.
func NewEmbed(p embed.Provider) fn.Stage[domain.Destination, EmbeddedDestination] {
	return func(ctx context.Context, d domain.Destination) fn.Result[EmbeddedDestination] {
		vec, err := p.Embed(ctx, d.Text())
		if err != nil {
			return fn.Err[EmbeddedDestination](fmt.Errorf("embed %q: %w", d.Name, err))
		}
		return fn.Ok(EmbeddedDestination{Destination: d, ID: PointID(d), Vector: vec})
	}
}

// NewStore creates a stage that upserts the vector and, when a graph is
// configured, the destination's landmarks. Graph failures are logged only.
func NewStore(idx semantic.Indexer, g GraphWriter, namespace string, log *slog.Logger) fn.Stage[EmbeddedDestination, string] {
	return func(ctx context.Context, e EmbeddedDestination) fn.Result[string] {
		if err := idx.Upsert(ctx, namespace, []semantic.Record{e.Record()}); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}
		if g != nil {
			if err := g.SaveDestination(ctx, e.Destination); err != nil {
				log.Warn("ingest: graph save", "error", err, "destination", e.Name)
			}
		}
		return fn.Ok(e.ID)
	}
}

// LoggedTap returns a stage that logs entry into the named stage.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return fn.TapStage(func(ctx context.Context, _ T) {
		log.DebugContext(ctx, "stage.enter", "stage", name)
	})
}

// NewPipeline constructs Validate → Embed → Store for a single destination.
func NewPipeline(deps Deps) fn.Stage[domain.Destination, string] {
	log := deps.logger()

	validated := fn.Then(LoggedTap[domain.Destination]("validate", log), Validate)
	embedded := fn.Then(validated, fn.Then(LoggedTap[domain.Destination]("embed", log), NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, fn.Then(LoggedTap[EmbeddedDestination]("store", log), NewStore(deps.Index, deps.Graph, deps.Namespace, log)))

	return fn.TracedStage("ingest.destination", stored)
}
