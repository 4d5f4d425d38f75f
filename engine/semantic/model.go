// Package semantic owns nearest-neighbour search over destination embeddings.
// Qdrant is the default backend; Redis (RediSearch KNN) is the alternative.
package semantic

import (
	"context"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// Record is a single vector to index together with its string metadata.
type Record struct {
	ID       string
	Vector   domain.Vector
	Metadata map[string]string
}

// Searcher returns the topK nearest matches in a namespace, best first.
type Searcher interface {
	Search(ctx context.Context, vec domain.Vector, topK int, namespace string) ([]domain.Match, error)
}

// Indexer manages the stored vectors.
type Indexer interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, namespace string, records []Record) error
	Count(ctx context.Context, namespace string) (int, error)
}

// Index is a full backend: searchable, writable and closable.
type Index interface {
	Searcher
	Indexer
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

// payloadNamespace is the reserved metadata key holding a record's namespace.
const payloadNamespace = "namespace"
