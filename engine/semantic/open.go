package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/wayfarer/pkg/config"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("semantic: unknown backend")

// Open connects the configured backend. Both backends name their collection
// (or search index) after cfg.Collection.
func Open(ctx context.Context, cfg config.RetrievalConfig) (Index, error) {
	switch cfg.Backend {
	case config.BackendQdrant:
		return New(cfg.QdrantURL, cfg.Collection)
	case config.BackendRedis:
		return NewRedisIndex(ctx, cfg.RedisURL, cfg.Collection)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
