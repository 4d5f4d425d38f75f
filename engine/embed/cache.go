package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the in-memory entry count used when none is configured.
const DefaultCacheSize = 1024

// Store is a persistent vector tier behind the in-memory cache.
type Store interface {
	Get(ctx context.Context, key string) (domain.Vector, bool, error)
	Put(ctx context.Context, key, model string, vec domain.Vector) error
	Close() error
}

// CacheOpts configures Cached.
type CacheOpts struct {
	Size    int
	Store   Store // optional
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Cached memoizes embeddings by model and text.
type Cached struct {
	Provider
	mem    *lru.Cache[string, domain.Vector]
	store  Store
	log    *slog.Logger
	hits   *metrics.Counter
	misses *metrics.Counter
}

// NewCached wraps p with an LRU and an optional persistent store.
func NewCached(p Provider, opts CacheOpts) (*Cached, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultCacheSize
	}
	mem, err := lru.New[string, domain.Vector](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("embed: cache: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.New()
	}
	return &Cached{
		Provider: p,
		mem:      mem,
		store:    opts.Store,
		log:      opts.Logger,
		hits:     reg.Counter("embed_cache_hits_total", "Embedding cache hits (memory or store)."),
		misses:   reg.Counter("embed_cache_misses_total", "Embedding cache misses."),
	}, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector or calls the wrapped provider. Store failures
// are logged and never fail the call.
func (c *Cached) Embed(ctx context.Context, text string) (domain.Vector, error) {
	key := cacheKey(c.Model(), text)
	if v, ok := c.mem.Get(key); ok {
		c.hits.Inc()
		return v, nil
	}
	if c.store != nil {
		v, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warn("embed: cache store read failed", "err", err)
		} else if ok {
			c.hits.Inc()
			c.mem.Add(key, v)
			return v, nil
		}
	}

	c.misses.Inc()
	v, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, v)
	if c.store != nil {
		if err := c.store.Put(ctx, key, c.Model(), v); err != nil {
			c.log.Warn("embed: cache store write failed", "err", err)
		}
	}
	return v, nil
}

// Len reports the number of in-memory entries.
func (c *Cached) Len() int { return c.mem.Len() }

func (c *Cached) Close() error {
	var storeErr error
	if c.store != nil {
		storeErr = c.store.Close()
	}
	return errors.Join(c.Provider.Close(), storeErr)
}
