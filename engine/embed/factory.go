package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wayfarer/pkg/config"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
)

// FromConfig builds the configured provider wrapped as
// Normalized → TokenGuard → Cached → Guarded → base.
func FromConfig(ctx context.Context, cfg config.EmbedConfig, reg *metrics.Registry, log *slog.Logger) (Provider, error) {
	if log == nil {
		log = slog.Default()
	}

	var base Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = p
	case config.ProviderGemini:
		p, err := NewGemini(ctx, GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.Model, Dimensions: cfg.Dimensions})
		if err != nil {
			return nil, err
		}
		base = p
	case config.ProviderOllama:
		base = NewOllama(cfg.OllamaURL, cfg.Model)
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}

	guarded := NewGuarded(base, GuardOpts{
		Retry: fn.RetryOpts{
			MaxAttempts: cfg.MaxAttempts,
			InitialWait: 250 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Jitter:      true,
		},
		Breaker: resilience.BreakerOpts{FailThreshold: cfg.FailureLimit, Timeout: 30 * time.Second},
		Limiter: resilience.LimiterOpts{Rate: cfg.RatePerSec, Burst: max(1, int(cfg.RatePerSec))},
		Logger:  log,
	})

	var store Store
	if cfg.CacheDB != "" {
		s, err := OpenSQLiteStore(cfg.CacheDB)
		if err != nil {
			return nil, errors.Join(err, base.Close())
		}
		store = s
	}
	cached, err := NewCached(guarded, CacheOpts{Size: cfg.CacheSize, Store: store, Metrics: reg, Logger: log})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	guard, err := NewTokenGuard(cached, DefaultMaxTokens)
	if err != nil {
		cached.Close()
		return nil, err
	}
	log.Info("embedding provider ready", "provider", cfg.Provider, "model", base.Model(), "cache_db", cfg.CacheDB)
	return Normalized(guard), nil
}
