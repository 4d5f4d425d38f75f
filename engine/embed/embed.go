// Package embed turns text into vectors.
//
// Concrete providers (OpenAI, Gemini, Ollama) are wrapped by decorators that
// normalize input, enforce the model's token limit, cache results and guard the
// network call with a rate limiter, circuit breaker and retry. FromConfig builds
// the full chain.
package embed

import (
	"context"
	"errors"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// Provider produces an embedding for a piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) (domain.Vector, error)
	Model() string
	Close() error
}

// ErrTokenLimit is returned when text exceeds the model's input window.
var ErrTokenLimit = errors.New("token limit exceeded")

func toFloat32(in []float64) domain.Vector {
	out := make(domain.Vector, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
