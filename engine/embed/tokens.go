package embed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultMaxTokens is the input window of the OpenAI embedding models.
const DefaultMaxTokens = 8191

// TokenGuard rejects text longer than the model window before any network call.
type TokenGuard struct {
	Provider
	enc tokenizer.Codec
	max int
}

// NewTokenGuard wraps p with a cl100k_base token counter.
func NewTokenGuard(p Provider, maxTokens int) (*TokenGuard, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("embed: load tokenizer: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &TokenGuard{Provider: p, enc: enc, max: maxTokens}, nil
}

// Count returns the number of tokens in text.
func (g *TokenGuard) Count(text string) int {
	ids, _, _ := g.enc.Encode(text)
	return len(ids)
}

func (g *TokenGuard) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if n := g.Count(text); n > g.max {
		return nil, domain.NewValidationError("text", strconv.Itoa(n)+" tokens", ErrTokenLimit)
	}
	return g.Provider.Embed(ctx, text)
}
