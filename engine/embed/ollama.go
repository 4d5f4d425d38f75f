package embed

import (
	"context"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/ollama"
)

// Ollama embeds text with a local Ollama server.
type Ollama struct {
	client *ollama.EmbedClient
}

// NewOllama creates an Ollama provider.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{client: ollama.NewEmbedClient(baseURL, model)}
}

func (o *Ollama) Model() string { return o.client.Model() }
func (o *Ollama) Close() error  { return nil }

func (o *Ollama) Embed(ctx context.Context, text string) (domain.Vector, error) {
	vec, err := o.client.Embed(ctx, text)
	if err != nil {
		return nil, domain.NewProviderError("ollama", "embed", err)
	}
	return domain.Vector(vec), nil
}
