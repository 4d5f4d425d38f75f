package embed

import (
	"context"
	"errors"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel supports a configurable output width, including 1536.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// Gemini embeds text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	dims   int32
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embed: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.NewProviderError("gemini", "connect", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, dims: int32(cfg.Dimensions)}, nil
}

func (g *Gemini) Model() string { return g.model }
func (g *Gemini) Close() error  { return nil }

// Embed sends one EmbedContent request.
func (g *Gemini) Embed(ctx context.Context, text string) (domain.Vector, error) {
	var cfg *genai.EmbedContentConfig
	if g.dims > 0 {
		dims := g.dims
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}
	res, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		return nil, domain.NewProviderError("gemini", "embed", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, domain.NewProviderError("gemini", "embed", errors.New("no embedding returned"))
	}
	return domain.Vector(res.Embeddings[0].Values), nil
}
