package embed

import (
	"context"
	"errors"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultOpenAIModel matches the 1536-dimension default index.
const DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	OrgID      string
	Model      string
	Dimensions int
}

// OpenAI embeds text with the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI provider. Retries are left to Guarded.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embed: openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.OrgID != "" {
		opts = append(opts, option.WithOrganization(cfg.OrgID))
	}

	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model, dims: cfg.Dimensions}, nil
}

func (p *OpenAI) Model() string { return p.model }
func (p *OpenAI) Close() error  { return nil }

// Embed sends one embedding request.
func (p *OpenAI) Embed(ctx context.Context, text string) (domain.Vector, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	}
	// Only the v3 models accept a reduced output width.
	if p.dims > 0 && strings.HasPrefix(p.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(p.dims))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, domain.NewProviderError("openai", "embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewProviderError("openai", "embed", errors.New("no embedding returned"))
	}
	return toFloat32(resp.Data[0].Embedding), nil
}
