package embed

import (
	"context"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and collapses runs of whitespace, so that visually
// identical queries embed (and cache) identically.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}

type normalized struct {
	Provider
}

// Normalized returns a Provider that normalizes text before embedding it.
// Text that is blank after normalization is rejected with domain.ErrEmptyInput.
func Normalized(p Provider) Provider {
	return &normalized{Provider: p}
}

func (n *normalized) Embed(ctx context.Context, text string) (domain.Vector, error) {
	clean := Normalize(text)
	if clean == "" {
		return nil, domain.NewValidationError("text", text, domain.ErrEmptyInput)
	}
	return n.Provider.Embed(ctx, clean)
}
