// Package domain defines the core types shared by the recommendation and
// evaluation paths: embedding vectors, ranked matches, context sets and the
// destination corpus record. It also acts as the validation gate at entry points.
package domain

import "fmt"

// DefaultDimensions is the embedding width of the default model (text-embedding-3-small).
const DefaultDimensions = 1536

// DefaultThreshold is the similarity a top match must exceed to be accepted.
const DefaultThreshold float32 = 0.75

// Metadata keys attached to every indexed destination.
const (
	MetaDestinationName = "destination_name"
	MetaHighlights      = "highlights"
)

// Vector is a dense embedding. Values are never mutated after creation.
type Vector []float32

// Match is one ranked hit returned by a similarity provider.
type Match struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns a metadata value and whether it was present and non-empty.
// An empty value counts as absent so callers fall back to their defaults.
func (m Match) Meta(key string) (string, bool) {
	v, ok := m.Metadata[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextSet is an ordered list of context strings. Duplicates are meaningful.
type ContextSet []string

// Destination is a single corpus record.
type Destination struct {
	Name       string `json:"destination_name"`
	Highlights string `json:"highlights"`
}

// Text is the string embedded for a destination.
func (d Destination) Text() string {
	return fmt.Sprintf("Destination: %s. Highlights: %s", d.Name, d.Highlights)
}

// Metadata returns the payload stored next to the destination's vector.
func (d Destination) Metadata() map[string]string {
	return map[string]string{
		MetaDestinationName: d.Name,
		MetaHighlights:      d.Highlights,
	}
}
