// Package decision accepts or rejects the best similarity match for a query.
package decision

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// Defaults used when a found match lacks metadata.
const (
	UnknownDestination = "Unknown destination"
	NoHighlights       = "No highlights information found."
)

// Kind distinguishes a found recommendation from a miss.
type Kind int

const (
	KindNotFound Kind = iota
	KindFound
)

func (k Kind) String() string {
	if k == KindFound {
		return "found"
	}
	return "not_found"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Decision is the outcome of a recommendation lookup.
// DestinationName and Highlights are set only when Kind is KindFound.
type Decision struct {
	Kind            Kind   `json:"kind"`
	DestinationName string `json:"destination_name,omitempty"`
	Highlights      string `json:"highlights,omitempty"`
}

// Found returns a found decision, defaulting blank fields.
func Found(name, highlights string) Decision {
	if name == "" {
		name = UnknownDestination
	}
	if highlights == "" {
		highlights = NoHighlights
	}
	return Decision{Kind: KindFound, DestinationName: name, Highlights: highlights}
}

// NotFound returns the miss decision.
func NotFound() Decision { return Decision{Kind: KindNotFound} }

func (d Decision) IsFound() bool { return d.Kind == KindFound }

func (d Decision) String() string {
	if !d.IsFound() {
		return "Destination not found in data"
	}
	return fmt.Sprintf("Destination Name: %s\nHighlights:\n%s", d.DestinationName, FormatHighlights(d.Highlights))
}

// Decide inspects only the first match, which the provider ranks best.
// The match is accepted when its score is strictly above threshold.
func Decide(matches []domain.Match, threshold float32) Decision {
	if len(matches) == 0 || !(matches[0].Score > threshold) {
		return NotFound()
	}
	top := matches[0]
	name, _ := top.Meta(domain.MetaDestinationName)
	highlights, _ := top.Meta(domain.MetaHighlights)
	return Found(name, highlights)
}

// FormatHighlights puts each comma-separated highlight on its own line.
func FormatHighlights(s string) string {
	return strings.Join(strings.Split(s, ", "), "\n")
}
