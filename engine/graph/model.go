// Package graph stores the destination corpus as a Neo4j knowledge graph:
// each Destination links to its Landmarks, which serve as ground truth for
// evaluation fixtures.
package graph

import (
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/fn"
)

// Labels and relationship types.
const (
	LabelDestination = "Destination"
	LabelLandmark    = "Landmark"
	RelHasLandmark   = "HAS_LANDMARK"
)

// DestinationNode is a destination as stored in the graph.
type DestinationNode struct {
	Name       string `json:"name"`
	Highlights string `json:"highlights"`
}

// Landmark is one highlight of a destination, ranked by its position in the
// highlights string.
type Landmark struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// NodeFromDestination converts a corpus record.
func NodeFromDestination(d domain.Destination) DestinationNode {
	return DestinationNode{Name: strings.TrimSpace(d.Name), Highlights: d.Highlights}
}

// Landmarks splits the highlights on ", " and drops blanks. Duplicates keep
// their first rank.
func (d DestinationNode) Landmarks() []Landmark {
	parts := fn.Map(strings.Split(d.Highlights, ", "), strings.TrimSpace)
	names := fn.Unique(fn.Filter(parts, func(s string) bool { return s != "" }))
	out := make([]Landmark, len(names))
	for i, name := range names {
		out[i] = Landmark{Name: name, Rank: i}
	}
	return out
}
