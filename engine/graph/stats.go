package graph

import (
	"context"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// Stats summarizes the graph.
type Stats struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return g.counts(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`)
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return g.counts(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`)
}

// Stats returns node and relationship counts.
func (g *GraphStore) Stats(ctx context.Context) (Stats, error) {
	nodes, err := g.NodeCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	rels, err := g.RelationshipCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Nodes: nodes, Relationships: rels}, nil
}

func (g *GraphStore) counts(ctx context.Context, cypher string) (map[string]int64, error) {
	records, err := g.destinations.Query(ctx, cypher, nil)
	if err != nil {
		return nil, domain.NewProviderError("neo4j", "count", err)
	}
	counts := make(map[string]int64)
	for _, rec := range records {
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}
