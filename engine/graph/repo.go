package graph

import (
	"fmt"

	"github.com/WessleyAI/wayfarer/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func newDestinationRepo(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[DestinationNode, string]) *repo.Neo4jRepo[DestinationNode, string] {
	opts = append([]repo.Neo4jOption[DestinationNode, string]{repo.WithIDKey[DestinationNode, string]("name")}, opts...)
	return repo.NewNeo4jRepo[DestinationNode, string](
		driver,
		LabelDestination,
		destinationToMap,
		destinationFromRecord,
		opts...,
	)
}

func destinationToMap(d DestinationNode) map[string]any {
	return map[string]any{
		"name":       d.Name,
		"highlights": d.Highlights,
	}
}

func destinationFromRecord(rec *neo4j.Record) (DestinationNode, error) {
	raw, ok := rec.Get("n")
	if !ok {
		return DestinationNode{}, fmt.Errorf("graph: record has no n")
	}
	props, ok := nodeProps(raw)
	if !ok {
		return DestinationNode{}, fmt.Errorf("graph: unexpected node type %T", raw)
	}
	return DestinationNode{
		Name:       strProp(props, "name"),
		Highlights: strProp(props, "highlights"),
	}, nil
}

// nodeProps accepts driver nodes and plain maps (as returned by fakes).
func nodeProps(v any) (map[string]any, bool) {
	switch n := v.(type) {
	case dbtype.Node:
		return n.Props, true
	case map[string]any:
		return n, true
	}
	return nil, false
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
