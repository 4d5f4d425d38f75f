package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore provides destination graph operations on top of the generic Neo4j repository.
type GraphStore struct {
	destinations *repo.Neo4jRepo[DestinationNode, string]
	log          *slog.Logger
}

// New creates a GraphStore backed by driver.
func New(driver neo4j.DriverWithContext, log *slog.Logger) *GraphStore {
	return newStore(newDestinationRepo(driver), log)
}

// NewWithSession creates a GraphStore whose queries run on sessions from open.
func NewWithSession(open func(ctx context.Context) repo.Session, log *slog.Logger) *GraphStore {
	return newStore(newDestinationRepo(nil, repo.WithSession[DestinationNode, string](open)), log)
}

func newStore(r *repo.Neo4jRepo[DestinationNode, string], log *slog.Logger) *GraphStore {
	if log == nil {
		log = slog.Default()
	}
	return &GraphStore{destinations: r, log: log}
}

// Connect opens a Neo4j driver and verifies connectivity.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, domain.NewProviderError("neo4j", "connect", err)
	}
	return driver, nil
}

const saveDestinationCypher = `MERGE (d:Destination {name: $name})
SET d.highlights = $highlights
WITH d
OPTIONAL MATCH (d)-[old:HAS_LANDMARK]->(:Landmark)
DELETE old
WITH DISTINCT d
UNWIND $landmarks AS lm
MERGE (l:Landmark {name: lm.name})
MERGE (d)-[r:HAS_LANDMARK]->(l)
SET r.rank = lm.rank`

// SaveDestination merges the destination and replaces its landmark links in
// one statement, so re-saving a record is idempotent.
func (g *GraphStore) SaveDestination(ctx context.Context, d domain.Destination) error {
	if err := domain.ValidateDestination(d); err != nil {
		return err
	}
	node := NodeFromDestination(d)
	landmarks := node.Landmarks()
	params := make([]map[string]any, len(landmarks))
	for i, l := range landmarks {
		params[i] = map[string]any{"name": l.Name, "rank": int64(l.Rank)}
	}
	_, err := g.destinations.Query(ctx, saveDestinationCypher, map[string]any{
		"name":       node.Name,
		"highlights": node.Highlights,
		"landmarks":  params,
	})
	if err != nil {
		return domain.NewProviderError("neo4j", "save destination", err)
	}
	g.log.Debug("destination saved", "destination", node.Name, "landmarks", len(landmarks))
	return nil
}

// Destination returns a destination by name.
func (g *GraphStore) Destination(ctx context.Context, name string) (DestinationNode, error) {
	d, err := g.destinations.Get(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return DestinationNode{}, err
		}
		return DestinationNode{}, domain.NewProviderError("neo4j", "get destination", err)
	}
	return d, nil
}

// Destinations lists destinations ordered by name.
func (g *GraphStore) Destinations(ctx context.Context, opts repo.ListOpts) ([]DestinationNode, error) {
	items, err := g.destinations.List(ctx, opts)
	if err != nil {
		return nil, domain.NewProviderError("neo4j", "list destinations", err)
	}
	return items, nil
}

// DeleteDestination removes a destination and its landmark links. Landmarks
// shared with other destinations stay.
func (g *GraphStore) DeleteDestination(ctx context.Context, name string) error {
	if err := g.destinations.Delete(ctx, strings.TrimSpace(name)); err != nil {
		return domain.NewProviderError("neo4j", "delete destination", err)
	}
	return nil
}

const landmarksCypher = `MATCH (d:Destination {name: $name})-[r:HAS_LANDMARK]->(l:Landmark)
RETURN l.name AS name, r.rank AS rank
ORDER BY r.rank`

// Landmarks returns the destination's landmarks in rank order. A destination
// without landmarks reports repo.ErrNotFound.
func (g *GraphStore) Landmarks(ctx context.Context, destination string) (domain.ContextSet, error) {
	name := strings.TrimSpace(destination)
	records, err := g.destinations.Query(ctx, landmarksCypher, map[string]any{"name": name})
	if err != nil {
		return nil, domain.NewProviderError("neo4j", "landmarks", err)
	}
	out := make(domain.ContextSet, 0, len(records))
	for _, rec := range records {
		v, _ := rec.Get("name")
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("landmarks of %q: %w", name, repo.ErrNotFound)
	}
	return out, nil
}

const sharedLandmarksCypher = `MATCH (a:Destination {name: $name})-[:HAS_LANDMARK]->(l:Landmark)<-[:HAS_LANDMARK]-(b:Destination)
WHERE b.name <> $name
RETURN DISTINCT b.name AS name
ORDER BY name`

// Related returns destinations sharing at least one landmark with destination.
func (g *GraphStore) Related(ctx context.Context, destination string) ([]string, error) {
	records, err := g.destinations.Query(ctx, sharedLandmarksCypher, map[string]any{"name": strings.TrimSpace(destination)})
	if err != nil {
		return nil, domain.NewProviderError("neo4j", "related", err)
	}
	var out []string
	for _, rec := range records {
		v, _ := rec.Get("name")
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
