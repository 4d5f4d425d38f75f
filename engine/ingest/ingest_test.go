package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/semantic"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for key, err := range f.fail {
		if strings.Contains(text, key) {
			return nil, err
		}
	}
	return domain.Vector{float32(len(text)), 1}, nil
}
func (f *fakeEmbedder) Model() string { return "fake" }
func (f *fakeEmbedder) Close() error  { return nil }

type fakeIndex struct {
	mu        sync.Mutex
	existing  int
	dims      int
	upserts   [][]semantic.Record
	namespace string
	upsertErr error
	countErr  error
}

func (f *fakeIndex) EnsureCollection(_ context.Context, dims int) error {
	f.dims = dims
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, ns string, records []semantic.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.namespace = ns
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeIndex) Count(_ context.Context, _ string) (int, error) {
	return f.existing, f.countErr
}

func (f *fakeIndex) records() []semantic.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []semantic.Record
	for _, batch := range f.upserts {
		out = append(out, batch...)
	}
	return out
}

type fakeGraph struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (g *fakeGraph) SaveDestination(_ context.Context, d domain.Destination) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.saved = append(g.saved, d.Name)
	return nil
}

var paris = domain.Destination{Name: "Paris", Highlights: "Eiffel Tower, Louvre Museum, Notre-Dame Cathedral"}

func TestPointID_Stable(t *testing.T) {
	a, b := PointID(paris), PointID(domain.Destination{Name: "Paris", Highlights: "changed"})
	if a != b {
		t.Errorf("point id should depend on name only: %s vs %s", a, b)
	}
	if a == PointID(domain.Destination{Name: "Rome"}) {
		t.Error("different destinations share an id")
	}
}

func TestValidateStage(t *testing.T) {
	if Validate(context.Background(), paris).IsErr() {
		t.Fatal("expected valid")
	}
	r := Validate(context.Background(), domain.Destination{Name: "Rome"})
	if !errors.Is(r.Failure(), domain.ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", r.Failure())
	}
}

func TestPipeline(t *testing.T) {
	idx := &fakeIndex{}
	g := &fakeGraph{}
	e := &fakeEmbedder{}
	pipeline := NewPipeline(Deps{Embedder: e, Index: idx, Graph: g, Namespace: "travel"})

	id, err := pipeline(context.Background(), paris).Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if id != PointID(paris) {
		t.Errorf("id = %s", id)
	}
	recs := idx.records()
	if len(recs) != 1 || idx.namespace != "travel" {
		t.Fatalf("unexpected upserts %+v in %q", recs, idx.namespace)
	}
	if recs[0].Metadata[domain.MetaDestinationName] != "Paris" || recs[0].Metadata[domain.MetaHighlights] != paris.Highlights {
		t.Errorf("unexpected metadata %v", recs[0].Metadata)
	}
	if recs[0].Vector[0] != float32(len(paris.Text())) {
		t.Error("pipeline must embed Destination.Text()")
	}
	if len(g.saved) != 1 || g.saved[0] != "Paris" {
		t.Errorf("graph not written: %v", g.saved)
	}
}

func TestPipeline_InvalidSkipsEmbed(t *testing.T) {
	e := &fakeEmbedder{}
	pipeline := NewPipeline(Deps{Embedder: e, Index: &fakeIndex{}})
	if pipeline(context.Background(), domain.Destination{Highlights: "x"}).IsOk() {
		t.Fatal("expected error")
	}
	if e.calls != 0 {
		t.Error("invalid destination reached the embedder")
	}
}

func TestPipeline_GraphFailureIsNotFatal(t *testing.T) {
	idx := &fakeIndex{}
	pipeline := NewPipeline(Deps{Embedder: &fakeEmbedder{}, Index: idx, Graph: &fakeGraph{err: errors.New("neo4j down")}})
	if _, err := pipeline(context.Background(), paris).Unwrap(); err != nil {
		t.Fatalf("graph failure should be logged only, got %v", err)
	}
	if len(idx.records()) != 1 {
		t.Error("vector should still be stored")
	}
}

func TestPipeline_UpsertError(t *testing.T) {
	down := domain.NewProviderError("qdrant", "upsert", errors.New("unavailable"))
	pipeline := NewPipeline(Deps{Embedder: &fakeEmbedder{}, Index: &fakeIndex{upsertErr: down}})
	_, err := pipeline(context.Background(), paris).Unwrap()
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
