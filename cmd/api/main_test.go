package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/wayfarer/engine/decision"
	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/harness"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/WessleyAI/wayfarer/pkg/natsutil"
	"github.com/WessleyAI/wayfarer/pkg/repo"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(_ context.Context, _ string) (domain.Vector, error) {
	if s.err != nil {
		return nil, s.err
	}
	return domain.Vector{1, 0}, nil
}
func (stubEmbedder) Model() string { return "stub" }
func (stubEmbedder) Close() error  { return nil }

type stubSearcher struct{ score float32 }

func (s stubSearcher) Search(_ context.Context, _ domain.Vector, _ int, _ string) ([]domain.Match, error) {
	d := domain.Destination{Name: "Paris", Highlights: "Eiffel Tower, Louvre Museum"}
	return []domain.Match{{ID: "1", Score: s.score, Metadata: d.Metadata()}}, nil
}

type stubGraph struct{ err error }

func (stubGraph) Landmarks(_ context.Context, name string) (domain.ContextSet, error) {
	if name != "Paris" {
		return nil, repo.ErrNotFound
	}
	return domain.ContextSet{"Eiffel Tower", "Louvre Museum"}, nil
}

func (g stubGraph) Destinations(_ context.Context, opts repo.ListOpts) ([]graph.DestinationNode, error) {
	if g.err != nil {
		return nil, g.err
	}
	all := []graph.DestinationNode{{Name: "Paris", Highlights: "Eiffel Tower"}, {Name: "Rome", Highlights: "Colosseum"}}
	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (stubGraph) Related(_ context.Context, name string) ([]string, error) {
	if name == "Paris" {
		return []string{"Nice"}, nil
	}
	return nil, nil
}

func (g stubGraph) Stats(context.Context) (graph.Stats, error) {
	if g.err != nil {
		return graph.Stats{}, g.err
	}
	return graph.Stats{Nodes: map[string]int64{"Destination": 2}, Relationships: map[string]int64{"HAS_LANDMARK": 2}}, nil
}

func newTestServer(t *testing.T, e stubEmbedder, score float32) (http.Handler, *metrics.Registry) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec, err := decision.NewRecommender(e, stubSearcher{score: score}, decision.DefaultOptions(), log)
	if err != nil {
		t.Fatal(err)
	}
	opts := harness.DefaultOptions()
	opts.Logger = log
	ev, err := harness.New(e, stubSearcher{score: score}, opts)
	if err != nil {
		t.Fatal(err)
	}
	reg := metrics.New()
	s := &server{recommender: rec, evaluator: ev, graph: stubGraph{}, log: log}
	return s.routes(reg, "*"), reg
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestRecommend_Found(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "POST", "/api/recommend", `{"query":"Paris"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Kind            string `json:"kind"`
		DestinationName string `json:"destination_name"`
		Text            string `json:"text"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != "found" || resp.DestinationName != "Paris" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Text != "Destination Name: Paris\nHighlights:\nEiffel Tower\nLouvre Museum" {
		t.Errorf("unexpected text %q", resp.Text)
	}
}

func TestRecommend_NotFoundAtThreshold(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, domain.DefaultThreshold)
	rec := do(h, "POST", "/api/recommend", `{"query":"Paris"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"kind":"not_found"`) {
		t.Fatalf("expected not_found, got %d %s", rec.Code, rec.Body)
	}
}

func TestRecommend_BadRequests(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	for _, body := range []string{"not json", `{"query":"   "}`} {
		if rec := do(h, "POST", "/api/recommend", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestRecommend_ProviderDown(t *testing.T) {
	down := domain.NewProviderError("openai", "embed", errors.New("503"))
	h, _ := newTestServer(t, stubEmbedder{err: down}, 0.9)
	if rec := do(h, "POST", "/api/recommend", `{"query":"Paris"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestEvaluate_DefaultFixtures(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "POST", "/api/evaluate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Entries []struct {
			Fixture string `json:"fixture"`
			Metric  string `json:"metric"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != len(harness.MetricNames()) || resp.Entries[0].Fixture != "paris" {
		t.Errorf("unexpected entries %+v", resp.Entries)
	}

	out := do(h, "GET", "/metrics", "").Body.String()
	if !strings.Contains(out, `api_http_requests_total{route="POST /api/evaluate",status="200"} 1`) {
		t.Errorf("missing request metric:\n%s", out)
	}
}

func TestEvaluate_InvalidFixtures(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "POST", "/api/evaluate", `{"fixtures":[{"name":"a"},{"name":"a"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLandmarks(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "GET", "/api/destinations/Paris/landmarks", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Louvre Museum") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body)
	}
	if rec := do(h, "GET", "/api/destinations/Atlantis/landmarks", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLandmarks_NoGraph(t *testing.T) {
	s := &server{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := do(s.routes(metrics.New(), "*"), "GET", "/api/destinations/Paris/landmarks", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestDestinations_Pagination(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "GET", "/api/destinations?limit=1&offset=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Destinations []graph.DestinationNode `json:"destinations"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Destinations) != 1 || resp.Destinations[0].Name != "Rome" {
		t.Fatalf("unexpected destinations %+v", resp.Destinations)
	}
	for _, q := range []string{"limit=0", "limit=x", "offset=-1"} {
		if rec := do(h, "GET", "/api/destinations?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestRelatedAndStats(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	rec := do(h, "GET", "/api/destinations/Paris/related", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Nice") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body)
	}
	rec = do(h, "GET", "/api/destinations/Oslo/related", "")
	if !strings.Contains(rec.Body.String(), `"related":[]`) {
		t.Fatalf("expected empty list, got %s", rec.Body)
	}
	rec = do(h, "GET", "/api/graph/stats", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "HAS_LANDMARK") {
		t.Fatalf("unexpected stats %d %s", rec.Code, rec.Body)
	}
}

func TestGraphStats_ProviderError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &server{graph: stubGraph{err: domain.NewProviderError("neo4j", "count", errors.New("down"))}, log: log}
	rec := do(s.routes(metrics.New(), "*"), "GET", "/api/graph/stats", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLatestReport_AfterEvaluate(t *testing.T) {
	h, _ := newTestServer(t, stubEmbedder{}, 0.9)
	if rec := do(h, "GET", "/api/evaluate/latest", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", rec.Code)
	}
	if rec := do(h, "POST", "/api/evaluate", ""); rec.Code != http.StatusOK {
		t.Fatalf("evaluate: %d %s", rec.Code, rec.Body)
	}
	rec := do(h, "GET", "/api/evaluate/latest", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "negative_rejection") {
		t.Fatalf("unexpected latest report %d %s", rec.Code, rec.Body)
	}
}

func TestLatestReport_FromNATS(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	go ns.Start()
	defer ns.Shutdown()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	s := &server{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := s.subscribeReports(nc); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	published := map[string]any{"duration_seconds": 1.5, "entries": []any{}}
	if err := natsutil.Publish(context.Background(), nc, harness.ReportSubject, published); err != nil {
		t.Fatal(err)
	}

	h := s.routes(metrics.New(), "*")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(h, "GET", "/api/evaluate/latest", "")
		if rec.Code == http.StatusOK {
			if !strings.Contains(rec.Body.String(), "duration_seconds") {
				t.Fatalf("unexpected body %s", rec.Body)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("published report never arrived")
}

func TestEvaluate_RateLimited(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := harness.DefaultOptions()
	opts.Logger = log
	ev, err := harness.New(stubEmbedder{}, stubSearcher{score: 0.9}, opts)
	if err != nil {
		t.Fatal(err)
	}
	s := &server{
		evaluator:   ev,
		evalLimiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.001, Burst: 1}),
		log:         log,
	}
	h := s.routes(metrics.New(), "*")
	if rec := do(h, "POST", "/api/evaluate", ""); rec.Code != http.StatusOK {
		t.Fatalf("first run: expected 200, got %d", rec.Code)
	}
	if rec := do(h, "POST", "/api/evaluate", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second run: expected 429, got %d", rec.Code)
	}
}
