package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/WessleyAI/wayfarer/engine/decision"
	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/graph"
	"github.com/WessleyAI/wayfarer/engine/harness"
	"github.com/WessleyAI/wayfarer/pkg/metrics"
	"github.com/WessleyAI/wayfarer/pkg/mid"
	"github.com/WessleyAI/wayfarer/pkg/natsutil"
	"github.com/WessleyAI/wayfarer/pkg/repo"
	"github.com/WessleyAI/wayfarer/pkg/resilience"
	"github.com/nats-io/nats.go"
)

type recommender interface {
	Recommend(ctx context.Context, query string) (decision.Decision, error)
}

type evaluator interface {
	Run(ctx context.Context, fixtures []harness.Fixture) (*harness.Report, error)
}

type knowledgeGraph interface {
	harness.LandmarkSource
	Destinations(ctx context.Context, opts repo.ListOpts) ([]graph.DestinationNode, error)
	Related(ctx context.Context, destination string) ([]string, error)
	Stats(ctx context.Context) (graph.Stats, error)
}

// latestReport holds the most recent evaluation report, either run here or
// received over NATS.
type latestReport struct {
	mu   sync.RWMutex
	data json.RawMessage
}

func (l *latestReport) store(data json.RawMessage) {
	l.mu.Lock()
	l.data = data
	l.mu.Unlock()
}

func (l *latestReport) load() json.RawMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data
}

type server struct {
	recommender recommender
	evaluator   evaluator
	graph       knowledgeGraph // nil without a graph
	evalLimiter *resilience.Limiter
	latest      latestReport
	log         *slog.Logger
}

func (s *server) routes(reg *metrics.Registry, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/recommend", s.handleRecommend)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /api/evaluate/latest", s.handleLatestReport)
	mux.HandleFunc("GET /api/destinations", s.requireGraph(s.handleDestinations))
	mux.HandleFunc("GET /api/destinations/{name}/landmarks", s.requireGraph(s.handleLandmarks))
	mux.HandleFunc("GET /api/destinations/{name}/related", s.requireGraph(s.handleRelated))
	mux.HandleFunc("GET /api/graph/stats", s.requireGraph(s.handleGraphStats))
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.OTel("wayfarer-api"),
		mid.RequestID(),
		mid.Logger(s.log),
		mid.CORS(corsOrigin),
		mid.Metrics(reg, "api"),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RecommendRequest is the JSON body for POST /api/recommend.
type RecommendRequest struct {
	Query string `json:"query"`
}

// RecommendResponse is the JSON response for POST /api/recommend.
type RecommendResponse struct {
	decision.Decision
	Text string `json:"text"`
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := s.recommender.Recommend(r.Context(), req.Query)
	if err != nil {
		s.fail(w, r, "recommend failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendResponse{Decision: d, Text: d.String()})
}

// EvaluateRequest is the JSON body for POST /api/evaluate. An empty body or
// an empty fixture list runs the default battery.
type EvaluateRequest struct {
	Fixtures []harness.Fixture `json:"fixtures,omitempty"`
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fixtures := req.Fixtures
	if len(fixtures) == 0 {
		fixtures = harness.DefaultFixtures()
	}
	var report *harness.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = s.evaluator.Run(ctx, fixtures)
		return err
	}
	var err error
	if s.evalLimiter != nil {
		err = s.evalLimiter.Call(r.Context(), run)
	} else {
		err = run(r.Context())
	}
	if errors.Is(err, resilience.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "evaluation rate limit exceeded")
		return
	}
	if err != nil {
		s.fail(w, r, "evaluate failed", err)
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.fail(w, r, "encode report", err)
		return
	}
	s.latest.store(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *server) handleLatestReport(w http.ResponseWriter, _ *http.Request) {
	data := s.latest.load()
	if data == nil {
		writeError(w, http.StatusNotFound, "no evaluation report yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// subscribeReports keeps the latest report published by other evaluators.
func (s *server) subscribeReports(nc *nats.Conn) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, harness.ReportSubject, s.log, func(_ context.Context, report json.RawMessage) {
		s.latest.store(report)
	})
}

func (s *server) requireGraph(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.graph == nil {
			writeError(w, http.StatusNotImplemented, "knowledge graph not configured")
			return
		}
		h(w, r)
	}
}

func (s *server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := repo.ListOpts{Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}
	items, err := s.graph.Destinations(r.Context(), opts)
	if err != nil {
		s.fail(w, r, "list destinations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": items})
}

func (s *server) handleLandmarks(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	landmarks, err := s.graph.Landmarks(r.Context(), name)
	if err != nil {
		s.fail(w, r, "landmarks failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destination": name, "landmarks": landmarks})
}

func (s *server) handleRelated(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	related, err := s.graph.Related(r.Context(), name)
	if err != nil {
		s.fail(w, r, "related failed", err)
		return
	}
	if related == nil {
		related = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"destination": name, "related": related})
}

func (s *server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.graph.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "graph stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// fail maps domain errors onto status codes.
func (s *server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := http.StatusInternalServerError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, repo.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrProviderUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.log.Error(msg, "err", err, "status", status, "request_id", mid.RequestIDFrom(r.Context()))
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
