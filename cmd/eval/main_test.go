package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/harness"
	"github.com/WessleyAI/wayfarer/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) (domain.Vector, error) {
	return domain.Vector{0, 1}, nil
}
func (unitEmbedder) Model() string { return "unit" }
func (unitEmbedder) Close() error  { return nil }

type emptySearcher struct{}

func (emptySearcher) Search(_ context.Context, _ domain.Vector, _ int, _ string) ([]domain.Match, error) {
	return nil, nil
}

func newHarness(t *testing.T) *harness.Harness {
	t.Helper()
	opts := harness.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := harness.New(unitEmbedder{}, emptySearcher{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestEvaluate_Text(t *testing.T) {
	var out bytes.Buffer
	if _, err := evaluate(context.Background(), newHarness(t), harness.DefaultFixtures(), false, &out); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"# paris\n",
		"Context Precision: 1.0, Context Recall: 0.6666666666666666\n",
		"Negative Rejection Score: 1\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestEvaluate_JSON(t *testing.T) {
	var out bytes.Buffer
	if _, err := evaluate(context.Background(), newHarness(t), harness.DefaultFixtures(), true, &out); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var decoded struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded.Entries) != len(harness.MetricNames()) {
		t.Errorf("expected %d entries, got %d", len(harness.MetricNames()), len(decoded.Entries))
	}
}

func TestEvaluate_InvalidFixtures(t *testing.T) {
	_, err := evaluate(context.Background(), newHarness(t), []harness.Fixture{{}}, false, io.Discard)
	if !errors.Is(err, domain.ErrInvalidFixture) {
		t.Fatalf("expected ErrInvalidFixture, got %v", err)
	}
}

func TestLoadFixtures_Default(t *testing.T) {
	fixtures, err := loadFixtures("")
	if err != nil || len(fixtures) != 1 || fixtures[0].Name != "paris" {
		t.Fatalf("loadFixtures = %+v, %v", fixtures, err)
	}
}

func TestPublishReport(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Shutdown()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync(harness.ReportSubject)
	if err != nil {
		t.Fatal(err)
	}
	report, err := evaluate(context.Background(), newHarness(t), harness.DefaultFixtures(), false, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if err := natsutil.Publish(context.Background(), nc, harness.ReportSubject, report); err != nil {
		t.Fatal(err)
	}
	msg, err := sub.NextMsg(3 * time.Second)
	if err != nil {
		t.Fatalf("no report received: %v", err)
	}
	if !strings.Contains(string(msg.Data), `"metric":"negative_rejection"`) {
		t.Errorf("unexpected payload %s", msg.Data)
	}
}
