package ingest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/wayfarer/engine/domain"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func publish(t *testing.T, nc *nats.Conn, d domain.Destination) {
	t.Helper()
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if err := nc.Publish(CorpusSubject, data); err != nil {
		t.Fatal(err)
	}
}

func waitDLQ(t *testing.T, sub *nats.Subscription) DLQMessage {
	t.Helper()
	msg, err := sub.NextMsg(3 * time.Second)
	if err != nil {
		t.Fatalf("no DLQ message: %v", err)
	}
	var dlq DLQMessage
	if err := json.Unmarshal(msg.Data, &dlq); err != nil {
		t.Fatal(err)
	}
	return dlq
}

func TestStartConsumer_Success(t *testing.T) {
	nc := startTestNATS(t)
	idx := &fakeIndex{}
	if _, err := StartConsumer(nc, Deps{Embedder: &fakeEmbedder{}, Index: idx, Namespace: "travel"}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	publish(t, nc, paris)

	deadline := time.Now().Add(3 * time.Second)
	for len(idx.records()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("destination not indexed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := idx.records()[0].ID; got != PointID(paris) {
		t.Errorf("indexed id %s", got)
	}
}

func TestStartConsumer_InvalidGoesStraightToDLQ(t *testing.T) {
	nc := startTestNATS(t)
	dlqSub, err := nc.SubscribeSync(DLQSubject)
	if err != nil {
		t.Fatal(err)
	}
	e := &fakeEmbedder{}
	if _, err := StartConsumer(nc, Deps{Embedder: e, Index: &fakeIndex{}}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	publish(t, nc, domain.Destination{Name: "Rome"})

	dlq := waitDLQ(t, dlqSub)
	if dlq.Retries != 1 || dlq.Destination.Name != "Rome" {
		t.Errorf("unexpected DLQ message %+v", dlq)
	}
}

func TestStartConsumer_RetriesThenDLQ(t *testing.T) {
	nc := startTestNATS(t)
	dlqSub, err := nc.SubscribeSync(DLQSubject)
	if err != nil {
		t.Fatal(err)
	}
	e := &fakeEmbedder{fail: map[string]error{"Paris": domain.NewProviderError("openai", "embed", errors.New("503"))}}
	if _, err := StartConsumer(nc, Deps{Embedder: e, Index: &fakeIndex{}}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	publish(t, nc, paris)

	dlq := waitDLQ(t, dlqSub)
	if dlq.Retries != MaxRetries {
		t.Errorf("expected %d retries, got %d", MaxRetries, dlq.Retries)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls != MaxRetries {
		t.Errorf("expected %d embed attempts, got %d", MaxRetries, e.calls)
	}
}

func TestStartConsumer_DropsMalformed(t *testing.T) {
	nc := startTestNATS(t)
	idx := &fakeIndex{}
	if _, err := StartConsumer(nc, Deps{Embedder: &fakeEmbedder{}, Index: idx}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Publish(CorpusSubject, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	publish(t, nc, paris)

	deadline := time.Now().Add(3 * time.Second)
	for len(idx.records()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("valid record after malformed one was not indexed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
