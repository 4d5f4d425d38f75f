package ingest

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// CorpusSubject is the NATS subject for incoming destination records.
	CorpusSubject = "corpus.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "corpus.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// RetryHeader carries the number of failed attempts so far.
	RetryHeader = "X-Retry-Count"
)

// DLQMessage is published to the DLQ on repeated or permanent failure.
type DLQMessage struct {
	Destination domain.Destination `json:"destination"`
	Error       string             `json:"error"`
	Retries     int                `json:"retries"`
}

// StartConsumer subscribes to CorpusSubject and runs each destination through
// the pipeline. Failures are re-published with an incremented retry header;
// after MaxRetries, or immediately for validation errors, the record goes to
// DLQSubject.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.logger()

	return nc.Subscribe(CorpusSubject, func(msg *nats.Msg) {
		var d domain.Destination
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}
		ctx := natsutil.Extract(msg)

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(RetryHeader); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		id, err := pipeline(ctx, d).Unwrap()
		if err == nil {
			log.Info("ingest: success", "destination", d.Name, "id", id)
			return
		}

		retries++
		log.Error("ingest: pipeline failed", "error", err, "destination", d.Name, "retry", retries)

		var ve *domain.ValidationError
		if retries >= MaxRetries || errors.As(err, &ve) {
			dlq := DLQMessage{Destination: d, Error: err.Error(), Retries: retries}
			if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
				log.Error("ingest: DLQ publish failed", "error", err)
			}
			return
		}

		retryMsg := nats.NewMsg(CorpusSubject)
		retryMsg.Data = msg.Data
		retryMsg.Header.Set(RetryHeader, strconv.Itoa(retries))
		natsutil.Inject(ctx, retryMsg)
		if err := nc.PublishMsg(retryMsg); err != nil {
			log.Error("ingest: retry publish failed", "error", err)
		}
	})
}
