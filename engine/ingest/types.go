package ingest

import (
	"fmt"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/google/uuid"
)

// EmbeddedDestination is a validated destination with its embedding.
type EmbeddedDestination struct {
	domain.Destination
	ID     string
	Vector domain.Vector
}

// Record returns the vector record stored for the destination.
func (e EmbeddedDestination) Record() semantic.Record {
	return semantic.Record{ID: e.ID, Vector: e.Vector, Metadata: e.Metadata()}
}

// PointID derives a stable point id from the destination name, so re-ingesting
// a record overwrites its vector instead of duplicating it.
func PointID(d domain.Destination) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("destination:%s", d.Name))).String()
}
