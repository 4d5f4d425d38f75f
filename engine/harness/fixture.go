package harness

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// Fixture is one evaluation scenario. Every field except Name is optional;
// metrics whose inputs are missing report their default or are skipped.
type Fixture struct {
	Name                string            `json:"name"`
	Query               string            `json:"query"`
	TrueContext         domain.ContextSet `json:"true_context"`
	RetrievedContexts   domain.ContextSet `json:"retrieved_contexts"`
	EntityTruth         string            `json:"entity_truth"`
	EntityRetrieved     domain.ContextSet `json:"entity_retrieved"`
	NoiseQuery          string            `json:"noise_query"`
	GeneratedAnswer     string            `json:"generated_answer"`
	FaithfulnessContext string            `json:"faithfulness_context"`
	IntegrationAnswer   string            `json:"integration_answer"`
	IntegrationContexts domain.ContextSet `json:"integration_contexts"`
	CounterfactualQuery string            `json:"counterfactual_query"`
	InappropriateQuery  string            `json:"inappropriate_query"`
}

//go:embed fixtures/default.json
var defaultFixtures []byte

// DefaultFixtures returns the built-in Paris battery.
func DefaultFixtures() []Fixture {
	fixtures, err := DecodeFixtures(strings.NewReader(string(defaultFixtures)))
	if err != nil {
		panic(fmt.Sprintf("harness: embedded fixtures: %v", err))
	}
	return fixtures
}

// LoadFixtures reads a JSON array of fixtures from path.
func LoadFixtures(path string) ([]Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("harness: load fixtures: %w", err)
	}
	defer f.Close()
	return DecodeFixtures(f)
}

// DecodeFixtures decodes and validates a JSON array of fixtures.
func DecodeFixtures(r io.Reader) ([]Fixture, error) {
	var fixtures []Fixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("harness: decode fixtures: %w", domain.NewValidationError("fixtures", err.Error(), domain.ErrInvalidFixture))
	}
	if err := ValidateFixtures(fixtures); err != nil {
		return nil, err
	}
	return fixtures, nil
}

// ValidateFixtures requires a non-empty, unique name per fixture.
func ValidateFixtures(fixtures []Fixture) error {
	seen := make(map[string]bool, len(fixtures))
	for i, f := range fixtures {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return domain.NewValidationError(fmt.Sprintf("fixtures[%d].name", i), f.Name, domain.ErrInvalidFixture)
		}
		if seen[name] {
			return domain.NewValidationError(fmt.Sprintf("fixtures[%d].name", i), f.Name+" (duplicate)", domain.ErrInvalidFixture)
		}
		seen[name] = true
	}
	return nil
}

// LandmarkSource supplies ground-truth context for a destination.
type LandmarkSource interface {
	Landmarks(ctx context.Context, destination string) (domain.ContextSet, error)
}
