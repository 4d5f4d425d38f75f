package harness

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

func TestDefaultFixtures(t *testing.T) {
	fixtures := DefaultFixtures()
	if len(fixtures) != 1 {
		t.Fatalf("expected 1 fixture, got %d", len(fixtures))
	}
	f := fixtures[0]
	if f.Name != "paris" || f.Query != "Paris" || f.NoiseQuery != "P@r1s" || f.CounterfactualQuery != "London" {
		t.Errorf("unexpected default fixture %+v", f)
	}
	if len(f.TrueContext) != 3 || len(f.RetrievedContexts) != 2 {
		t.Errorf("unexpected contexts %v / %v", f.TrueContext, f.RetrievedContexts)
	}
}

func TestDecodeFixtures_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"malformed", `[{"name":`},
		{"missing name", `[{"query":"Paris"}]`},
		{"blank name", `[{"name":"  "}]`},
		{"duplicate", `[{"name":"a"},{"name":"a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFixtures(strings.NewReader(tt.in))
			if !errors.Is(err, domain.ErrInvalidFixture) {
				t.Fatalf("expected ErrInvalidFixture, got %v", err)
			}
		})
	}
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	data := `[{"name":"rome","query":"Rome","true_context":["Colosseum"],"retrieved_contexts":["Colosseum"]}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	fixtures, err := LoadFixtures(path)
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	if len(fixtures) != 1 || fixtures[0].TrueContext[0] != "Colosseum" {
		t.Errorf("unexpected fixtures %+v", fixtures)
	}
	if _, err := LoadFixtures(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
