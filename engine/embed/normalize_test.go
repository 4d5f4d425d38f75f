package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Paris", "Paris"},
		{"  Paris \t\n France ", "Paris France"},
		{"Ｐａｒｉｓ", "Paris"},
		{"café", "café"},
		{"ﬁve", "five"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalized_PassesCleanText(t *testing.T) {
	stub := &stubProvider{vec: domain.Vector{1}}
	p := Normalized(stub)
	if _, err := p.Embed(context.Background(), "  Kyoto  "); err != nil {
		t.Fatal(err)
	}
	if stub.texts[0] != "Kyoto" {
		t.Fatalf("expected normalized text, got %q", stub.texts[0])
	}
}

func TestNormalized_RejectsBlank(t *testing.T) {
	stub := &stubProvider{}
	_, err := Normalized(stub).Embed(context.Background(), " \n ")
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Fatal("provider should not be called for blank text")
	}
}
