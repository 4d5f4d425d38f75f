package embed

import (
	"context"
	"sync"

	"github.com/WessleyAI/wayfarer/engine/domain"
)

// stubProvider returns a fixed vector, or the queued errors first.
type stubProvider struct {
	mu     sync.Mutex
	vec    domain.Vector
	errs   []error
	calls  int
	texts  []string
	closed bool
}

func (s *stubProvider) Embed(_ context.Context, text string) (domain.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.vec, nil
}

func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
