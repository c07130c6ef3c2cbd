package indexing

import (
	"context"
	"sync"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
	"github.com/askdoc-io/docquery/internal/passages"
)

// Session is one document's ready-to-query state. Reads are concurrent;
// a rebuild swaps the gateway and passage store in atomically, so readers
// always see a complete index, old or new.
type Session struct {
	document string

	mu      sync.RWMutex
	gateway index.Gateway
	store   *passages.Store
}

// Document returns the session's document identity.
func (s *Session) Document() string { return s.document }

// Search implements the retrieval gateway over the current index.
func (s *Session) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	s.mu.RLock()
	gw := s.gateway
	s.mu.RUnlock()
	return gw.Search(ctx, query, k)
}

// Len returns the current index's passage count.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway.Len()
}

// Passages returns the current passage list in document order. Callers must
// not mutate it.
func (s *Session) Passages() []domain.Passage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}

// Passage returns the current version of a passage by id.
func (s *Session) Passage(id string) (domain.Passage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(id)
}

func (s *Session) swap(gw index.Gateway, store *passages.Store) {
	s.mu.Lock()
	s.gateway = gw
	s.store = store
	s.mu.Unlock()
}
