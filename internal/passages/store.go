// Package passages holds the full ordered passage set for one document
// session. The store is populated once by the indexing layer and read-only
// afterwards; the lexical rerank stage is its only consumer besides context
// assembly.
package passages

import (
	"fmt"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Store is an immutable, id-unique, ordered collection of passages.
type Store struct {
	ordered []domain.Passage
	byID    map[string]domain.Passage
}

// NewStore builds a store from an ordered passage list.
// Passage ids must be unique within the document.
func NewStore(ps []domain.Passage) (*Store, error) {
	byID := make(map[string]domain.Passage, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			return nil, fmt.Errorf("passage with empty id (chunk %d)", p.ChunkIndex)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate passage id %q", p.ID)
		}
		byID[p.ID] = p
	}
	ordered := make([]domain.Passage, len(ps))
	copy(ordered, ps)
	return &Store{ordered: ordered, byID: byID}, nil
}

// All returns the passages in document order. Callers must not mutate the slice.
func (s *Store) All() []domain.Passage {
	return s.ordered
}

// Get returns the passage with the given id.
func (s *Store) Get(id string) (domain.Passage, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len returns the number of passages.
func (s *Store) Len() int {
	return len(s.ordered)
}
