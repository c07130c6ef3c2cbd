package retrieval

import (
	"context"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Gateway performs dense nearest-neighbor search over a document index.
type Gateway interface {
	Search(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

// Reranker orders a candidate set by lexical relevance to the query.
type Reranker interface {
	Rank(ctx context.Context, candidates []domain.Passage, query string, k int) ([]domain.Passage, error)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// PassageRetriever is the single-question retrieval contract consumed by the
// decomposer and the coordinator.
type PassageRetriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.Passage, error)
}
