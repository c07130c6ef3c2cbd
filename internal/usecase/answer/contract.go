package answer

import (
	"context"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Retriever produces the passages relevant to a question. Compound questions
// are already handled behind this contract.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.Passage, error)
}

// Generator is the external generation capability. Streaming or complete is
// chosen per call, never probed at runtime.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Stream(ctx context.Context, system, prompt string, emit func(chunk string) error) (string, error)
}

// Cache stores finished answers keyed by the exact question string.
type Cache interface {
	Get(question string) (CachedAnswer, bool)
	Put(question string, ans CachedAnswer)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}
