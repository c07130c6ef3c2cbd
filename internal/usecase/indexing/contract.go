package indexing

import (
	"context"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
)

// Loader reads a document into ordered page segments.
type Loader interface {
	Load(ctx context.Context, document string) ([]domain.Segment, error)
}

// Splitter chunks loaded segments into passages.
type Splitter interface {
	Split(document string, segments []domain.Segment) []domain.Passage
}

// Provider persists and reopens per-document indexes.
type Provider interface {
	Exists(ctx context.Context, document string) (bool, error)
	Load(ctx context.Context, document string) (index.Gateway, []domain.Passage, error)
	Build(ctx context.Context, document string, passages []domain.Passage) (index.Gateway, error)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// SplitterFunc adapts a function to the Splitter contract.
type SplitterFunc func(document string, segments []domain.Segment) []domain.Passage

// Split implements Splitter.
func (f SplitterFunc) Split(document string, segments []domain.Segment) []domain.Passage {
	return f(document, segments)
}
