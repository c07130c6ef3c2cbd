package redisearch

import (
	"context"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
)

// Provider binds a shared Store to the embedder used for this deployment.
type Provider struct {
	store *Store
	embed domain.Embedder
}

// NewProvider creates a provider over an existing store.
func NewProvider(store *Store, embed domain.Embedder) *Provider {
	return &Provider{store: store, embed: embed}
}

// Exists reports whether a persisted index exists for the document.
func (p *Provider) Exists(ctx context.Context, document string) (bool, error) {
	return p.store.Exists(ctx, document)
}

// Load reopens a persisted document index.
func (p *Provider) Load(ctx context.Context, document string) (index.Gateway, []domain.Passage, error) {
	return p.store.Load(ctx, document, p.embed)
}

// Build creates and persists a fresh document index.
func (p *Provider) Build(ctx context.Context, document string, ps []domain.Passage) (index.Gateway, error) {
	return p.store.Build(ctx, document, p.embed, ps)
}
