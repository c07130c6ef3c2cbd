package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
)

// Provider persists in-memory indexes under a base directory, one
// subdirectory per document.
type Provider struct {
	dir   string
	embed domain.Embedder
}

// NewProvider creates a provider rooted at dir.
func NewProvider(dir string, embed domain.Embedder) *Provider {
	return &Provider{dir: dir, embed: embed}
}

// Exists reports whether a persisted index exists for the document.
func (p *Provider) Exists(_ context.Context, document string) (bool, error) {
	return Exists(p.indexDir(document)), nil
}

// Load reads the persisted index and returns its gateway plus the full
// passage list.
func (p *Provider) Load(_ context.Context, document string) (index.Gateway, []domain.Passage, error) {
	ix, err := Load(p.indexDir(document), p.embed)
	if err != nil {
		return nil, nil, err
	}
	return ix, ix.Passages(), nil
}

// Build embeds the passages, assembles a fresh index, and persists it.
func (p *Provider) Build(ctx context.Context, document string, ps []domain.Passage) (index.Gateway, error) {
	ix, err := Build(ctx, p.embed, ps)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(p.indexDir(document)); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return ix, nil
}

func (p *Provider) indexDir(document string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, document)
	return filepath.Join(p.dir, "index_"+name)
}
