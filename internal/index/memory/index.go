// Package memory is a brute-force in-memory vector index. Distances are
// Euclidean (L2): lower is more similar. Suitable for single-document corpora
// where exact search over a few thousand passages beats maintaining an ANN
// structure.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Index holds passages and their embedding vectors. Read-only after Build or
// Load; safe for concurrent Search calls.
type Index struct {
	embed    domain.Embedder
	dim      int
	vectors  [][]float32
	passages []domain.Passage
}

// Build embeds all passages and assembles an index over them.
func Build(ctx context.Context, embed domain.Embedder, ps []domain.Passage) (*Index, error) {
	texts := make([]string, len(ps))
	for i, p := range ps {
		texts[i] = p.Text
	}

	var (
		batch domain.BatchEmbeddingResult
		err   error
	)
	if be, ok := embed.(domain.BatchEmbedder); ok && len(texts) > 0 {
		batch, err = be.BatchEmbed(ctx, texts)
	} else {
		batch, err = domain.BatchFallback(ctx, embed, texts)
	}
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(batch.Embeddings) != len(ps) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(batch.Embeddings), len(ps))
	}

	dim := 0
	for i, v := range batch.Embeddings {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	stored := make([]domain.Passage, len(ps))
	copy(stored, ps)

	return &Index{
		embed:    embed,
		dim:      dim,
		vectors:  batch.Embeddings,
		passages: stored,
	}, nil
}

// Search embeds the query and returns the k nearest passages by L2 distance,
// ascending. Fewer than k results are returned when the corpus is smaller.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 || len(ix.passages) == 0 {
		return nil, nil
	}

	res, err := ix.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qv := res.Embedding

	candidates := make([]domain.Candidate, len(ix.passages))
	for i := range ix.vectors {
		candidates[i] = domain.Candidate{
			Passage:  ix.passages[i],
			Distance: l2Distance(ix.vectors[i], qv),
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Distance < candidates[b].Distance
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Len returns the number of indexed passages.
func (ix *Index) Len() int {
	return len(ix.passages)
}

// Passages returns the indexed passages in document order.
func (ix *Index) Passages() []domain.Passage {
	return ix.passages
}

func l2Distance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Mismatched tails count fully: a missing component is maximally distant
	// from any non-zero value.
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return math.Sqrt(sum)
}
