// Package index defines the nearest-neighbor search capability consumed by
// the retrieval engine, and hosts its implementations.
package index

import (
	"context"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Gateway searches one document's indexed passages by embedding similarity.
// Results are sorted ascending by distance. The distance scale is specific to
// the implementation and its metric; callers must treat thresholds over it as
// tunables, not universal constants.
//
// A Gateway is read-only once built and safe for concurrent use.
type Gateway interface {
	Search(ctx context.Context, query string, k int) ([]domain.Candidate, error)
	Len() int
}
