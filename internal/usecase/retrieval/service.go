// Package retrieval selects the passages most relevant to a question. Dense
// recall casts a wide net, a distance threshold bounds it to plausibly
// relevant material, and a lexical rerank corrects cases where embedding
// similarity missed exact-term matches.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/metrics"
)

// Default stage parameters. The distance threshold is metric-specific and
// must be tuned to the embedding space in use.
const (
	DefaultInitialK          = 50
	DefaultDistanceThreshold = 1.0
	DefaultFinalK            = 6
)

// Options tunes the three retrieval stages.
type Options struct {
	InitialK          int
	DistanceThreshold float64
	FinalK            int
}

// DefaultOptions returns the standard stage parameters.
func DefaultOptions() Options {
	return Options{
		InitialK:          DefaultInitialK,
		DistanceThreshold: DefaultDistanceThreshold,
		FinalK:            DefaultFinalK,
	}
}

func (o Options) withDefaults() Options {
	if o.InitialK <= 0 {
		o.InitialK = DefaultInitialK
	}
	if o.DistanceThreshold <= 0 {
		o.DistanceThreshold = DefaultDistanceThreshold
	}
	if o.FinalK <= 0 {
		o.FinalK = DefaultFinalK
	}
	return o
}

// Service runs the three-stage retrieval pipeline over one document index.
// It works on a single question at a time; the decomposer above it owns the
// question-level lifecycle events.
type Service struct {
	gateway Gateway
	rerank  Reranker
	opts    Options
	logger  *zap.Logger
}

// New creates a retrieval service.
func New(gateway Gateway, rerank Reranker, opts Options, logger *zap.Logger) *Service {
	return &Service{
		gateway: gateway,
		rerank:  rerank,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Retrieve runs wide vector recall, threshold filtering, and lexical rerank
// for a single question. An empty index yields an empty result, not an error.
// When the threshold filter eliminates every candidate, the raw vector
// results are returned truncated to final_k in distance order.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.Passage, error) {
	start := time.Now()

	candidates, err := s.gateway.Search(ctx, question, s.opts.InitialK)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if len(candidates) == 0 {
		metrics.RetrievalTotal.WithLabelValues("success").Inc()
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
		return nil, nil
	}

	filtered := make([]domain.Passage, 0, len(candidates))
	for _, c := range candidates {
		if c.Distance < s.opts.DistanceThreshold {
			filtered = append(filtered, c.Passage)
		}
	}

	var result []domain.Passage
	if len(filtered) == 0 {
		// Untuned thresholds can eliminate everything. Availability wins:
		// hand back the raw vector ranking instead of failing.
		s.logger.Debug("threshold filter emptied candidate set, falling back to vector order",
			zap.Int("candidates", len(candidates)),
			zap.Float64("threshold", s.opts.DistanceThreshold),
		)
		n := min(s.opts.FinalK, len(candidates))
		result = make([]domain.Passage, n)
		for i := range result {
			result[i] = candidates[i].Passage
		}
	} else {
		k := min(s.opts.FinalK, len(filtered))
		result, err = s.rerank.Rank(ctx, filtered, question, k)
		if err != nil {
			metrics.RetrievalTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("lexical rerank: %w", err)
		}
	}

	metrics.RetrievalTotal.WithLabelValues("success").Inc()
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("retrieval pipeline run",
		zap.String("question", question),
		zap.Int("count", len(result)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}
