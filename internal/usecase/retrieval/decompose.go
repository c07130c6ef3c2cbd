package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askdoc-io/docquery/internal/domain"
)

// SubqueryPolicy decides what a failed sub-question retrieval does to the
// whole decomposed query.
type SubqueryPolicy string

const (
	// SubquerySkip drops the failed sub-question's results and keeps going.
	SubquerySkip SubqueryPolicy = "skip"
	// SubqueryFail aborts the whole query on the first sub-question failure.
	SubqueryFail SubqueryPolicy = "fail"
)

// Conjunction tokens checked in order. Includes Portuguese equivalents and
// comma-as-conjunction.
var conjunctions = []string{" and ", " or ", " e ", " ou ", ", "}

// Decomposer splits compound questions and merges their independently
// retrieved passages. It is the question-level entry point, so the
// retrieval lifecycle events are published here: one started/completed pair
// per question, with the completed count covering the merged result.
type Decomposer struct {
	retriever PassageRetriever
	policy    SubqueryPolicy
	events    Publisher
	logger    *zap.Logger
}

// NewDecomposer creates a decomposer over a single-question retriever.
func NewDecomposer(retriever PassageRetriever, policy SubqueryPolicy, events Publisher, logger *zap.Logger) *Decomposer {
	if policy != SubqueryFail {
		policy = SubquerySkip
	}
	return &Decomposer{retriever: retriever, policy: policy, events: events, logger: logger}
}

// Split breaks a compound question into sub-questions. Detection rules in
// order, first match wins: multiple question marks split on '?', then a fixed
// conjunction token set, otherwise the question is returned whole.
func (d *Decomposer) Split(question string) []string {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}

	if strings.Count(question, "?") > 1 {
		var subs []string
		for _, frag := range strings.Split(question, "?") {
			frag = strings.TrimSpace(frag)
			if frag != "" {
				subs = append(subs, frag+"?")
			}
		}
		if len(subs) > 1 {
			return subs
		}
		return []string{question}
	}

	lower := strings.ToLower(question)
	for _, token := range conjunctions {
		if !strings.Contains(lower, token) {
			continue
		}
		var subs []string
		for _, frag := range splitToken(question, token) {
			frag = strings.TrimSpace(frag)
			if frag != "" {
				subs = append(subs, frag)
			}
		}
		if len(subs) > 1 {
			return subs
		}
	}

	return []string{question}
}

// Retrieve decomposes the question, retrieves each sub-question concurrently,
// and merges results in sub-question order with order-preserving dedupe by
// passage id.
func (d *Decomposer) Retrieve(ctx context.Context, question string) ([]domain.Passage, error) {
	start := time.Now()
	d.events.Publish(domain.EventRetrievalStarted, map[string]any{
		"question": question,
	})

	merged, err := d.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	d.events.Publish(domain.EventRetrievalCompleted, map[string]any{
		"question":   question,
		"count":      len(merged),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return merged, nil
}

func (d *Decomposer) retrieve(ctx context.Context, question string) ([]domain.Passage, error) {
	subs := d.Split(question)
	switch len(subs) {
	case 0:
		return nil, nil
	case 1:
		return d.retriever.Retrieve(ctx, subs[0])
	}

	results := make([][]domain.Passage, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			passages, err := d.retriever.Retrieve(gctx, sub)
			if err != nil {
				if d.policy == SubquerySkip {
					d.logger.Warn("sub-question retrieval failed, skipping",
						zap.String("sub_question", sub),
						zap.Error(err),
					)
					return nil
				}
				return fmt.Errorf("retrieve sub-question %q: %w", sub, err)
			}
			results[i] = passages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Retrieval order carries relevance signal, so keep first occurrence
	// rather than collapsing into a set.
	seen := make(map[string]struct{})
	var merged []domain.Passage
	for _, passages := range results {
		for _, p := range passages {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged, nil
}

// splitToken splits s on every case-insensitive occurrence of token.
func splitToken(s, token string) []string {
	lower := strings.ToLower(s)
	var parts []string
	for {
		i := strings.Index(lower, token)
		if i < 0 {
			break
		}
		parts = append(parts, s[:i])
		s = s[i+len(token):]
		lower = lower[i+len(token):]
	}
	return append(parts, s)
}
