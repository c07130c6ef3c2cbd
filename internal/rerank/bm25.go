// Package rerank scores a small candidate set against a query using keyword
// statistics. It implements Okapi BM25 computed over the candidate set
// itself, which is enough to promote exact-term matches that dense
// similarity ranked too low.
package rerank

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Standard Okapi BM25 parameters.
const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// BM25 ranks candidates by term-frequency relevance to a query.
type BM25 struct {
	k1 float64
	b  float64
}

// NewBM25 creates a reranker with standard parameters.
func NewBM25() *BM25 {
	return &BM25{k1: defaultK1, b: defaultB}
}

// Rank scores the candidates against the query and returns the top k by
// descending BM25 score. Ties keep the candidates' input order. k larger
// than the candidate set returns all candidates.
func (r *BM25) Rank(_ context.Context, candidates []domain.Passage, query string, k int) ([]domain.Passage, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	docs := make([][]string, len(candidates))
	totalLen := 0
	for i, c := range candidates {
		docs[i] = tokenize(c.Text)
		totalLen += len(docs[i])
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		avgLen = 1
	}

	// Document frequency per query term, over the candidate set only.
	queryTerms := tokenize(query)
	df := make(map[string]int, len(queryTerms))
	for _, doc := range docs {
		seen := map[string]struct{}{}
		for _, tok := range doc {
			seen[tok] = struct{}{}
		}
		for _, term := range queryTerms {
			if _, ok := seen[term]; ok {
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, f := range df {
		idf[term] = math.Log(1 + (n-float64(f)+0.5)/(float64(f)+0.5))
	}

	type scored struct {
		passage domain.Passage
		score   float64
	}
	results := make([]scored, len(candidates))
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		var score float64
		for _, term := range queryTerms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := r.k1 * (1 - r.b + r.b*float64(len(doc))/avgLen)
			score += idf[term] * (f * (r.k1 + 1)) / (f + norm)
		}
		results[i] = scored{passage: candidates[i], score: score}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]domain.Passage, k)
	for i := range out {
		out[i] = results[i].passage
	}
	return out, nil
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	out := make([]string, len(raw))
	for i, tok := range raw {
		out[i] = strings.ToLower(tok)
	}
	return out
}
