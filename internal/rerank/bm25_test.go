package rerank

import (
	"context"
	"testing"

	"github.com/askdoc-io/docquery/internal/domain"
)

func passage(id, text string) domain.Passage {
	return domain.Passage{ID: id, Text: text}
}

func TestRank_PromotesExactTermMatches(t *testing.T) {
	candidates := []domain.Passage{
		passage("p1", "the weather today is cloudy with light rain"),
		passage("p2", "gradient descent minimizes a loss function iteratively"),
		passage("p3", "cooking pasta requires boiling water and salt"),
	}

	got, err := NewBM25().Rank(context.Background(), candidates, "gradient descent loss", 3)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].ID != "p2" {
		t.Errorf("expected p2 first, got %s", got[0].ID)
	}
}

func TestRank_TruncatesToK(t *testing.T) {
	candidates := []domain.Passage{
		passage("p1", "alpha beta"),
		passage("p2", "alpha beta gamma"),
		passage("p3", "delta epsilon"),
	}

	got, err := NewBM25().Rank(context.Background(), candidates, "alpha", 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestRank_KLargerThanCandidateSet(t *testing.T) {
	candidates := []domain.Passage{passage("p1", "only one")}

	got, err := NewBM25().Rank(context.Background(), candidates, "one", 6)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	candidates := []domain.Passage{
		passage("p1", "nothing relevant here"),
		passage("p2", "equally irrelevant text"),
		passage("p3", "still not about it"),
	}

	got, err := NewBM25().Rank(context.Background(), candidates, "zebra", 3)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	got, err := NewBM25().Rank(context.Background(), nil, "anything", 5)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRank_UnicodeTokens(t *testing.T) {
	candidates := []domain.Passage{
		passage("p1", "a capital da França é Paris"),
		passage("p2", "berlim fica na alemanha"),
	}

	got, err := NewBM25().Rank(context.Background(), candidates, "França", 2)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].ID != "p1" {
		t.Errorf("expected accent-bearing match first, got %s", got[0].ID)
	}
}
