package answer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/askdoc-io/docquery/internal/domain"
)

func TestAssembleContext_OrderAndSources(t *testing.T) {
	passages := []domain.Passage{
		{ID: "p1", Text: "first passage", SourceDocument: "report.txt", Page: 1, Paragraph: 2, ChunkIndex: 3},
		{ID: "p2", Text: "second passage", SourceDocument: "report.txt", Page: 4},
	}

	ctx, sources := AssembleContext(passages)

	if !strings.HasPrefix(ctx, "first passage") || !strings.Contains(ctx, "second passage") {
		t.Errorf("context must contain passages in retrieval order, got %q", ctx)
	}
	want := []string{
		"Source: report.txt, page 1, paragraph 2, chunk 3",
		"Source: report.txt, page 4",
	}
	if !reflect.DeepEqual(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}
}

func TestAssembleContext_DedupesByDescriptor(t *testing.T) {
	passages := []domain.Passage{
		{ID: "p1", Text: "one", SourceDocument: "doc.txt", Page: 1},
		{ID: "p2", Text: "two", SourceDocument: "doc.txt", Page: 1},
		{ID: "p3", Text: "three", SourceDocument: "doc.txt", Page: 2},
	}

	_, sources := AssembleContext(passages)

	want := []string{
		"Source: doc.txt, page 1",
		"Source: doc.txt, page 2",
	}
	if !reflect.DeepEqual(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}
}

func TestAssembleContext_Empty(t *testing.T) {
	ctx, sources := AssembleContext(nil)
	if ctx != "" {
		t.Errorf("expected empty context, got %q", ctx)
	}
	if sources != nil {
		t.Errorf("expected nil sources, got %v", sources)
	}
}

func TestBuildPrompt_ContainsSlots(t *testing.T) {
	p := BuildPrompt("some context", "some question?")
	if !strings.Contains(p, "some context") {
		t.Error("prompt must contain the context")
	}
	if !strings.Contains(p, "some question?") {
		t.Error("prompt must contain the question")
	}
	if !strings.HasSuffix(p, "Answer:") {
		t.Errorf("prompt must end with the answer slot, got %q", p)
	}
}
