package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
	"github.com/askdoc-io/docquery/internal/rerank"
	"github.com/askdoc-io/docquery/internal/usecase/indexing"
)

type fakeGateway struct {
	candidates []domain.Candidate
}

func (f *fakeGateway) Search(_ context.Context, _ string, _ int) ([]domain.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeGateway) Len() int { return len(f.candidates) }

type fakeProvider struct {
	buildCalls int
}

func (f *fakeProvider) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

func (f *fakeProvider) Load(_ context.Context, _ string) (index.Gateway, []domain.Passage, error) {
	return nil, nil, domain.ErrIndexCorrupt
}

func (f *fakeProvider) Build(_ context.Context, _ string, passages []domain.Passage) (index.Gateway, error) {
	f.buildCalls++
	candidates := make([]domain.Candidate, len(passages))
	for i, p := range passages {
		candidates[i] = domain.Candidate{Passage: p, Distance: 0.1}
	}
	return &fakeGateway{candidates: candidates}, nil
}

type fakeLoader struct {
	documents map[string][]domain.Segment
}

func (f *fakeLoader) Load(_ context.Context, document string) ([]domain.Segment, error) {
	segments, ok := f.documents[document]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return segments, nil
}

type fakeLister struct {
	names []string
	err   error
}

func (f *fakeLister) List() ([]string, error) { return f.names, f.err }

type fakeGenerator struct {
	calls int
	text  string
}

func (f *fakeGenerator) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.text, nil
}

func (f *fakeGenerator) Stream(_ context.Context, _, _ string, emit func(chunk string) error) (string, error) {
	f.calls++
	if err := emit(f.text); err != nil {
		return "", err
	}
	return f.text, nil
}

type nopBus struct{}

func (nopBus) Publish(string, map[string]any) {}

func splitter() indexing.Splitter {
	return indexing.SplitterFunc(func(doc string, segments []domain.Segment) []domain.Passage {
		out := make([]domain.Passage, len(segments))
		for i, seg := range segments {
			out[i] = domain.Passage{
				ID:             seg.Text,
				Text:           seg.Text,
				SourceDocument: doc,
				Page:           seg.Page,
				ChunkIndex:     i + 1,
			}
		}
		return out
	})
}

func newTestEngine(gen *fakeGenerator, lister Lister) (*Engine, *fakeProvider) {
	provider := &fakeProvider{}
	loader := &fakeLoader{documents: map[string][]domain.Segment{
		"doc.txt":   {{Text: "the capital of France is Paris", Page: 1}},
		"other.txt": {{Text: "water boils at one hundred degrees", Page: 1}},
	}}
	manager := indexing.NewManager(provider, loader, splitter(), nopBus{}, 0, zap.NewNop())
	eng := New(manager, gen, rerank.NewBM25(), lister, nopBus{}, Options{}, zap.NewNop())
	return eng, provider
}

func TestAsk_BuildsIndexOnFirstUse(t *testing.T) {
	gen := &fakeGenerator{text: "Paris."}
	eng, provider := newTestEngine(gen, &fakeLister{})

	res, err := eng.Ask(context.Background(), "doc.txt", "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Text != "Paris." {
		t.Errorf("unexpected answer %q", res.Text)
	}
	if provider.buildCalls != 1 {
		t.Errorf("expected 1 index build, got %d", provider.buildCalls)
	}
}

func TestAsk_SecondAskHitsAnswerCache(t *testing.T) {
	gen := &fakeGenerator{text: "Paris."}
	eng, _ := newTestEngine(gen, &fakeLister{})

	if _, err := eng.Ask(context.Background(), "doc.txt", "What is the capital of France?"); err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	res, err := eng.Ask(context.Background(), "doc.txt", "What is the capital of France?")
	if err != nil {
		t.Fatalf("second Ask: %v", err)
	}
	if !res.Cached {
		t.Error("expected cached result")
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation, got %d", gen.calls)
	}
}

func TestAsk_DocumentsAreIsolated(t *testing.T) {
	gen := &fakeGenerator{text: "An answer."}
	eng, _ := newTestEngine(gen, &fakeLister{})

	if _, err := eng.Ask(context.Background(), "doc.txt", "Same question?"); err != nil {
		t.Fatalf("Ask doc.txt: %v", err)
	}
	res, err := eng.Ask(context.Background(), "other.txt", "Same question?")
	if err != nil {
		t.Fatalf("Ask other.txt: %v", err)
	}
	if res.Cached {
		t.Error("answer caches must not leak across documents")
	}
	if gen.calls != 2 {
		t.Errorf("expected 2 generations, got %d", gen.calls)
	}
}

func TestEnsureIndex_ForceResetsAnswerCache(t *testing.T) {
	gen := &fakeGenerator{text: "Paris."}
	eng, provider := newTestEngine(gen, &fakeLister{})

	if _, err := eng.Ask(context.Background(), "doc.txt", "What is the capital of France?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if err := eng.EnsureIndex(context.Background(), "doc.txt", true); err != nil {
		t.Fatalf("forced EnsureIndex: %v", err)
	}
	if provider.buildCalls != 2 {
		t.Errorf("expected rebuild on force, got %d builds", provider.buildCalls)
	}

	res, err := eng.Ask(context.Background(), "doc.txt", "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask after rebuild: %v", err)
	}
	if res.Cached {
		t.Error("forced rebuild must discard cached answers")
	}
	if gen.calls != 2 {
		t.Errorf("expected fresh generation after rebuild, got %d calls", gen.calls)
	}
}

func TestAskStream_ForwardsChunks(t *testing.T) {
	gen := &fakeGenerator{text: "Paris."}
	eng, _ := newTestEngine(gen, &fakeLister{})

	var got string
	res, err := eng.AskStream(context.Background(), "doc.txt", "What is the capital of France?", func(chunk string) error {
		got += chunk
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream: %v", err)
	}
	if got != "Paris." || res.Text != "Paris." {
		t.Errorf("unexpected stream output %q / result %q", got, res.Text)
	}
}

func TestAsk_MissingDocument(t *testing.T) {
	eng, _ := newTestEngine(&fakeGenerator{}, &fakeLister{})

	_, err := eng.Ask(context.Background(), "ghost.txt", "Anything?")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocuments_ReportsIndexState(t *testing.T) {
	eng, _ := newTestEngine(&fakeGenerator{text: "ok"}, &fakeLister{names: []string{"doc.txt", "other.txt"}})

	if err := eng.EnsureIndex(context.Background(), "doc.txt", false); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	docs, err := eng.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if !docs[0].Indexed || docs[0].Name != "doc.txt" {
		t.Errorf("expected doc.txt indexed, got %+v", docs[0])
	}
	if docs[1].Indexed {
		t.Errorf("other.txt must not be indexed yet, got %+v", docs[1])
	}
}

func TestDocuments_ListerError(t *testing.T) {
	eng, _ := newTestEngine(&fakeGenerator{}, &fakeLister{err: errors.New("disk gone")})

	if _, err := eng.Documents(); err == nil {
		t.Fatal("expected lister error to propagate")
	}
}
