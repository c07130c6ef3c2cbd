package segment

import (
	"strings"
	"testing"

	"github.com/askdoc-io/docquery/internal/domain"
)

func TestParagraph_SplitsOnBlankLines(t *testing.T) {
	segs := []domain.Segment{
		{Text: "First paragraph.\n\nSecond paragraph.\n\n\nThird.", Page: 1},
		{Text: "Fourth on page two.", Page: 2},
	}

	ps := Paragraph{}.Chunks("doc.txt", segs)

	if len(ps) != 4 {
		t.Fatalf("expected 4 passages, got %d", len(ps))
	}
	if ps[0].Paragraph != 1 || ps[2].Paragraph != 3 {
		t.Errorf("paragraph numbering wrong: %d, %d", ps[0].Paragraph, ps[2].Paragraph)
	}
	if ps[3].Page != 2 || ps[3].Paragraph != 1 {
		t.Errorf("paragraph numbering should restart per page, got page=%d para=%d", ps[3].Page, ps[3].Paragraph)
	}
	for _, p := range ps {
		if p.SourceDocument != "doc.txt" {
			t.Errorf("source document not set on %+v", p)
		}
	}
}

func TestWindow_OverlapAndBoundaries(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	ps := Window{Size: 50, Overlap: 10}.Chunks("d", []domain.Segment{{Text: text, Page: 1}})

	if len(ps) < 3 {
		t.Fatalf("expected several windows, got %d", len(ps))
	}
	for i, p := range ps {
		if len([]rune(p.Text)) > 50 {
			t.Errorf("window %d exceeds size: %d runes", i, len([]rune(p.Text)))
		}
		if strings.TrimSpace(p.Text) == "" {
			t.Errorf("window %d is blank", i)
		}
	}
}

func TestWindow_ShortTextSinglePassage(t *testing.T) {
	ps := Window{Size: 500, Overlap: 50}.Chunks("d", []domain.Segment{{Text: "short text", Page: 3}})
	if len(ps) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(ps))
	}
	if ps[0].Text != "short text" || ps[0].Page != 3 {
		t.Errorf("unexpected passage %+v", ps[0])
	}
}

func TestWindow_NoWhitespaceCutsHard(t *testing.T) {
	text := strings.Repeat("x", 120)
	ps := Window{Size: 50, Overlap: 0}.Chunks("d", []domain.Segment{{Text: text, Page: 1}})
	total := 0
	for _, p := range ps {
		total += len(p.Text)
	}
	if total != 120 {
		t.Errorf("hard cut lost characters: got %d total runes", total)
	}
}

func TestCombined_WindowsLongParagraphsOnly(t *testing.T) {
	long := strings.Repeat("alpha beta gamma ", 20) // well over 100 runes
	segs := []domain.Segment{{Text: "tiny para\n\n" + long, Page: 1}}

	ps := Combined{Size: 100, Overlap: 20}.Chunks("d", segs)

	if len(ps) < 3 {
		t.Fatalf("expected the long paragraph to split, got %d passages", len(ps))
	}
	if ps[0].Text != "tiny para" || ps[0].Paragraph != 1 {
		t.Errorf("short paragraph mangled: %+v", ps[0])
	}
	for _, p := range ps[1:] {
		if p.Paragraph != 2 {
			t.Errorf("split pieces should keep paragraph number, got %d", p.Paragraph)
		}
	}
}

func TestSplit_AssignsUniqueIDsAndChunkIndexes(t *testing.T) {
	segs := []domain.Segment{{Text: "a\n\nb\n\nc", Page: 1}}
	ps := Split("doc", segs, Paragraph{})

	seen := map[string]bool{}
	for i, p := range ps {
		if p.ID == "" {
			t.Fatal("passage id not assigned")
		}
		if seen[p.ID] {
			t.Fatalf("duplicate id %q", p.ID)
		}
		seen[p.ID] = true
		if p.ChunkIndex != i+1 {
			t.Errorf("chunk index %d at position %d", p.ChunkIndex, i)
		}
	}
}

func TestForMode_FallsBackToCombined(t *testing.T) {
	if _, ok := ForMode("bogus", 100, 10).(Combined); !ok {
		t.Error("unknown mode should select combined strategy")
	}
	if _, ok := ForMode(ModeParagraph, 0, 0).(Paragraph); !ok {
		t.Error("paragraph mode not selected")
	}
	if _, ok := ForMode(ModeWindow, 100, 10).(Window); !ok {
		t.Error("window mode not selected")
	}
}
