// Package segment splits ingested document segments into retrievable
// passages. Three strategies are provided: fixed-size windows with overlap,
// paragraph boundaries, and a combination of both. The engine is agnostic to
// which strategy produced its passages.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Strategy turns raw segments into passages. Implementations set positional
// metadata (page, paragraph) but not ids or chunk indexes.
type Strategy interface {
	Chunks(doc string, segments []domain.Segment) []domain.Passage
}

// Chunking modes accepted by ForMode.
const (
	ModeWindow    = "window"
	ModeParagraph = "paragraph"
	ModeCombined  = "combined"
)

// ForMode returns the strategy for a chunking mode. Unknown modes fall back
// to the combined strategy.
func ForMode(mode string, size, overlap int) Strategy {
	switch mode {
	case ModeWindow:
		return Window{Size: size, Overlap: overlap}
	case ModeParagraph:
		return Paragraph{}
	default:
		return Combined{Size: size, Overlap: overlap}
	}
}

// Split runs a strategy and assigns each resulting passage a unique id and a
// 1-based chunk index in document order.
func Split(doc string, segments []domain.Segment, st Strategy) []domain.Passage {
	ps := st.Chunks(doc, segments)
	for i := range ps {
		ps[i].ID = uuid.NewString()
		ps[i].ChunkIndex = i + 1
	}
	return ps
}

// Window splits each segment into fixed-size rune windows with overlap,
// breaking on whitespace where possible.
type Window struct {
	Size    int
	Overlap int
}

// Chunks implements Strategy.
func (w Window) Chunks(doc string, segments []domain.Segment) []domain.Passage {
	var out []domain.Passage
	for _, seg := range segments {
		for _, text := range splitWindow(seg.Text, w.Size, w.Overlap) {
			out = append(out, domain.Passage{
				Text:           text,
				SourceDocument: doc,
				Page:           seg.Page,
			})
		}
	}
	return out
}

var paragraphSep = regexp.MustCompile(`\n{2,}`)

// Paragraph splits each segment on blank lines, numbering paragraphs per page.
type Paragraph struct{}

// Chunks implements Strategy.
func (Paragraph) Chunks(doc string, segments []domain.Segment) []domain.Passage {
	var out []domain.Passage
	for _, seg := range segments {
		paraNum := 0
		for _, para := range paragraphSep.Split(seg.Text, -1) {
			text := strings.TrimSpace(para)
			if text == "" {
				continue
			}
			paraNum++
			out = append(out, domain.Passage{
				Text:           text,
				SourceDocument: doc,
				Page:           seg.Page,
				Paragraph:      paraNum,
			})
		}
	}
	return out
}

// Combined splits into paragraphs first, then window-splits any paragraph
// longer than the window size, preserving paragraph metadata.
type Combined struct {
	Size    int
	Overlap int
}

// Chunks implements Strategy.
func (c Combined) Chunks(doc string, segments []domain.Segment) []domain.Passage {
	paras := Paragraph{}.Chunks(doc, segments)
	var out []domain.Passage
	for _, p := range paras {
		pieces := splitWindow(p.Text, c.Size, c.Overlap)
		for _, text := range pieces {
			split := p
			split.Text = text
			out = append(out, split)
		}
	}
	return out
}

// splitWindow cuts text into windows of at most size runes, overlapping by
// overlap runes. Window boundaries back up to the nearest whitespace so words
// are not cut mid-rune sequence; a window with no whitespace is cut hard.
func splitWindow(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := end
		for cut > start && !unicode.IsSpace(runes[cut-1]) {
			cut--
		}
		if cut == start {
			cut = end
		}
		piece := strings.TrimSpace(string(runes[start:cut]))
		if piece != "" {
			out = append(out, piece)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}
