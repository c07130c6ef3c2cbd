package domain

import (
	"fmt"
	"strings"
)

// Passage is a unit of retrievable document text with positional metadata.
// Immutable once created: retrieval stages that need to attach a score must
// work on a copy (see Candidate), never mutate a stored passage.
type Passage struct {
	ID             string
	Text           string
	SourceDocument string
	Page           int // 1-based, 0 = unknown
	Paragraph      int // 1-based within page, 0 = unknown
	ChunkIndex     int // 1-based within document, 0 = unknown
}

// SourceDescriptor renders a human-readable locator for the passage,
// e.g. "report.txt, page 3, paragraph 2, chunk 17".
func (p Passage) SourceDescriptor() string {
	var b strings.Builder
	if p.SourceDocument != "" {
		b.WriteString(p.SourceDocument)
	} else {
		b.WriteString("unknown source")
	}
	if p.Page > 0 {
		fmt.Fprintf(&b, ", page %d", p.Page)
	}
	if p.Paragraph > 0 {
		fmt.Fprintf(&b, ", paragraph %d", p.Paragraph)
	}
	if p.ChunkIndex > 0 {
		fmt.Fprintf(&b, ", chunk %d", p.ChunkIndex)
	}
	return b.String()
}

// Candidate is a passage paired with a vector-stage distance.
// Distance is a dissimilarity metric: lower means more similar. Its scale is
// specific to the index backend and not comparable across implementations.
type Candidate struct {
	Passage  Passage
	Distance float64
}
