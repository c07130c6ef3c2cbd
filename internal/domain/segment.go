package domain

// Segment is a raw unit of document text produced by ingestion, before
// splitting. Typically one page.
type Segment struct {
	Text string
	Page int // 1-based
}
