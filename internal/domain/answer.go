package domain

// Answer is the result of one question against one document session.
type Answer struct {
	Text    string
	Sources []string // ordered, deduplicated source descriptors
	Cached  bool     // true when replayed from the response cache
}
