package domain

import "strings"

// NormalizeQuestion produces the canonical form of a question used as a cache
// key. Equality is exact string match after trimming; there is no semantic
// deduplication of questions.
func NormalizeQuestion(question string) string {
	return strings.TrimSpace(question)
}
