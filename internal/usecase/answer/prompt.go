package answer

import (
	"fmt"
	"strings"

	"github.com/askdoc-io/docquery/internal/domain"
)

// systemInstructions frame every generation call. The model answers strictly
// from the supplied excerpts and cites their locators.
const systemInstructions = `You are a QA assistant that answers questions from the provided document excerpts.

Give complete and precise answers, always citing where in the context the information came from.

Address every part of the question. Quote the context directly when possible and state which page, paragraph, or chunk the quote was taken from.

If only part of the answer is present in the context, answer what you can and say what is missing.

If the context holds no relevant information, say that no data is available.`

// NoContextAnswer is the fixed response for questions that retrieved nothing.
const NoContextAnswer = "No relevant passages were found in the document for this question."

// BuildPrompt assembles the user prompt from context and question.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)
}

// AssembleContext joins passage texts into one context block, in retrieval
// order, and collects their source descriptors deduplicated by descriptor
// string.
func AssembleContext(passages []domain.Passage) (string, []string) {
	var b strings.Builder
	seen := make(map[string]struct{})
	var sources []string

	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)

		desc := "Source: " + p.SourceDescriptor()
		if _, ok := seen[desc]; ok {
			continue
		}
		seen[desc] = struct{}{}
		sources = append(sources, desc)
	}

	return strings.TrimSpace(b.String()), sources
}
