// Package ingest loads raw document text for indexing. Documents are UTF-8
// text or Markdown files in a managed directory; a form feed (\f) marks a
// page break, files without one are a single page.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/askdoc-io/docquery/internal/domain"
)

// FileLoader reads documents from a directory by file name.
type FileLoader struct {
	dir string
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// Load reads a document and returns its ordered page segments.
// Returns domain.ErrNotFound when the file does not exist.
func (l *FileLoader) Load(_ context.Context, document string) ([]domain.Segment, error) {
	name := filepath.Base(document) // no path traversal out of the managed dir
	path := filepath.Join(l.dir, name)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", document, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read document %q: %w", document, err)
	}

	var segments []domain.Segment
	page := 0
	for _, raw := range strings.Split(string(data), "\f") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		page++
		segments = append(segments, domain.Segment{Text: text, Page: page})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%q has no text content: %w", document, domain.ErrNotFound)
	}
	return segments, nil
}

// List returns the document file names available for ingestion, sorted.
func (l *FileLoader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md", ".text", ".markdown":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
