package memory

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/askdoc-io/docquery/internal/domain"
)

const (
	passagesFile = "passages.json"
	vectorsFile  = "vectors.bin"
)

type passageDTO struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	Page       int    `json:"page,omitempty"`
	Paragraph  int    `json:"paragraph,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
}

// Save writes the index to dir as a passage list plus a raw vector blob.
// Both files are written together; a partial pair is treated as corrupt on load.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	dtos := make([]passageDTO, len(ix.passages))
	for i, p := range ix.passages {
		dtos[i] = passageDTO{
			ID:         p.ID,
			Text:       p.Text,
			Source:     p.SourceDocument,
			Page:       p.Page,
			Paragraph:  p.Paragraph,
			ChunkIndex: p.ChunkIndex,
		}
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return fmt.Errorf("marshal passages: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, passagesFile), data, 0o600); err != nil {
		return fmt.Errorf("write passages: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, vectorsFile), encodeVectors(ix.dim, ix.vectors), 0o600); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// Exists reports whether dir holds a persisted index.
func Exists(dir string) bool {
	for _, name := range []string{passagesFile, vectorsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Load reads a persisted index from dir. The embedder must produce vectors in
// the same space the index was built with. Malformed files surface as
// domain.ErrIndexCorrupt so the caller can trigger a rebuild.
func Load(dir string, embed domain.Embedder) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, passagesFile)))
	if err != nil {
		return nil, fmt.Errorf("read passages: %w: %w", err, domain.ErrIndexCorrupt)
	}
	var dtos []passageDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("parse passages: %w: %w", err, domain.ErrIndexCorrupt)
	}

	blob, err := os.ReadFile(filepath.Clean(filepath.Join(dir, vectorsFile)))
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w: %w", err, domain.ErrIndexCorrupt)
	}
	dim, vectors, err := decodeVectors(blob)
	if err != nil {
		return nil, fmt.Errorf("parse vectors: %w: %w", err, domain.ErrIndexCorrupt)
	}
	if len(vectors) != len(dtos) {
		return nil, fmt.Errorf("%d vectors for %d passages: %w", len(vectors), len(dtos), domain.ErrIndexCorrupt)
	}

	ps := make([]domain.Passage, len(dtos))
	for i, d := range dtos {
		ps[i] = domain.Passage{
			ID:             d.ID,
			Text:           d.Text,
			SourceDocument: d.Source,
			Page:           d.Page,
			Paragraph:      d.Paragraph,
			ChunkIndex:     d.ChunkIndex,
		}
	}

	return &Index{embed: embed, dim: dim, vectors: vectors, passages: ps}, nil
}

// encodeVectors packs vectors as [count uint32][dim uint32][count*dim float32],
// all little-endian.
func encodeVectors(dim int, vectors [][]float32) []byte {
	buf := make([]byte, 8+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(dim))
	off := 8
	for _, v := range vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

func decodeVectors(data []byte) (int, [][]float32, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("vector blob too short: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data[0:]))
	dim := int(binary.LittleEndian.Uint32(data[4:]))
	if count < 0 || dim < 0 || len(data) != 8+count*dim*4 {
		return 0, nil, fmt.Errorf("vector blob size mismatch: count=%d dim=%d len=%d", count, dim, len(data))
	}

	vectors := make([][]float32, count)
	off := 8
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}
