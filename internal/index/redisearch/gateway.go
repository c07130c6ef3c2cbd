package redisearch

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
)

// maxPassagesPerDocument bounds the full-scan used when reopening a
// persisted document index.
const maxPassagesPerDocument = 100000

var _ index.Gateway = (*Gateway)(nil)

// Gateway searches one document's passages via FT.SEARCH KNN.
type Gateway struct {
	store *Store
	embed domain.Embedder
	name  string // FT index name
	count int
}

// Search embeds the query and runs a KNN search. Distances are the index's
// native metric (L2 as created by Build), ascending.
func (g *Gateway) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 || g.count == 0 {
		return nil, nil
	}

	res, err := g.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	cmd := g.store.b().Arbitrary("FT.SEARCH").Args(
		g.name, queryStr,
		"RETURN", "7", "id", "text", "source", "page", "paragraph", "chunk", "__vector_score",
		"SORTBY", "__vector_score",
		"PARAMS", "2", "BLOB", vectorToBlob(res.Embedding),
		"DIALECT", "2",
	).Build()

	raw, err := g.store.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	return parseKNNResult(raw)
}

// Len returns the number of indexed passages.
func (g *Gateway) Len() int {
	return g.count
}

// Exists reports whether a persisted index exists for the document,
// probed via FT.INFO.
func (s *Store) Exists(ctx context.Context, document string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(s.indexName(document)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, fmt.Errorf("index info: %w", err)
	}
	return true, nil
}

// Build embeds the passages, (re)creates the FT index, and writes one hash
// per passage. Returns a gateway over the fresh index.
func (s *Store) Build(
	ctx context.Context, document string, embed domain.Embedder, ps []domain.Passage,
) (index.Gateway, error) {
	texts := make([]string, len(ps))
	for i, p := range ps {
		texts[i] = p.Text
	}

	var (
		batch domain.BatchEmbeddingResult
		err   error
	)
	if be, ok := embed.(domain.BatchEmbedder); ok && len(texts) > 0 {
		batch, err = be.BatchEmbed(ctx, texts)
	} else {
		batch, err = domain.BatchFallback(ctx, embed, texts)
	}
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(batch.Embeddings) != len(ps) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(batch.Embeddings), len(ps))
	}

	dim := 0
	if len(batch.Embeddings) > 0 {
		dim = len(batch.Embeddings[0])
	}

	if err := s.dropDocument(ctx, document); err != nil {
		return nil, err
	}

	name := s.indexName(document)
	prefix := s.keyPrefix(document)
	if dim > 0 {
		cmd := s.b().Arbitrary("FT.CREATE").Args(
			name, "ON", "HASH", "PREFIX", "1", prefix, "SCHEMA",
			"text", "TEXT",
			"vector", "VECTOR", "FLAT", "6",
			"TYPE", "FLOAT32", "DIM", strconv.Itoa(dim), "DISTANCE_METRIC", "L2",
		).Build()
		if err := s.do(ctx, cmd).Error(); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	for i, p := range ps {
		cmd := s.b().Hset().Key(prefix+p.ID).FieldValue().
			FieldValue("id", p.ID).
			FieldValue("text", p.Text).
			FieldValue("source", p.SourceDocument).
			FieldValue("page", strconv.Itoa(p.Page)).
			FieldValue("paragraph", strconv.Itoa(p.Paragraph)).
			FieldValue("chunk", strconv.Itoa(p.ChunkIndex)).
			FieldValue("vector", vectorToBlob(batch.Embeddings[i])).
			Build()
		if err := s.do(ctx, cmd).Error(); err != nil {
			return nil, fmt.Errorf("store passage %s: %w", p.ID, err)
		}
	}

	return &Gateway{store: s, embed: embed, name: name, count: len(ps)}, nil
}

// Load reopens a persisted document index and returns its gateway plus the
// full passage list (needed by the lexical stage). Missing or unreadable
// state maps to domain.ErrIndexCorrupt so the caller rebuilds.
func (s *Store) Load(
	ctx context.Context, document string, embed domain.Embedder,
) (index.Gateway, []domain.Passage, error) {
	name := s.indexName(document)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(
		name, "*",
		"RETURN", "6", "id", "text", "source", "page", "paragraph", "chunk",
		"LIMIT", "0", strconv.Itoa(maxPassagesPerDocument),
		"DIALECT", "2",
	).Build()

	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, nil, fmt.Errorf("load passages: %w: %w", err, domain.ErrIndexCorrupt)
	}

	candidates, err := parseKNNResult(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse passages: %w: %w", err, domain.ErrIndexCorrupt)
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("index %s holds no passages: %w", name, domain.ErrIndexCorrupt)
	}

	ps := make([]domain.Passage, len(candidates))
	for i, c := range candidates {
		ps[i] = c.Passage
	}
	// Restore document order; hash scan order is unspecified.
	sort.SliceStable(ps, func(a, b int) bool { return ps[a].ChunkIndex < ps[b].ChunkIndex })

	return &Gateway{store: s, embed: embed, name: name, count: len(ps)}, ps, nil
}

// dropDocument removes a document's index and passage hashes, ignoring a
// missing index.
func (s *Store) dropDocument(ctx context.Context, document string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(s.indexName(document), "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return nil
		}
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// parseKNNResult decodes a RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) ([]domain.Candidate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	out := make([]domain.Candidate, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := fieldPairs(fields)

		c := domain.Candidate{Passage: domain.Passage{
			ID:             m["id"],
			Text:           m["text"],
			SourceDocument: m["source"],
			Page:           atoiOrZero(m["page"]),
			Paragraph:      atoiOrZero(m["paragraph"]),
			ChunkIndex:     atoiOrZero(m["chunk"]),
		}}
		if score, ok := m["__vector_score"]; ok {
			if d, err := strconv.ParseFloat(score, 64); err == nil {
				c.Distance = d
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func fieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		k, err := fields[i].ToString()
		if err != nil {
			continue
		}
		v, err := fields[i+1].ToString()
		if err != nil {
			continue
		}
		m[k] = v
	}
	return m
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
