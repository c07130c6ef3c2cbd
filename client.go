// Package docquery is an embeddable question answering engine over text
// documents: hybrid retrieval (dense recall, distance filtering, BM25
// rerank), compound question decomposition, answer caching, and generation
// with retry, usable in-process without the HTTP server.
package docquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/engine"
	"github.com/askdoc-io/docquery/internal/eventbus"
	"github.com/askdoc-io/docquery/internal/index/memory"
	"github.com/askdoc-io/docquery/internal/index/redisearch"
	"github.com/askdoc-io/docquery/internal/ingest"
	"github.com/askdoc-io/docquery/internal/rerank"
	"github.com/askdoc-io/docquery/internal/segment"
	openaiT "github.com/askdoc-io/docquery/internal/transport/openai"
	"github.com/askdoc-io/docquery/internal/usecase/answer"
	"github.com/askdoc-io/docquery/internal/usecase/indexing"
	"github.com/askdoc-io/docquery/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Embedder vectorizes text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries an embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Generator produces answer text from a system instruction and a prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Stream(ctx context.Context, system, prompt string, emit func(chunk string) error) (string, error)
}

// Answer is a finished answer with its source descriptors.
type Answer struct {
	Text    string
	Sources []string
	Cached  bool
}

// DocumentInfo describes one ingestible document and its index state.
type DocumentInfo struct {
	Name    string
	Indexed bool
}

// Client is the docquery SDK entry point.
type Client struct {
	store   *redisearch.Store
	manager *indexing.Manager
	engine  *engine.Engine
}

// New creates a docquery Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		documentsDir: "documents",
		indexDir:     "indices",
		driver:       "memory",
		chunkMode:    segment.ModeCombined,
		chunkSize:    1000,
		chunkOverlap: 100,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	generator := buildGenerator(cfg)

	var store *redisearch.Store
	var provider indexing.Provider
	switch cfg.driver {
	case "memory":
		provider = memory.NewProvider(cfg.indexDir, embedder)
	case "redis":
		store, err = redisearch.NewStore(redisearch.Config{
			Addrs:     cfg.addrs,
			Username:  cfg.username,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("docquery: create redis store: %w", err)
		}
		if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("docquery: redis not ready: %w", err)
		}
		provider = redisearch.NewProvider(store, embedder)
	default:
		return nil, fmt.Errorf("docquery: unknown index driver %q", cfg.driver)
	}

	bus := eventbus.New()
	loader := ingest.NewFileLoader(cfg.documentsDir)
	strategy := segment.ForMode(cfg.chunkMode, cfg.chunkSize, cfg.chunkOverlap)
	splitter := indexing.SplitterFunc(func(doc string, segments []domain.Segment) []domain.Passage {
		return segment.Split(doc, segments, strategy)
	})

	manager := indexing.NewManager(provider, loader, splitter, bus, cfg.buildTimeout, cfg.logger)

	policy := retrieval.SubquerySkip
	if cfg.subqueryFail {
		policy = retrieval.SubqueryFail
	}

	eng := engine.New(manager, generator, rerank.NewBM25(), loader, bus, engine.Options{
		Retrieval: retrieval.Options{
			InitialK:          cfg.initialK,
			DistanceThreshold: cfg.distanceThreshold,
			FinalK:            cfg.finalK,
		},
		SubqueryPolicy: policy,
		Answer: answer.Options{
			Attempts:   cfg.attempts,
			RetryPause: cfg.retryPause,
			Timeout:    cfg.timeout,
		},
		CacheEntries: cfg.cacheEntries,
		CacheTTL:     cfg.cacheTTL,
	}, cfg.logger)

	return &Client{store: store, manager: manager, engine: eng}, nil
}

// EnsureIndex prepares a document for querying. force rebuilds the index.
func (c *Client) EnsureIndex(ctx context.Context, document string, force bool) error {
	return c.engine.EnsureIndex(ctx, document, force)
}

// Ask answers a question against a document in one piece.
func (c *Client) Ask(ctx context.Context, document, question string) (Answer, error) {
	res, err := c.engine.Ask(ctx, document, question)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: res.Text, Sources: res.Sources, Cached: res.Cached}, nil
}

// AskStream answers a question, forwarding text fragments to emit as they
// arrive.
func (c *Client) AskStream(ctx context.Context, document, question string, emit func(chunk string) error) (Answer, error) {
	res, err := c.engine.AskStream(ctx, document, question, emit)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: res.Text, Sources: res.Sources, Cached: res.Cached}, nil
}

// Documents lists ingestible documents and whether each has a ready index.
func (c *Client) Documents() ([]DocumentInfo, error) {
	docs, err := c.engine.Documents()
	if err != nil {
		return nil, err
	}
	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{Name: d.Name, Indexed: d.Indexed}
	}
	return out, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

func buildEmbedder(cfg *clientConfig) (domain.Embedder, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil
	}
	if cfg.openAIKey != "" && cfg.embeddingModel != "" {
		return openaiT.NewEmbedder(&openaiT.EmbedderConfig{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.embeddingDimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		}), nil
	}
	return nil, errors.New(
		"docquery: embedder not configured (use WithOpenAI and WithEmbeddingModel, or WithEmbedder)",
	)
}

func buildGenerator(cfg *clientConfig) answer.Generator {
	if cfg.generator != nil {
		return cfg.generator
	}
	if cfg.openAIKey != "" && cfg.generationModel != "" {
		return openaiT.NewGenerator(&openaiT.GeneratorConfig{
			APIKey:      cfg.openAIKey,
			BaseURL:     cfg.openAIBaseURL,
			Model:       cfg.generationModel,
			Temperature: cfg.temperature,
			MaxTokens:   cfg.maxTokens,
			Logger:      cfg.logger,
		})
	}
	return noopGenerator{}
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopGenerator returns an error on use (when no generation backend is configured).
type noopGenerator struct{}

func (noopGenerator) Complete(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("docquery: generator not configured (use WithOpenAI and WithGenerationModel, or WithGenerator)")
}

func (noopGenerator) Stream(_ context.Context, _, _ string, _ func(chunk string) error) (string, error) {
	return "", errors.New("docquery: generator not configured (use WithOpenAI and WithGenerationModel, or WithGenerator)")
}
