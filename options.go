package docquery

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	documentsDir string
	indexDir     string

	driver    string
	addrs     []string
	username  string
	password  string
	keyPrefix string

	chunkMode    string
	chunkSize    int
	chunkOverlap int

	openAIKey     string
	openAIBaseURL string

	embeddingModel      string
	embeddingDimensions int
	generationModel     string
	temperature         float32
	maxTokens           int

	embedder  Embedder
	generator Generator

	initialK          int
	distanceThreshold float64
	finalK            int
	subqueryFail      bool

	attempts   int
	retryPause time.Duration
	timeout    time.Duration

	cacheEntries int
	cacheTTL     time.Duration

	buildTimeout time.Duration

	logger *zap.Logger
}

// WithDocumentsDir sets the directory documents are ingested from.
func WithDocumentsDir(dir string) Option {
	return func(c *clientConfig) { c.documentsDir = dir }
}

// WithIndexDir sets where the memory driver persists indexes.
func WithIndexDir(dir string) Option {
	return func(c *clientConfig) { c.indexDir = dir }
}

// WithRedis switches index storage to a Redis vector search backend.
func WithRedis(addrs []string, username, password, keyPrefix string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
		c.username = username
		c.password = password
		c.keyPrefix = keyPrefix
	}
}

// WithOpenAI configures the OpenAI-compatible backend used for both
// embeddings and generation. baseURL may be empty for the public API.
func WithOpenAI(apiKey, baseURL string) Option {
	return func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	}
}

// WithEmbeddingModel sets the embedding model and its vector dimensions.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embeddingModel = model
		c.embeddingDimensions = dimensions
	}
}

// WithGenerationModel sets the chat model used to produce answers.
func WithGenerationModel(model string) Option {
	return func(c *clientConfig) { c.generationModel = model }
}

// WithGenerationParams tunes sampling temperature and the output token cap.
func WithGenerationParams(temperature float32, maxTokens int) Option {
	return func(c *clientConfig) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// WithEmbedder plugs in a custom embedding backend, overriding WithOpenAI
// for embeddings.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithGenerator plugs in a custom generation backend, overriding WithOpenAI
// for generation.
func WithGenerator(g Generator) Option {
	return func(c *clientConfig) { c.generator = g }
}

// WithChunking sets the segmentation strategy: mode is "window", "paragraph"
// or "combined".
func WithChunking(mode string, size, overlap int) Option {
	return func(c *clientConfig) {
		c.chunkMode = mode
		c.chunkSize = size
		c.chunkOverlap = overlap
	}
}

// WithRetrieval tunes the three retrieval stages.
func WithRetrieval(initialK int, distanceThreshold float64, finalK int) Option {
	return func(c *clientConfig) {
		c.initialK = initialK
		c.distanceThreshold = distanceThreshold
		c.finalK = finalK
	}
}

// WithSubqueryFail makes a failed sub-question abort the whole decomposed
// query instead of being skipped.
func WithSubqueryFail() Option {
	return func(c *clientConfig) { c.subqueryFail = true }
}

// WithRetry tunes the generation retry policy.
func WithRetry(attempts int, pause time.Duration) Option {
	return func(c *clientConfig) {
		c.attempts = attempts
		c.retryPause = pause
	}
}

// WithGenerationTimeout bounds each generation attempt.
func WithGenerationTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithAnswerCache tunes the per-document answer cache.
func WithAnswerCache(entries int, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheEntries = entries
		c.cacheTTL = ttl
	}
}

// WithBuildTimeout bounds each index build.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.buildTimeout = d }
}

// WithLogger attaches a zap logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}
