// Package engine ties the index lifecycle to per-document ask pipelines.
// Each document session gets its own retriever, decomposer, answer cache,
// and coordinator; the engine routes questions to them.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/usecase/answer"
	"github.com/askdoc-io/docquery/internal/usecase/indexing"
	"github.com/askdoc-io/docquery/internal/usecase/retrieval"
)

// Lister enumerates ingestible documents.
type Lister interface {
	List() ([]string, error)
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// Options carries the per-pipeline settings.
type Options struct {
	Retrieval      retrieval.Options
	SubqueryPolicy retrieval.SubqueryPolicy
	Answer         answer.Options
	CacheEntries   int
	CacheTTL       time.Duration
}

// Document describes one ingestible document and its index state.
type Document struct {
	Name    string `json:"name"`
	Indexed bool   `json:"indexed"`
}

// Engine is the outward surface consumed by transport layers.
type Engine struct {
	manager   *indexing.Manager
	generator answer.Generator
	reranker  retrieval.Reranker
	lister    Lister
	events    Publisher
	opts      Options
	logger    *zap.Logger

	mu        sync.Mutex
	pipelines map[string]*answer.Service
}

// New creates an engine.
func New(manager *indexing.Manager, generator answer.Generator, reranker retrieval.Reranker, lister Lister, events Publisher, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		manager:   manager,
		generator: generator,
		reranker:  reranker,
		lister:    lister,
		events:    events,
		opts:      opts,
		logger:    logger,
		pipelines: make(map[string]*answer.Service),
	}
}

// EnsureIndex prepares a document for querying. force rebuilds the index and
// resets the document's answer cache, since cached answers belong to the
// session they were produced in.
func (e *Engine) EnsureIndex(ctx context.Context, document string, force bool) error {
	if _, err := e.manager.EnsureIndex(ctx, document, force); err != nil {
		return err
	}
	if force {
		e.mu.Lock()
		delete(e.pipelines, document)
		e.mu.Unlock()
	}
	return nil
}

// Ask answers a question against a document in one piece.
func (e *Engine) Ask(ctx context.Context, document, question string) (answer.Result, error) {
	pipe, err := e.pipeline(ctx, document)
	if err != nil {
		return answer.Result{}, err
	}
	return pipe.Ask(ctx, question)
}

// AskStream answers a question against a document, forwarding fragments to
// emit.
func (e *Engine) AskStream(ctx context.Context, document, question string, emit func(chunk string) error) (answer.Result, error) {
	pipe, err := e.pipeline(ctx, document)
	if err != nil {
		return answer.Result{}, err
	}
	return pipe.AskStream(ctx, question, emit)
}

// Documents lists ingestible documents and whether each has a ready session.
func (e *Engine) Documents() ([]Document, error) {
	names, err := e.lister.List()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Document, len(names))
	for i, name := range names {
		_, ready := e.manager.Session(name)
		out[i] = Document{Name: name, Indexed: ready}
	}
	return out, nil
}

// pipeline returns the document's coordinator, building the session and the
// pipeline on first use.
func (e *Engine) pipeline(ctx context.Context, document string) (*answer.Service, error) {
	e.mu.Lock()
	pipe, ok := e.pipelines[document]
	e.mu.Unlock()
	if ok {
		return pipe, nil
	}

	sess, err := e.manager.EnsureIndex(ctx, document, false)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if pipe, ok := e.pipelines[document]; ok {
		return pipe, nil
	}

	retriever := retrieval.New(sess, e.reranker, e.opts.Retrieval, e.logger)
	decomposer := retrieval.NewDecomposer(retriever, e.opts.SubqueryPolicy, e.events, e.logger)
	cache := answer.NewResponseCache(e.opts.CacheEntries, e.opts.CacheTTL)
	pipe = answer.New(decomposer, e.generator, cache, e.events, e.opts.Answer, e.logger)
	e.pipelines[document] = pipe
	return pipe, nil
}
