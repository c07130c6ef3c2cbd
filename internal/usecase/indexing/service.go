// Package indexing manages per-document index lifecycle: load an existing
// index or build a fresh one, verify loaded indexes, and guarantee at most
// one build in flight per document.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/index"
	"github.com/askdoc-io/docquery/internal/metrics"
	"github.com/askdoc-io/docquery/internal/passages"
)

// Manager owns the session registry for all documents in the process.
type Manager struct {
	provider     Provider
	loader       Loader
	splitter     Splitter
	events       Publisher
	logger       *zap.Logger
	buildTimeout time.Duration

	group    singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager. buildTimeout bounds each index build;
// zero means unbounded.
func NewManager(provider Provider, loader Loader, splitter Splitter, events Publisher, buildTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		provider:     provider,
		loader:       loader,
		splitter:     splitter,
		events:       events,
		logger:       logger,
		buildTimeout: buildTimeout,
		sessions:     make(map[string]*Session),
	}
}

// EnsureIndex returns a ready session for the document, loading a persisted
// index or building one. Concurrent calls for the same document share a
// single underlying build. force skips the load path and rebuilds, always in
// a flight of its own.
func (m *Manager) EnsureIndex(ctx context.Context, document string, force bool) (*Session, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, domain.ErrSessionClosed
	}
	sess := m.sessions[document]
	m.mu.RUnlock()

	if sess != nil && !force {
		return sess, nil
	}

	if force {
		// An in-flight non-force call may be loading the persisted index.
		// A rebuild request must start its own flight, not adopt that result.
		m.group.Forget(document)
	}

	v, err, _ := m.group.Do(document, func() (any, error) {
		return m.setup(ctx, document, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Session returns the ready session for a document, if any.
func (m *Manager) Session(document string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[document]
	return sess, ok
}

// Documents lists documents with a ready session.
func (m *Manager) Documents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for doc := range m.sessions {
		out = append(out, doc)
	}
	return out
}

// Close tears the registry down. Subsequent EnsureIndex calls fail with
// ErrSessionClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}

func (m *Manager) setup(ctx context.Context, document string, force bool) (*Session, error) {
	m.events.Publish(domain.EventIndexSetupStarted, map[string]any{
		"document": document,
		"force":    force,
	})

	if !force {
		exists, err := m.provider.Exists(ctx, document)
		if err != nil {
			return nil, fmt.Errorf("check index for %q: %w", document, err)
		}
		if exists {
			sess, err := m.loadVerified(ctx, document)
			if err == nil {
				m.events.Publish(domain.EventIndexSetupCompleted, map[string]any{
					"document": document,
				})
				return sess, nil
			}
			if !errors.Is(err, domain.ErrIndexCorrupt) {
				return nil, err
			}
			// A corrupt index self-heals through a rebuild.
			m.logger.Warn("persisted index failed verification, rebuilding",
				zap.String("document", document),
				zap.Error(err),
			)
		}
	}

	sess, err := m.build(ctx, document)
	if err != nil {
		return nil, err
	}
	m.events.Publish(domain.EventIndexSetupCompleted, map[string]any{
		"document": document,
	})
	return sess, nil
}

// loadVerified reopens a persisted index and probes it with a trivial query.
// Any load or probe failure is reported as ErrIndexCorrupt.
func (m *Manager) loadVerified(ctx context.Context, document string) (*Session, error) {
	gw, passages, err := m.provider.Load(ctx, document)
	if err != nil {
		if errors.Is(err, domain.ErrIndexCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("load index for %q: %w", document, err)
	}

	if err := probe(ctx, gw, passages); err != nil {
		return nil, fmt.Errorf("integrity probe for %q: %w: %w", document, err, domain.ErrIndexCorrupt)
	}

	sess, err := m.upsert(document, gw, passages)
	if err != nil {
		return nil, err
	}
	m.events.Publish(domain.EventIndexLoaded, map[string]any{
		"document": document,
		"passages": len(passages),
	})
	return sess, nil
}

func (m *Manager) build(ctx context.Context, document string) (*Session, error) {
	if m.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.buildTimeout)
		defer cancel()
	}

	m.events.Publish(domain.EventIndexCreationStarted, map[string]any{
		"document": document,
	})

	segments, err := m.loader.Load(ctx, document)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ingest %q: %w", document, err)
	}

	passages := m.splitter.Split(document, segments)
	if len(passages) == 0 {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%q produced no passages: %w", document, domain.ErrNotFound)
	}
	m.events.Publish(domain.EventPassagesSplit, map[string]any{
		"document": document,
		"count":    len(passages),
	})

	gw, err := m.provider.Build(ctx, document, passages)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("build index for %q: %w", document, domain.ErrBackendTimeout)
		}
		return nil, fmt.Errorf("build index for %q: %w", document, err)
	}
	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()

	m.events.Publish(domain.EventIndexCreated, map[string]any{
		"document": document,
		"passages": len(passages),
	})
	return m.upsert(document, gw, passages)
}

// upsert publishes the new index into the session registry. An existing
// session keeps its identity so in-flight readers pick up the swap.
func (m *Manager) upsert(document string, gw index.Gateway, ps []domain.Passage) (*Session, error) {
	store, err := passages.NewStore(ps)
	if err != nil {
		return nil, fmt.Errorf("passage store for %q: %w: %w", document, err, domain.ErrIndexCorrupt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrSessionClosed
	}
	sess := m.sessions[document]
	if sess == nil {
		sess = &Session{document: document}
		m.sessions[document] = sess
	}
	sess.swap(gw, store)
	return sess, nil
}

// probe runs a trivial similarity query against a freshly loaded index.
func probe(ctx context.Context, gw index.Gateway, passages []domain.Passage) error {
	if gw.Len() != len(passages) {
		return fmt.Errorf("index holds %d vectors for %d passages", gw.Len(), len(passages))
	}
	if len(passages) == 0 {
		return nil
	}
	if _, err := gw.Search(ctx, passages[0].Text, 1); err != nil {
		return err
	}
	return nil
}
