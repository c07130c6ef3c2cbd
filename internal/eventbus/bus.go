// Package eventbus is a synchronous in-process publish/subscribe channel for
// lifecycle and diagnostic events. Pure fan-out, no buffering, no delivery
// guarantee beyond dispatch to the subscribers present at emit time.
package eventbus

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
)

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(evt domain.Event)

// Bus fans events out to subscribers keyed by event type.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	all  []Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish dispatches an event to current subscribers. Safe for concurrent use.
func (b *Bus) Publish(eventType string, payload map[string]any) {
	evt := domain.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[eventType])+len(b.all))
	handlers = append(handlers, b.subs[eventType]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// LoggingObserver returns a handler that logs every event at info level.
func LoggingObserver(logger *zap.Logger) Handler {
	return func(evt domain.Event) {
		logger.Info("event",
			zap.String("type", evt.Type),
			zap.Any("payload", evt.Payload),
		)
	}
}
