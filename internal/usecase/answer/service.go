// Package answer coordinates end-to-end answer production for one question
// against one document session: cache check, retrieval, context assembly,
// generation with retry, and event emission.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/metrics"
)

// Default retry policy for the retrieval+generation sequence.
const (
	DefaultAttempts   = 2
	DefaultRetryPause = time.Second
)

// failureAnswer is the terse user-facing text after all attempts exhaust.
// Full detail stays in logs and events.
const failureAnswer = "The answer could not be generated right now. Please try again."

// Options tunes the coordinator.
type Options struct {
	Attempts   int           // total attempts for retrieval+generation
	RetryPause time.Duration // pause between attempts
	Timeout    time.Duration // per-attempt generation bound, 0 = unbounded
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.RetryPause <= 0 {
		o.RetryPause = DefaultRetryPause
	}
	return o
}

// Result is a finished answer.
type Result = domain.Answer

// Service is the generation coordinator for one document session.
type Service struct {
	retriever Retriever
	generator Generator
	cache     Cache
	events    Publisher
	opts      Options
	logger    *zap.Logger

	pause func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator.
func New(retriever Retriever, generator Generator, cache Cache, events Publisher, opts Options, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		cache:     cache,
		events:    events,
		opts:      opts.withDefaults(),
		logger:    logger,
		pause:     sleepCtx,
	}
}

// Ask answers a question in one piece.
func (s *Service) Ask(ctx context.Context, question string) (Result, error) {
	return s.ask(ctx, question, nil)
}

// AskStream answers a question, forwarding text fragments to emit as they
// arrive. The full result is returned once the stream finishes. An error from
// emit abandons the stream without caching.
func (s *Service) AskStream(ctx context.Context, question string, emit func(chunk string) error) (Result, error) {
	return s.ask(ctx, question, emit)
}

func (s *Service) ask(ctx context.Context, question string, emit func(chunk string) error) (Result, error) {
	question = domain.NormalizeQuestion(question)
	if question == "" {
		return Result{}, errors.New("empty question")
	}

	s.events.Publish(domain.EventOperationStarted, map[string]any{
		"operation": "ask",
		"question":  question,
	})
	defer s.events.Publish(domain.EventOperationFinished, map[string]any{
		"operation": "ask",
	})

	if cached, ok := s.cache.Get(question); ok {
		metrics.AnswerCacheTotal.WithLabelValues("hit").Inc()
		if emit != nil {
			if err := emit(cached.Text); err != nil {
				return Result{}, err
			}
		}
		return Result{Text: cached.Text, Sources: cached.Sources, Cached: true}, nil
	}
	metrics.AnswerCacheTotal.WithLabelValues("miss").Inc()

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if attempt > 1 {
			if err := s.pause(ctx, s.opts.RetryPause); err != nil {
				return Result{}, err
			}
		}

		res, cacheable, emitted, err := s.attempt(ctx, question, attempt, emit)
		if err == nil {
			if cacheable {
				s.cache.Put(question, CachedAnswer{Text: res.Text, Sources: res.Sources})
			}
			return res, nil
		}
		if emitted {
			// The caller already received partial text. A retry would
			// replay fragments, so surface the failure instead.
			return Result{}, err
		}
		if ctx.Err() != nil {
			return Result{}, err
		}

		lastErr = err
		s.logger.Warn("answer attempt failed",
			zap.String("question", question),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return Result{Text: failureAnswer}, lastErr
}

// attempt runs one retrieval+generation sequence. cacheable is false for the
// fixed no-context response. emitted reports whether any fragment reached the
// caller, which rules out a retry.
func (s *Service) attempt(ctx context.Context, question string, attempt int, emit func(chunk string) error) (Result, bool, bool, error) {
	passages, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return Result{}, false, false, fmt.Errorf("retrieve: %w", classify(err))
	}

	contextText, sources := AssembleContext(passages)
	if contextText == "" {
		if emit != nil {
			if err := emit(NoContextAnswer); err != nil {
				return Result{}, false, true, err
			}
		}
		return Result{Text: NoContextAnswer}, false, false, nil
	}

	prompt := BuildPrompt(contextText, question)

	s.events.Publish(domain.EventGenerationStarted, map[string]any{
		"question": question,
		"attempt":  attempt,
	})
	start := time.Now()

	gctx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var text string
	emitted := false
	if emit == nil {
		text, err = s.generator.Complete(gctx, systemInstructions, prompt)
	} else {
		text, err = s.generator.Stream(gctx, systemInstructions, prompt, func(chunk string) error {
			emitted = true
			return emit(chunk)
		})
	}
	if err != nil {
		s.events.Publish(domain.EventGenerationFailed, map[string]any{
			"question": question,
			"attempt":  attempt,
			"error":    err.Error(),
		})
		return Result{}, false, emitted, fmt.Errorf("generate: %w", classify(err))
	}

	s.events.Publish(domain.EventGenerationCompleted, map[string]any{
		"question":     question,
		"elapsed_ms":   time.Since(start).Milliseconds(),
		"output_chars": len(text),
	})

	return Result{Text: text, Sources: sources}, true, emitted, nil
}

// classify maps collaborator failures onto the recoverable sentinels. Errors
// already carrying a sentinel pass through unchanged.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrBackendTimeout),
		errors.Is(err, domain.ErrBackendFailure),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIndexCorrupt):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%v: %w", err, domain.ErrBackendTimeout)
	default:
		return fmt.Errorf("%v: %w", err, domain.ErrBackendFailure)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
