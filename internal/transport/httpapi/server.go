// Package httpapi exposes the question answering engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/engine"
	"github.com/askdoc-io/docquery/internal/usecase/answer"
)

// ErrorCode identifies an error category in responses.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeDocumentNotFound ErrorCode = "document_not_found"
	CodeNoContext        ErrorCode = "no_relevant_passages"
	CodeBackendTimeout   ErrorCode = "backend_timeout"
	CodeBackendFailure   ErrorCode = "backend_failure"
	CodeIndexCorrupt     ErrorCode = "index_corrupt"
	CodeShuttingDown     ErrorCode = "shutting_down"
	CodeInternalError    ErrorCode = "internal_error"
)

// Engine is the question answering surface the server fronts.
type Engine interface {
	EnsureIndex(ctx context.Context, document string, force bool) error
	Ask(ctx context.Context, document, question string) (answer.Result, error)
	AskStream(ctx context.Context, document, question string, emit func(chunk string) error) (answer.Result, error)
	Documents() ([]engine.Document, error)
}

// HealthChecker probes a backing service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	engine        Engine
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. health may be nil when no backend
// probe is available.
func NewServer(eng Engine, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		engine: eng,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrEmptyContext, http.StatusNotFound, CodeNoContext),
		sentinelHandler(domain.ErrBackendTimeout, http.StatusGatewayTimeout, CodeBackendTimeout),
		sentinelHandler(domain.ErrBackendFailure, http.StatusBadGateway, CodeBackendFailure),
		sentinelHandler(domain.ErrIndexCorrupt, http.StatusBadGateway, CodeIndexCorrupt),
		sentinelHandler(domain.ErrSessionClosed, http.StatusServiceUnavailable, CodeShuttingDown),
	}
	return s
}

// Routes mounts the API on a fresh router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/ask", s.Ask)
	r.Get("/documents", s.ListDocuments)
	r.Post("/documents/{document}/index", s.IndexDocument)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	return r
}

type askRequest struct {
	Document string `json:"document"`
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Cached  bool     `json:"cached"`
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "document is required")
		return
	}
	if domain.NormalizeQuestion(req.Question) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "question is required")
		return
	}

	if req.Stream {
		s.askStream(w, r, req)
		return
	}

	res, err := s.engine.Ask(r.Context(), req.Document, req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  res.Text,
		Sources: sources(res),
		Cached:  res.Cached,
	})
}

// askStream answers over server-sent events. Each text fragment arrives as a
// data event; a terminal "done" event carries the sources. Failures before
// the first fragment arrive as an "error" event, failures after it abort the
// stream without a terminal event.
func (s *Server) askStream(w http.ResponseWriter, r *http.Request, req askRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emitted := false
	res, err := s.engine.AskStream(r.Context(), req.Document, req.Question, func(chunk string) error {
		emitted = true
		return writeSSE(w, flusher, "", streamChunk{Text: chunk})
	})
	if err != nil {
		s.logger.Warn("streamed ask failed",
			zap.String("document", req.Document),
			zap.Bool("emitted", emitted),
			zap.Error(err),
		)
		if !emitted {
			_ = writeSSE(w, flusher, "error", errorResponse{
				Code:    errorCode(err),
				Message: safeDomainMessage(err),
			})
		}
		return
	}

	_ = writeSSE(w, flusher, "done", askResponse{
		Answer:  res.Text,
		Sources: sources(res),
		Cached:  res.Cached,
	})
}

type indexRequest struct {
	Force bool `json:"force"`
}

type indexResponse struct {
	Document string `json:"document"`
	Status   string `json:"status"`
}

// IndexDocument handles POST /documents/{document}/index.
func (s *Server) IndexDocument(w http.ResponseWriter, r *http.Request) {
	document := chi.URLParam(r, "document")

	var req indexRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	if err := s.engine.EnsureIndex(r.Context(), document, req.Force); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, indexResponse{Document: document, Status: "ready"})
}

type documentListResponse struct {
	Items []engine.Document `json:"items"`
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.engine.Documents()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if docs == nil {
		docs = []engine.Document{}
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: docs})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("embedding backend unhealthy", zap.Error(err))
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["embeddings"] = "down"
		} else {
			checks["embeddings"] = "up"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func sources(res answer.Result) []string {
	if res.Sources == nil {
		return []string{}
	}
	return res.Sources
}

type streamChunk struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeSSE writes one server-sent event and flushes it to the client.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := w.Write([]byte("event: " + event + "\n")); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrEmptyContext,
		domain.ErrBackendTimeout,
		domain.ErrBackendFailure,
		domain.ErrIndexCorrupt,
		domain.ErrSessionClosed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeDocumentNotFound
	case errors.Is(err, domain.ErrEmptyContext):
		return CodeNoContext
	case errors.Is(err, domain.ErrBackendTimeout):
		return CodeBackendTimeout
	case errors.Is(err, domain.ErrBackendFailure):
		return CodeBackendFailure
	case errors.Is(err, domain.ErrIndexCorrupt):
		return CodeIndexCorrupt
	case errors.Is(err, domain.ErrSessionClosed):
		return CodeShuttingDown
	default:
		return CodeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
