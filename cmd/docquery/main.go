package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/config"
	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/engine"
	"github.com/askdoc-io/docquery/internal/eventbus"
	"github.com/askdoc-io/docquery/internal/index/memory"
	"github.com/askdoc-io/docquery/internal/index/redisearch"
	"github.com/askdoc-io/docquery/internal/ingest"
	logpkg "github.com/askdoc-io/docquery/internal/logger"
	"github.com/askdoc-io/docquery/internal/metrics"
	"github.com/askdoc-io/docquery/internal/rerank"
	"github.com/askdoc-io/docquery/internal/segment"
	"github.com/askdoc-io/docquery/internal/transport/httpapi"
	openaiT "github.com/askdoc-io/docquery/internal/transport/openai"
	"github.com/askdoc-io/docquery/internal/usecase/answer"
	"github.com/askdoc-io/docquery/internal/usecase/indexing"
	"github.com/askdoc-io/docquery/internal/usecase/retrieval"
	"github.com/askdoc-io/docquery/internal/version"
)

const redisReadinessTimeout = 30 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docquery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("documents_dir", cfg.Documents.Dir),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()

	// Lifecycle events feed the log as a diagnostic trail
	bus := eventbus.New()
	bus.SubscribeAll(eventbus.LoggingObserver(logger))

	embedder := openaiT.NewEmbedder(&openaiT.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	generator := openaiT.NewGenerator(&openaiT.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
	)

	ctx := context.Background()

	// Create index provider based on driver
	var provider indexing.Provider
	switch cfg.Index.Driver {
	case "memory":
		provider = memory.NewProvider(cfg.Documents.IndexDir, embedder)
	case "redis":
		store, err := redisearch.NewStore(redisearch.Config{
			Addrs:     cfg.Index.Addrs,
			Username:  cfg.Index.Username,
			Password:  cfg.Index.Password,
			KeyPrefix: cfg.Index.KeyPrefix,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, redisReadinessTimeout); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to redis")
		provider = redisearch.NewProvider(store, embedder)
	default:
		logger.Fatal("Unknown index driver", zap.String("driver", cfg.Index.Driver))
	}

	loader := ingest.NewFileLoader(cfg.Documents.Dir)
	strategy := segment.ForMode(cfg.Chunking.Mode, cfg.Chunking.Size, cfg.Chunking.Overlap)
	splitter := indexing.SplitterFunc(func(doc string, segments []domain.Segment) []domain.Passage {
		return segment.Split(doc, segments, strategy)
	})

	manager := indexing.NewManager(
		provider, loader, splitter, bus,
		time.Duration(cfg.Index.BuildTimeoutSec)*time.Second,
		logger,
	)
	defer manager.Close()

	eng := engine.New(manager, generator, rerank.NewBM25(), loader, bus, engine.Options{
		Retrieval: retrieval.Options{
			InitialK:          cfg.Retrieval.InitialK,
			DistanceThreshold: cfg.Retrieval.DistanceThreshold,
			FinalK:            cfg.Retrieval.FinalK,
		},
		SubqueryPolicy: retrieval.SubqueryPolicy(cfg.Retrieval.SubqueryPolicy),
		Answer: answer.Options{
			Attempts:   cfg.Generation.Attempts,
			RetryPause: time.Duration(cfg.Generation.RetryPauseSec) * time.Second,
			Timeout:    time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		},
		CacheEntries: cfg.Cache.MaxEntries,
		CacheTTL:     time.Duration(cfg.Cache.TTLSec) * time.Second,
	}, logger)

	api := httpapi.NewServer(eng, embedder, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Mount("/", api.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
