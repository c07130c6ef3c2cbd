package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/askdoc-io/docquery/internal/domain"
	"github.com/askdoc-io/docquery/internal/metrics"
)

// Generator produces answers through the OpenAI-compatible chat completion API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	logger      *zap.Logger
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	User        string
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		logger:      cfg.Logger,
	}
}

// Complete generates the whole answer in a single round trip.
func (g *Generator) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, g.request(system, prompt, false))
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("error").Inc()
		return "", parseAPIError("generation", err)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrBackendFailure)
	}

	metrics.GenerationTotal.WithLabelValues("success").Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	return resp.Choices[0].Message.Content, nil
}

// Stream generates the answer incrementally, invoking emit for every token
// delta, and returns the assembled text. A non-nil error from emit aborts the
// stream and is returned unchanged.
func (g *Generator) Stream(ctx context.Context, system, prompt string, emit func(chunk string) error) (string, error) {
	start := time.Now()

	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(system, prompt, true))
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("error").Inc()
		return "", parseAPIError("generation", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.GenerationTotal.WithLabelValues("error").Inc()
			return b.String(), parseAPIError("generation stream", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if emit != nil {
			if err := emit(delta); err != nil {
				metrics.GenerationTotal.WithLabelValues("aborted").Inc()
				return b.String(), err
			}
		}
	}

	metrics.GenerationTotal.WithLabelValues("success").Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	return b.String(), nil
}

func (g *Generator) request(system, prompt string, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		User:        g.user,
		Stream:      stream,
	}
}
