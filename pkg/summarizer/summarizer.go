// Package summarizer asks an OpenAI-compatible chat endpoint to describe the
// aggregated search text.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

type Summarizer struct {
	logger       *slog.Logger
	client       openai.Client
	provider     string
	model        string
	systemPrompt string
	temperature  float64
}

// New builds a client for cfg. Retries are disabled: one request per call.
func New(logger *slog.Logger, cfg models.LLMConfig) *Summarizer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Summarizer{
		logger:       logger,
		client:       openai.NewClient(opts...),
		provider:     cfg.Provider,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
	}
}

// WithSystemPrompt returns a copy that sends prompt instead of the configured one.
func (s *Summarizer) WithSystemPrompt(prompt string) *Summarizer {
	c := *s
	c.systemPrompt = prompt
	return &c
}

// Describe sends text as the user message and returns the first choice.
func (s *Summarizer) Describe(ctx context.Context, text string) (string, error) {
	s.logger.Info("Sending request to LLM", "provider", s.provider, "model", s.model, "chars", len(text))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.systemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(s.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	result := resp.Choices[0].Message.Content
	s.logger.Info("Received LLM response", "provider", s.provider, "chars", len(result))
	return result, nil
}

// Summarize is Describe for callers that want a string whatever happens:
// failures come back as "Error processing with <provider>: <err>".
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	result, err := s.Describe(ctx, text)
	if err != nil {
		s.logger.Error("Error processing content with LLM", "provider", s.provider, "error", err)
		return fmt.Sprintf("Error processing with %s: %v", s.provider, err)
	}
	return result
}
