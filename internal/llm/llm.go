// Package llm generates narrative text with an OpenAI-compatible chat
// completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/vk/assetgraph/internal/ctxlog"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4o-mini"
	// SystemPrompt frames every request.
	SystemPrompt = "You are a helpful financial analyst assistant."
	// Temperature keeps answers close to the supplied figures.
	Temperature = 0.3
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("LLM client is not configured (set OPENAI_API_KEY)")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures an OpenAI client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAI is a Generator backed by the Chat Completions API.
type OpenAI struct {
	client     openai.Client
	model      string
	configured bool
}

// New creates an OpenAI generator. Without an API key every call fails with
// ErrNotConfigured.
func New(cfg Config) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		configured: cfg.APIKey != "",
	}
}

// Model returns the model name requests are sent to.
func (o *OpenAI) Model() string {
	return o.model
}

// Generate sends prompt with the analyst system prompt and returns the
// trimmed reply.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if !o.configured {
		return "", ErrNotConfigured
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Calling LLM.", "model", o.model)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("LLM call to %s failed: %w", o.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM call to %s returned no choices", o.model)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.Info("LLM call succeeded.", "model", o.model, "length", len(content))
	return content, nil
}
