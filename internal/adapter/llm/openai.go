package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"vaultrag/config"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint
// (OpenAI itself, or Ollama's /v1).
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

var _ port.Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(cfg config.GenerationConfig) *OpenAIGenerator {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		apiKey = "local"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

// SystemPrompt frames every generation request.
const SystemPrompt = "You answer questions about the user's personal knowledge vault. " +
	"Use only the supplied vault context, cite sources as [Source: name], " +
	"and say plainly when something is not documented."

// EchoGenerator returns a canned answer that cites the first source found in
// the prompt. Used for offline runs and tests.
type EchoGenerator struct{}

func (EchoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if i := strings.Index(prompt, "[Source: "); i >= 0 {
		if j := strings.Index(prompt[i:], "]"); j > 0 {
			return "Based on your vault " + prompt[i:i+j+1], nil
		}
	}
	return "I don't see that documented in your vault.", nil
}

func (EchoGenerator) ModelName() string { return "echo" }

// New builds the configured generator.
func New(cfg config.GenerationConfig) (port.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	case "mock":
		return EchoGenerator{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
}
