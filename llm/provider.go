// Package llm defines the capability interface for the external language
// model collaborator and its OpenAI-compatible HTTP implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports a transport failure the retry policy could not
// recover from: connection errors and retryable HTTP statuses that
// persisted through every attempt.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Provider is the interface for LLM chat interactions. Implementations must
// honor context cancellation; no internal deadline is imposed, callers wrap
// the context with a timeout as needed.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider endpoint.
type Config struct {
	Provider string `env:"PROVIDER" yaml:"provider" json:"provider"` // ollama, openai, openrouter, custom
	Model    string `env:"MODEL" yaml:"model" json:"model"`
	BaseURL  string `env:"BASE_URL" yaml:"base_url" json:"base_url"`
	APIKey   string `env:"API_KEY" yaml:"api_key" json:"api_key"`
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
