// Package llm is askdb's boundary to a language model: one request, one
// text reply. Providers are hidden behind Client so the agent loop can be
// driven by a scripted fake in tests.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
)

// Role is the author of a message in a request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a complete prompt: a system instruction and the conversation.
type Request struct {
	System   string
	Messages []Message
}

// Client completes a request. Implementations must honour ctx and return
// *errs.Error values of kind ErrKindModelFailed or ErrKindTimeout.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Provider selects the model API.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const (
	DefaultBaseURL   = "https://models.github.ai/inference"
	DefaultModel     = "openai/gpt-4o"
	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 2048
)

// Config selects and tunes a provider.
type Config struct {
	Provider  Provider      `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int64         `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"` // per call
	Retries   int           `yaml:"retries"` // extra attempts after the first
}

// DefaultConfig matches the GitHub Models endpoint with gpt-4o.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderOpenAI,
		BaseURL:   DefaultBaseURL,
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
		Retries:   1,
	}
}

// Validate rejects configs that could never make a successful call. A
// missing key is a startup error, not something to discover per question.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown model provider %q: use openai or anthropic", c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errs.New(errs.ErrKindInvalidInput, "model API key is not set (OPENAI_API_KEY or ASKDB_API_KEY)")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errs.New(errs.ErrKindInvalidInput, "model name is not set (OPENAI_MODEL or ASKDB_MODEL)")
	}
	if c.Provider == ProviderOpenAI && strings.TrimSpace(c.BaseURL) == "" {
		return errs.New(errs.ErrKindInvalidInput, "model API base URL is not set (OPENAI_API_BASE or ASKDB_API_BASE)")
	}
	if c.Timeout < 0 || c.Retries < 0 {
		return errs.New(errs.ErrKindInvalidInput, "model timeout and retries must not be negative")
	}
	return nil
}

// New builds the configured provider wrapped with the timeout and retry
// policy.
func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	var c Client
	switch cfg.Provider {
	case ProviderAnthropic:
		c = NewAnthropic(cfg)
	default:
		c = NewOpenAI(cfg)
	}
	return WithRetry(c, RetryConfig{Timeout: cfg.Timeout, Retries: cfg.Retries}), nil
}
