package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"lecturemate/llm"
)

const (
	// DefaultGeminiModel is used when no Gemini model name is configured
	DefaultGeminiModel = "gemini-flash-latest"
	// DefaultOpenAIModel is used when no OpenAI model name is configured
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultTimeout bounds a single model call
	DefaultTimeout = 5 * time.Minute
)

var (
	// ErrExtractOnly is returned by New for the extract_only provider, which never calls a model.
	ErrExtractOnly = errors.New("extract_only provider does not generate text")
	// ErrMissingAPIKey is returned when a model provider is selected without a key.
	ErrMissingAPIKey = errors.New("API key is required")
)

// Generator produces a completion for a single prompt. Every model call site in
// the application goes through this interface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Tunable is implemented by generators that can be copied with a different
// sampling temperature.
type Tunable interface {
	WithTemperature(t float32) Generator
}

// WithTemperature returns g tuned to t when g supports it, or g unchanged.
func WithTemperature(g Generator, t float32) Generator {
	if tg, ok := g.(Tunable); ok {
		return tg.WithTemperature(t)
	}
	return g
}

// Config defines the configuration for creating a generator.
type Config struct {
	Provider llm.Provider
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// New creates the generator for cfg.Provider. Credentials are only passed through.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch cfg.Provider {
	case llm.ProviderExtractOnly:
		return nil, ErrExtractOnly
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		chat model.BaseChatModel
		err  error
	)
	if cfg.Provider == llm.ProviderGemini {
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		chat, err = newGeminiModel(ctx, cfg)
	} else {
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		chat, err = newOpenAIModel(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("provider", string(cfg.Provider)).
		Str("model", cfg.Model).
		Str("api_key", MaskAPIKey(cfg.APIKey)).
		Msg("chat model ready")

	return NewChatGenerator(chat, string(cfg.Provider)), nil
}

// ChatGenerator adapts an eino chat model to Generator.
type ChatGenerator struct {
	model model.BaseChatModel
	name  string
	opts  []model.Option
}

// NewChatGenerator wraps m; opts are passed to every Generate call.
func NewChatGenerator(m model.BaseChatModel, name string, opts ...model.Option) *ChatGenerator {
	return &ChatGenerator{model: m, name: name, opts: opts}
}

// Generate sends prompt as a single user message and returns the reply text.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, g.opts...)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", g.name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s generate: empty response", g.name)
	}
	return resp.Content, nil
}

// WithTemperature returns a copy that samples at temperature t.
func (g *ChatGenerator) WithTemperature(t float32) Generator {
	opts := make([]model.Option, 0, len(g.opts)+1)
	opts = append(opts, g.opts...)
	opts = append(opts, model.WithTemperature(t))
	return &ChatGenerator{model: g.model, name: g.name, opts: opts}
}

// MaskAPIKey hides all but the first and last four characters of a key. Keys
// shorter than ten characters are returned unchanged.
func MaskAPIKey(key string) string {
	if len(key) < 10 {
		return key
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
