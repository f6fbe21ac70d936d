package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/metrics"
)

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	deepseekBaseURL = "https://api.deepseek.com/v1"
)

// ObservationStop ends a completion before the model invents a tool result.
const ObservationStop = "\nObservation:"

// Generator produces one text completion for a message list.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []*schema.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	return f(ctx, messages)
}

// ChatGenerator drives an eino chat model with deterministic sampling.
type ChatGenerator struct {
	model       model.BaseChatModel
	temperature float32
	stop        []string
}

func NewChatGenerator(m model.BaseChatModel, temperature float32, stop ...string) *ChatGenerator {
	return &ChatGenerator{model: m, temperature: temperature, stop: stop}
}

func (g *ChatGenerator) Generate(ctx context.Context, messages []*schema.Message) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGenerate(start, err) }()

	opts := []model.Option{model.WithTemperature(g.temperature)}
	if len(g.stop) > 0 {
		opts = append(opts, model.WithStop(g.stop))
	}

	msg, err := g.model.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if msg == nil {
		return "", errors.New("chat model returned no message")
	}
	return msg.Content, nil
}

// NewChatModel builds the chat model for the configured provider. Groq and
// OpenAI share the OpenAI-compatible client.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey())
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", config.ErrMissingAPIKey, cfg.APIKeyEnv())
	}

	switch cfg.LLMProvider {
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := cfg.BackendURL
		if baseURL == "" && cfg.LLMProvider == config.ProviderGroq {
			baseURL = groqBaseURL
		}
		var maxTokens *int
		if cfg.LLMMaxTokens > 0 {
			mt := cfg.LLMMaxTokens
			maxTokens = &mt
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   baseURL,
			APIKey:    apiKey,
			Model:     cfg.LLMModel,
			MaxTokens: maxTokens,
			Timeout:   cfg.LLMTimeout,
		})
	case config.ProviderDeepSeek:
		baseURL := cfg.BackendURL
		if baseURL == "" {
			baseURL = deepseekBaseURL
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    apiKey,
			BaseURL:   baseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   cfg.LLMTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedProvider, cfg.LLMProvider)
	}
}

// NewGenerator builds the configured chat model and wraps it for the
// reasoning loop.
func NewGenerator(ctx context.Context, cfg *config.Config) (*ChatGenerator, error) {
	m, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatGenerator(m, cfg.LLMTemperature, ObservationStop), nil
}
