package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2:3b"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTimeout     = 120 * time.Second
)

// ChainModel completes prompts through a langchaingo model.
type ChainModel struct {
	llm         llms.Model
	name        string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func (m *ChainModel) Name() string { return m.name }

// Complete sends prompt as a single user turn. There is no retry.
func (m *ChainModel) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := []llms.CallOption{llms.WithTemperature(m.temperature)}
	if m.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.name, err)
	}
	return out, nil
}

// OllamaConfig configures a local Ollama model.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func NewOllama(cfg OllamaConfig) (*ChainModel, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	llm, err := ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &ChainModel{
		llm:         llm,
		name:        "ollama:" + cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     orDefault(cfg.Timeout),
	}, nil
}

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func NewOpenAI(cfg OpenAIConfig) (*ChainModel, error) {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &ChainModel{
		llm:         llm,
		name:        "openai:" + cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     orDefault(cfg.Timeout),
	}, nil
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
