// Package llm builds the language model used to phrase answers.
package llm

import (
	"fmt"
	"os"
	"time"

	"portfolio-rag/internal/config"
	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
)

// New builds the model named by cfg.Type. API keys are read from the
// environment variable named by cfg.APIKeyEnv.
func New(cfg config.LLMConfig) (domain.LanguageModel, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Type {
	case "ollama", "":
		m, err := NewOllama(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "ollama model init failed", errs.FieldProvider("ollama"))
		}
		return m, nil
	case "openai":
		key, err := apiKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "openai model init failed", errs.FieldProvider("openai"))
		}
		m, err := NewOpenAI(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      key,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "openai model init failed", errs.FieldProvider("openai"))
		}
		return m, nil
	case "anthropic":
		key, err := apiKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "anthropic model init failed", errs.FieldProvider("anthropic"))
		}
		m, err := NewAnthropic(AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      key,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "anthropic model init failed", errs.FieldProvider("anthropic"))
		}
		return m, nil
	default:
		return nil, errs.New(errs.CodeProviderSetup, "unknown llm", errs.FieldProvider(cfg.Type))
	}
}

func apiKey(env string) (string, error) {
	if env == "" {
		return "", fmt.Errorf("api_key_env is not set")
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is empty", env)
	}
	return key, nil
}
