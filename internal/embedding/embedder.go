// Package embedding selects the Embedding Provider from configuration.
package embedding

import (
	"time"

	"portfolio-rag/internal/config"
	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/embedding/hashing"
	"portfolio-rag/internal/embedding/ollama"
	"portfolio-rag/internal/embedding/openai"
	"portfolio-rag/internal/errs"
)

// New builds the embedder named by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Type {
	case "ollama", "":
		emb, err := ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "ollama embedder init failed", errs.FieldProvider(cfg.Type))
		}
		return emb, nil
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   timeout,
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeProviderSetup, "openai embedder init failed", errs.FieldProvider(cfg.Type))
		}
		return client, nil
	case "hashing":
		return hashing.NewEmbedder(cfg.Dimension), nil
	default:
		return nil, errs.New(errs.CodeProviderSetup, "unknown embedder", errs.FieldProvider(cfg.Type))
	}
}
