package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2:3b"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Ollama embedder.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Embedder generates embeddings through langchaingo's Ollama client.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	timeout  time.Duration
}

// NewEmbedder creates an Ollama embedder. No request is made until the
// first Embed call, so an unreachable server surfaces there.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	llm, err := lcollama.New(
		lcollama.WithServerURL(cfg.BaseURL),
		lcollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Embedder{embedder: emb, model: cfg.Model, timeout: cfg.Timeout}, nil
}

func (e *Embedder) Name() string { return "ollama:" + e.model }

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("ollama embed: empty vector")
	}
	return vec, nil
}
