// Package answer turns a question into a grounded answer: retrieve the
// nearest portfolio documents, then ask the language model once.
package answer

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/metrics"
	"portfolio-rag/internal/vectorstore"
)

const (
	DefaultTopK     = 3
	DefaultLanguage = "French"
)

const promptTemplate = `You are an assistant specialised in analysing a portfolio of companies.
Answer only from the context below, precisely and professionally.

Context:
{{.context}}

Question: {{.question}}

Instructions:
- If the question is about one named company, give every relevant detail about that company and no other
- If the question is general, summarise the relevant companies
- If the context does not contain the answer, say so clearly
- Always answer in {{.language}}

Answer:`

const contextSeparator = "\n\n"

// Config tunes retrieval and the prompt.
type Config struct {
	// TopK caps the number of retrieved documents.
	TopK     int
	Language string
}

// Pipeline answers questions against an index it does not own.
type Pipeline struct {
	model    domain.LanguageModel
	cfg      Config
	template prompts.PromptTemplate
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(model domain.LanguageModel, cfg Config, opts ...Option) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = DefaultLanguage
	}
	p := &Pipeline{
		model:    model,
		cfg:      cfg,
		template: prompts.NewPromptTemplate(promptTemplate, []string{"context", "question", "language"}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask retrieves up to TopK documents and asks the model once. A nil or
// empty index fails with answer.index.not_ready; a model failure or an
// empty completion fails with answer.generation.failed.
func (p *Pipeline) Ask(ctx context.Context, idx *vectorstore.Index, question string) (domain.QueryResult, error) {
	if idx.Len() == 0 {
		p.metrics.Ask("not_ready")
		return domain.QueryResult{}, errs.New(errs.CodeIndexNotReady, "index is not ready, ensure it is current before asking")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.QueryResult{}, errs.New(errs.CodeInvalidInput, "question is empty")
	}

	k := p.cfg.TopK
	if n := idx.Len(); k > n {
		k = n
	}
	sources, err := idx.Search(ctx, question, k)
	if err != nil {
		p.metrics.Ask("failed")
		return domain.QueryResult{}, err
	}

	prompt, err := p.BuildPrompt(sources, question)
	if err != nil {
		p.metrics.Ask("failed")
		return domain.QueryResult{}, errs.Wrap(err, errs.CodeAnswerGenerationFailed, "rendering prompt")
	}

	p.logger.Debug("asking language model",
		zap.String("model", p.model.Name()),
		zap.Int("sources", len(sources)),
		zap.Int("prompt_bytes", len(prompt)),
	)
	text, err := p.model.Complete(ctx, prompt)
	if err != nil {
		p.metrics.Ask("failed")
		return domain.QueryResult{}, errs.Wrap(err, errs.CodeAnswerGenerationFailed, "language model call failed",
			errs.FieldProvider(p.model.Name()))
	}
	if strings.TrimSpace(text) == "" {
		p.metrics.Ask("failed")
		return domain.QueryResult{}, errs.New(errs.CodeAnswerGenerationFailed, "language model returned an empty answer",
			errs.FieldProvider(p.model.Name()))
	}
	p.metrics.Ask("ok")
	return domain.QueryResult{Answer: text, Sources: sources}, nil
}

// Search returns raw retrieval results without calling the model.
func (p *Pipeline) Search(ctx context.Context, idx *vectorstore.Index, query string, k int) ([]domain.SearchResult, error) {
	if idx.Len() == 0 {
		return nil, errs.New(errs.CodeIndexNotReady, "index is not ready, ensure it is current before searching")
	}
	return idx.Search(ctx, query, k)
}

// BuildPrompt renders the fixed instruction around the retrieved contents
// and the verbatim question.
func (p *Pipeline) BuildPrompt(sources []domain.SearchResult, question string) (string, error) {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.Document.Content
	}
	return p.template.Format(map[string]any{
		"context":  strings.Join(parts, contextSeparator),
		"question": question,
		"language": p.cfg.Language,
	})
}
