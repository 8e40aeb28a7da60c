// Package service wires the record source, the indexing controller and the
// answering pipeline into one session object.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"portfolio-rag/internal/answer"
	"portfolio-rag/internal/config"
	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/embedding"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/indexer"
	"portfolio-rag/internal/llm"
	"portfolio-rag/internal/metrics"
	"portfolio-rag/internal/records"
	"portfolio-rag/internal/vectorstore"
)

// Session owns one controller and one pipeline. Construct it once per CLI
// command or chat session and drop it afterwards; it is not safe for
// concurrent use.
type Session struct {
	store    *records.Store
	ctrl     *indexer.Controller
	pipeline *answer.Pipeline
	logger   *zap.Logger
}

// Deps are the collaborators a session is built from. Model may be nil
// for sessions that never ask questions.
type Deps struct {
	Store    *records.Store
	Embedder domain.Embedder
	Model    domain.LanguageModel
	Logger   *zap.Logger
	Metrics  *metrics.Recorder
}

func New(deps Deps, idx indexer.Config, ans answer.Config) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		store: deps.Store,
		ctrl: indexer.New(deps.Store, deps.Embedder, idx,
			indexer.WithLogger(logger.Named("indexer")),
			indexer.WithMetrics(deps.Metrics),
		),
		logger: logger,
	}
	if deps.Model != nil {
		s.pipeline = answer.New(deps.Model, ans,
			answer.WithLogger(logger.Named("answer")),
			answer.WithMetrics(deps.Metrics),
		)
	}
	return s
}

// Open builds a session from configuration. The language model is only
// created when withModel is set, so indexing works without LLM credentials.
func Open(cfg *config.AppConfig, logger *zap.Logger, rec *metrics.Recorder, withModel bool) (*Session, error) {
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	deps := Deps{
		Store:    records.New(cfg.Data.RecordsFile),
		Embedder: emb,
		Logger:   logger,
		Metrics:  rec,
	}
	if withModel {
		if deps.Model, err = llm.New(cfg.LLM); err != nil {
			return nil, err
		}
	}
	return New(deps,
		indexer.Config{IndexDir: cfg.Data.IndexDir, Compress: cfg.Data.Compress, Source: cfg.Data.Source},
		answer.Config{TopK: cfg.Answer.TopK, Language: cfg.Answer.Language},
	), nil
}

func (s *Session) EnsureCurrent(ctx context.Context, forceRebuild bool) (indexer.Outcome, error) {
	return s.ctrl.EnsureCurrent(ctx, forceRebuild)
}

func (s *Session) Rebuild(ctx context.Context) (indexer.Outcome, error) {
	return s.ctrl.Rebuild(ctx)
}

func (s *Session) MergeNew(ctx context.Context) (indexer.Outcome, error) {
	return s.ctrl.MergeNew(ctx)
}

// Index exposes the current in-memory index; nil until an ensure call
// found records.
func (s *Session) Index() *vectorstore.Index { return s.ctrl.Index() }

// Ask answers against the current index. Callers ensure the index first.
func (s *Session) Ask(ctx context.Context, question string) (domain.QueryResult, error) {
	if s.pipeline == nil {
		return domain.QueryResult{}, errs.New(errs.CodeProviderSetup, "session has no language model")
	}
	return s.pipeline.Ask(ctx, s.ctrl.Index(), question)
}

// Search returns the k nearest documents without calling a model.
func (s *Session) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if s.ctrl.Index().Len() == 0 {
		return nil, errs.New(errs.CodeIndexNotReady, "index is not ready, ensure it is current before searching")
	}
	return s.ctrl.Index().Search(ctx, query, k)
}

// AddCompany appends a record and merges it into the index. It reports
// false, without touching the index, when the company already exists.
func (s *Session) AddCompany(ctx context.Context, name, summary, comment string) (bool, indexer.Outcome, error) {
	added, err := s.store.Add(ctx, name, summary, comment)
	if err != nil || !added {
		return added, "", err
	}
	s.logger.Info("company added", zap.String("company", name))
	outcome, err := s.ctrl.MergeNew(ctx)
	if err != nil {
		return true, "", fmt.Errorf("company saved but index not updated: %w", err)
	}
	return true, outcome, nil
}

// AddComment appends a timestamped comment. The index picks the edit up on
// its next full rebuild.
func (s *Session) AddComment(ctx context.Context, name, text string) (bool, error) {
	ok, err := s.store.AddComment(ctx, name, text)
	if err == nil && ok {
		s.logger.Info("comment added", zap.String("company", name))
	}
	return ok, err
}

func (s *Session) LastComment(ctx context.Context, name string) (string, error) {
	return s.store.LastComment(ctx, name)
}

func (s *Session) Companies(ctx context.Context) ([]string, error) {
	return s.store.Companies(ctx)
}
