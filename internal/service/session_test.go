package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/answer"
	"portfolio-rag/internal/config"
	"portfolio-rag/internal/embedding/hashing"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/indexer"
	"portfolio-rag/internal/records"
	"portfolio-rag/internal/service"
)

type echoModel struct{ calls int }

func (m *echoModel) Name() string { return "echo" }

func (m *echoModel) Complete(context.Context, string) (string, error) {
	m.calls++
	return "answer", nil
}

func newSession(t *testing.T, model *echoModel) (*service.Session, *records.Store) {
	t.Helper()
	dir := t.TempDir()
	store := records.New(filepath.Join(dir, "portfolio.csv"))
	deps := service.Deps{Store: store, Embedder: hashing.NewEmbedder(256)}
	if model != nil {
		deps.Model = model
	}
	s := service.New(deps, indexer.Config{IndexDir: filepath.Join(dir, "index")}, answer.Config{})
	return s, store
}

func TestSession_EmptyPortfolio(t *testing.T) {
	s, _ := newSession(t, &echoModel{})
	ctx := context.Background()

	outcome, err := s.EnsureCurrent(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, indexer.OutcomeEmpty, outcome)

	_, err = s.Ask(ctx, "anything")
	require.Error(t, err)
	assert.True(t, errs.IsIndexNotReady(err))

	_, err = s.Search(ctx, "anything", 3)
	assert.True(t, errs.IsIndexNotReady(err))
}

func TestSession_AddCompanyMergesIntoIndex(t *testing.T) {
	model := &echoModel{}
	s, store := newSession(t, model)
	ctx := context.Background()

	added, outcome, err := s.AddCompany(ctx, "Acme", "Forges anvils", "")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, indexer.OutcomeRebuilt, outcome)

	// Keep the second write visibly newer than the first.
	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	past := info.ModTime().Add(-time.Minute)
	require.NoError(t, os.Chtimes(store.Path(), past, past))
	_, err = s.EnsureCurrent(ctx, true)
	require.NoError(t, err)

	added, outcome, err = s.AddCompany(ctx, "Globex", "Nuclear energy utility", "first call")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, indexer.OutcomeMerged, outcome)
	assert.Equal(t, 2, s.Index().Len())

	added, _, err = s.AddCompany(ctx, "globex", "dup", "")
	require.NoError(t, err)
	assert.False(t, added)

	res, err := s.Ask(ctx, "nuclear energy")
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Answer)
	assert.Equal(t, "Globex", res.Sources[0].Document.Tags.Company)
	assert.Equal(t, 1, model.calls)

	names, err := s.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, names)
}

func TestSession_AddComment(t *testing.T) {
	s, _ := newSession(t, nil)
	ctx := context.Background()
	_, _, err := s.AddCompany(ctx, "Acme", "Forges anvils", "")
	require.NoError(t, err)

	ok, err := s.AddComment(ctx, "ACME", "meeting booked")
	require.NoError(t, err)
	assert.True(t, ok)

	last, err := s.LastComment(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "meeting booked", last)

	ok, err = s.AddComment(ctx, "Nobody", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_AskWithoutModel(t *testing.T) {
	s, _ := newSession(t, nil)
	_, err := s.Ask(context.Background(), "q")
	assert.True(t, errs.HasCode(err, errs.CodeProviderSetup))
}

func TestOpen_HashingWithoutModel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.RecordsFile = filepath.Join(dir, "p.csv")
	cfg.Data.IndexDir = filepath.Join(dir, "idx")
	cfg.Embedder.Type = "hashing"

	s, err := service.Open(cfg, nil, nil, false)
	require.NoError(t, err)
	outcome, err := s.EnsureCurrent(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, indexer.OutcomeEmpty, outcome)
}
