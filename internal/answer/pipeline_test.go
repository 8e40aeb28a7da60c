package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/answer"
	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/embedding/hashing"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/metrics"
	"portfolio-rag/internal/projector"
	"portfolio-rag/internal/vectorstore"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func buildIndex(t *testing.T, recs ...domain.ProfileRecord) *vectorstore.Index {
	t.Helper()
	idx, err := vectorstore.Build(context.Background(), hashing.NewEmbedder(256), projector.New("").ProjectAll(recs))
	require.NoError(t, err)
	return idx
}

var portfolio = []domain.ProfileRecord{
	{CompanyName: "Acme", Summary: "Forges anvils and rocket skates"},
	{CompanyName: "Globex", Summary: "Energy utility running nuclear plants", Comments: "[2025-02-01 09:00] contacted"},
	{CompanyName: "Initech", Summary: "Banking software vendor"},
	{CompanyName: "Umbrella", Summary: "Pharmaceutical research laboratories"},
}

func TestAsk_GroundsPromptOnRetrievedDocuments(t *testing.T) {
	model := &fakeModel{reply: "Globex runs nuclear plants."}
	p := answer.New(model, answer.Config{Language: "English"})

	res, err := p.Ask(context.Background(), buildIndex(t, portfolio...), "  Which company runs nuclear plants?  ")
	require.NoError(t, err)

	assert.Equal(t, "Globex runs nuclear plants.", res.Answer)
	require.Len(t, res.Sources, answer.DefaultTopK)
	assert.Equal(t, "Globex", res.Sources[0].Document.Tags.Company)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Question: Which company runs nuclear plants?\n")
	assert.Contains(t, prompt, "Always answer in English")
	for _, s := range res.Sources {
		assert.Contains(t, prompt, s.Document.Content)
	}
	assert.NotContains(t, prompt, "{{")
}

func TestAsk_KNeverExceedsIndexSize(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	p := answer.New(model, answer.Config{TopK: 10})

	res, err := p.Ask(context.Background(), buildIndex(t, portfolio[0]), "anvils")
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "Acme", res.Sources[0].Document.Tags.Company)
	assert.Contains(t, model.prompts[0], "Always answer in French")
}

func TestAsk_NotReady(t *testing.T) {
	reg := prometheus.NewRegistry()
	model := &fakeModel{reply: "should not be called"}
	p := answer.New(model, answer.Config{}, answer.WithMetrics(metrics.NewRecorder(reg)))

	_, err := p.Ask(context.Background(), nil, "anything")
	require.Error(t, err)
	assert.True(t, errs.IsIndexNotReady(err))

	empty, buildErr := vectorstore.Build(context.Background(), hashing.NewEmbedder(64), nil)
	require.NoError(t, buildErr)
	res, err := p.Ask(context.Background(), empty, "anything")
	assert.True(t, errs.IsIndexNotReady(err))
	assert.Empty(t, res.Answer)
	assert.Empty(t, model.prompts)

	assert.Equal(t, 2.0, counterValue(t, reg, "portfolio_rag_asks_total", "not_ready"))
}

func TestAsk_ModelFailureIsSurfaced(t *testing.T) {
	model := &fakeModel{err: errors.New("context deadline exceeded")}
	p := answer.New(model, answer.Config{})

	res, err := p.Ask(context.Background(), buildIndex(t, portfolio...), "anvils")
	require.Error(t, err)
	assert.True(t, errs.IsAnswerGenerationFailed(err))
	assert.Empty(t, res.Answer)
	assert.Len(t, model.prompts, 1, "no retry")
}

func TestAsk_EmptyCompletionIsFailure(t *testing.T) {
	p := answer.New(&fakeModel{reply: "  \n"}, answer.Config{})

	_, err := p.Ask(context.Background(), buildIndex(t, portfolio...), "anvils")
	assert.True(t, errs.IsAnswerGenerationFailed(err))
}

func TestAsk_EmptyQuestion(t *testing.T) {
	_, err := answer.New(&fakeModel{}, answer.Config{}).Ask(context.Background(), buildIndex(t, portfolio...), " ")
	assert.True(t, errs.HasCode(err, errs.CodeInvalidInput))
}

func TestSearch(t *testing.T) {
	p := answer.New(&fakeModel{}, answer.Config{})

	_, err := p.Search(context.Background(), nil, "x", 2)
	assert.True(t, errs.IsIndexNotReady(err))

	res, err := p.Search(context.Background(), buildIndex(t, portfolio...), "pharmaceutical laboratories", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Umbrella", res[0].Document.Tags.Company)
}

func TestBuildPrompt_JoinsContext(t *testing.T) {
	p := answer.New(&fakeModel{}, answer.Config{Language: "German"})
	prompt, err := p.BuildPrompt([]domain.SearchResult{
		{Document: domain.Document{Content: "first"}},
		{Document: domain.Document{Content: "second"}},
	}, "q?")
	require.NoError(t, err)
	assert.True(t, strings.Contains(prompt, "Context:\nfirst\n\nsecond\n"))
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
