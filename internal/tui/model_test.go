package tui_test

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/tui"
)

type stubAsker struct {
	questions []string
	result    domain.QueryResult
	err       error
}

func (s *stubAsker) Ask(_ context.Context, q string) (domain.QueryResult, error) {
	s.questions = append(s.questions, q)
	return s.result, s.err
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func submit(t *testing.T, m tea.Model) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestChat_AsksAndShowsAnswer(t *testing.T) {
	asker := &stubAsker{result: domain.QueryResult{
		Answer: "Acme forges anvils.",
		Sources: []domain.SearchResult{
			{Document: domain.Document{Content: "company: Acme\nsummary: anvils", Tags: domain.Tags{Company: "Acme"}}, Score: 0.9},
			{Document: domain.Document{Content: "company: Globex", Tags: domain.Tags{Company: "Globex"}}, Score: 0.2},
		},
	}}
	var m tea.Model = tui.New(context.Background(), asker, "2 companies indexed")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = typeText(t, m, "who makes anvils?")

	m, cmd := submit(t, m)
	require.NotNil(t, cmd)
	assert.True(t, m.(tui.Model).Busy())

	// Input is refused while the question is in flight.
	m2, cmd2 := submit(t, m)
	assert.Nil(t, cmd2)
	assert.True(t, m2.(tui.Model).Busy())

	m, _ = m.Update(cmd())
	chat := m.(tui.Model)
	assert.False(t, chat.Busy())
	assert.Equal(t, []string{"who makes anvils?"}, asker.questions)
	assert.Equal(t, "Acme forges anvils.", chat.Result().Answer)
	assert.Contains(t, chat.View(), "Acme forges anvils.")
	assert.Contains(t, chat.View(), "Source 1/2")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, m.View(), "Source 2/2")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Contains(t, m.View(), "Source 1/2")
}

func TestChat_ShowsErrors(t *testing.T) {
	asker := &stubAsker{err: errs.New(errs.CodeIndexNotReady, "not ready")}
	var m tea.Model = tui.New(context.Background(), asker, "")
	m = typeText(t, m, "anything")

	m, cmd := submit(t, m)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.(tui.Model).Status(), "portfolio is empty")

	asker.err = errors.New("boom")
	m = typeText(t, m, "?")
	m, cmd = submit(t, m)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.(tui.Model).Status(), "boom")
}

func TestChat_EmptyInputDoesNothing(t *testing.T) {
	var m tea.Model = tui.New(context.Background(), &stubAsker{}, "")
	m, cmd := submit(t, m)
	assert.Nil(t, cmd)
	assert.False(t, m.(tui.Model).Busy())
}
