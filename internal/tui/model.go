package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
)

// Asker is the chat-facing subset of a session.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.QueryResult, error)
}

type answerMsg struct {
	question string
	result   domain.QueryResult
	err      error
}

// Model is the Bubble Tea model of the portfolio chat. One question is in
// flight at a time; input is refused while busy.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	result   domain.QueryResult
	question string
	summary  string
	status   string
	cursor   int
	busy     bool
	ready    bool
}

// New creates a chat model. summary is shown under the title.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your portfolio and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, asker: asker, input: ti, viewport: vp, summary: summary, status: "Ready. Ctrl+C to quit."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Busy reports whether a question is being answered.
func (m Model) Busy() bool { return m.busy }

// Result is the last answer received.
func (m Model) Result() domain.QueryResult { return m.result }

func (m Model) Status() string { return m.status }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // title and summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + describe(msg.err)
			m.result = domain.QueryResult{}
		} else {
			m.status = fmt.Sprintf("Answered %q from %d source(s). Up/Down browses sources.", msg.question, len(msg.result.Sources))
			m.result = msg.result
			m.question = msg.question
			m.input.SetValue("")
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "down":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case "up":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		res, err := asker.Ask(ctx, question)
		return answerMsg{question: question, result: res, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Portfolio Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.result.Answer == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(m.result.Answer)
	if len(m.result.Sources) > 0 {
		s := m.result.Sources[m.cursor]
		b.WriteString("\n\n")
		b.WriteString(sourceTitleStyle.Render(fmt.Sprintf("Source %d/%d  %s  score=%.3f",
			m.cursor+1, len(m.result.Sources), s.Document.Tags.Company, s.Score)))
		b.WriteString("\n")
		b.WriteString(highlightBestLine(s.Document.Content, m.question))
	}
	return b.String()
}

func describe(err error) string {
	switch {
	case errs.IsIndexNotReady(err):
		return "the portfolio is empty, add a company first"
	case errs.IsAnswerGenerationFailed(err):
		return "the language model did not answer: " + err.Error()
	default:
		return err.Error()
	}
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightBestLine emphasises the document line sharing most words with
// the question.
func highlightBestLine(text, query string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(lines, "\n")
	}
	bestIdx, bestScore := -1, 0
	for i, l := range lines {
		if score := tokenOverlapScore(qTokens, l); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestIdx >= 0 {
		lines[bestIdx] = highlightStyle.Render(lines[bestIdx])
	}
	return strings.Join(lines, "\n")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, line string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(line), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
