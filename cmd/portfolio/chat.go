package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"portfolio-rag/internal/indexer"
	"portfolio-rag/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive portfolio chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(true)
			if err != nil {
				return err
			}
			outcome, err := sess.EnsureCurrent(cmd.Context(), false)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d companies indexed (%s)", sess.Index().Len(), outcome)
			if outcome == indexer.OutcomeEmpty {
				summary = "Portfolio is empty"
			}
			m := tui.New(cmd.Context(), sess, summary)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
