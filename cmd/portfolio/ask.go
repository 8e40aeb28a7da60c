package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"portfolio-rag/internal/domain"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the portfolio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(true)
			if err != nil {
				return err
			}
			if _, err := sess.EnsureCurrent(cmd.Context(), false); err != nil {
				return err
			}
			res, err := sess.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, strings.TrimSpace(res.Answer))
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "Sources:")
			printResults(out, res.Sources)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List the companies nearest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("k")
			sess, err := a.session(false)
			if err != nil {
				return err
			}
			if _, err := sess.EnsureCurrent(cmd.Context(), false); err != nil {
				return err
			}
			res, err := sess.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntP("k", "k", 5, "number of results")
	return cmd
}

func printResults(out io.Writer, results []domain.SearchResult) {
	for i, r := range results {
		_, _ = fmt.Fprintf(out, "%d. %s (score %.3f)\n", i+1, r.Document.Tags.Company, r.Score)
	}
}
