package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-rag/internal/indexer"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Bring the vector index up to date",
		Long: "Reuse, rebuild or merge the persisted index so it reflects the portfolio file.\n" +
			"A portfolio changed since the last build is always rebuilt, except that --merge-new\n" +
			"only embeds companies appended since then when nothing else changed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, a)
		},
	}
	cmd.Flags().Bool("rebuild", false, "re-embed every company")
	cmd.Flags().Bool("merge-new", false, "embed only companies not yet indexed")
	cmd.MarkFlagsMutuallyExclusive("rebuild", "merge-new")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app) error {
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	mergeNew, _ := cmd.Flags().GetBool("merge-new")

	sess, err := a.session(false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	var outcome indexer.Outcome
	switch {
	case rebuild:
		outcome, err = sess.Rebuild(ctx)
	case mergeNew:
		outcome, err = sess.MergeNew(ctx)
	default:
		outcome, err = sess.EnsureCurrent(ctx, false)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outcome == indexer.OutcomeEmpty {
		_, _ = fmt.Fprintln(out, "Portfolio is empty, nothing to index.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Index %s: %d companies.\n", outcome, sess.Index().Len())
	return nil
}
