package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"portfolio-rag/internal/errs"
)

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <company>",
		Short: "Add a company and merge it into the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, _ := cmd.Flags().GetString("summary")
			comment, _ := cmd.Flags().GetString("comment")
			sess, err := a.session(false)
			if err != nil {
				return err
			}
			added, outcome, err := sess.AddCompany(cmd.Context(), args[0], summary, comment)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !added {
				_, _ = fmt.Fprintf(out, "%s is already in the portfolio.\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintf(out, "Added %s (index %s).\n", args[0], outcome)
			return nil
		},
	}
	cmd.Flags().StringP("summary", "s", "", "company summary")
	cmd.Flags().String("comment", "", "initial comment")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func newCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <company> <text>",
		Short: "Append a timestamped comment to a company",
		Long:  "Append a timestamped comment. The index reflects it after the next rebuild.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(false)
			if err != nil {
				return err
			}
			ok, err := sess.AddComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if !ok {
				return errs.New(errs.CodeRecordsNotFound, "company not found", errs.FieldCompany(args[0]))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Comment added to %s.\n", args[0])
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the companies with their last comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(false)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			names, err := sess.Companies(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(out, "Portfolio is empty.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "COMPANY\tLAST COMMENT")
			for _, name := range names {
				last, err := sess.LastComment(ctx, name)
				if err != nil {
					return err
				}
				if last == "" {
					last = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, last)
			}
			return w.Flush()
		},
	}
}
