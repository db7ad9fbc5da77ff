package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/diff"
	"github.com/deevcs/dee/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	var nameStatus bool
	var context int

	cmd := &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show changes between HEAD and the index, or between two refs",
		Long: "With no arguments, compare HEAD with the staged index.\n" +
			"With one ref, compare it with the staged index; with two, compare the two snapshots.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			var from, to string
			if len(args) > 0 {
				from = args[0]
			}
			if len(args) > 1 {
				to = args[1]
			}
			changes, err := r.Diff(from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if nameStatus {
				return diff.FormatSummary(out, changes)
			}
			for _, c := range changes {
				var before, after []byte
				if c.Before != nil {
					if before, err = r.ReadBlob(c.Before.Hash); err != nil {
						return err
					}
				}
				if c.After != nil {
					if after, err = r.ReadBlob(c.After.Hash); err != nil {
						return err
					}
				}
				if c.ModeOnly() {
					fmt.Fprintf(out, "mode %s: %o -> %o\n", c.Path, c.Before.Mode, c.After.Mode)
					continue
				}
				if err := diff.Unified(out, c.Path, before, after, context); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "list changed paths with A/M/D status only")
	cmd.Flags().IntVarP(&context, "unified", "U", diff.DefaultContext, "lines of context around each change")
	return cmd
}
