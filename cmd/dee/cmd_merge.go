package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <source> [target]",
		Short: "Fast-forward target (default: current branch) to source",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			res, err := r.Merge(args[0], target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.UpToDate {
				fmt.Fprintf(out, "%s already up to date with %s\n", res.Target, res.Source)
				return nil
			}
			fmt.Fprintf(out, "fast-forward %s: %s..%s\n", res.Target, shortHash(res.From), shortHash(res.To))
			return nil
		},
	}
}
