package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newRebaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebase <branch> <onto>",
		Short: "Replay the commits of branch on top of onto",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			res, err := r.Rebase(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.UpToDate:
				fmt.Fprintf(out, "%s already contains %s\n", res.Branch, res.Onto)
			case res.FastForward:
				fmt.Fprintf(out, "fast-forward %s to %s (%s)\n", res.Branch, res.Onto, shortHash(res.To))
			default:
				fmt.Fprintf(out, "replayed %d commit(s) of %s onto %s, now at %s\n",
					len(res.Replayed), res.Branch, res.Onto, shortHash(res.To))
			}
			return nil
		},
	}
}
