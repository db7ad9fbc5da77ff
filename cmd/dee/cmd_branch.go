package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch bool

	cmd := &cobra.Command{
		Use:   "branch <name> [start]",
		Short: "Create a branch at start (default HEAD), or delete one with -d",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if deleteBranch {
				if len(args) != 1 {
					return fmt.Errorf("branch -d takes exactly one name")
				}
				if err := r.DeleteBranch(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch %s\n", args[0])
				return nil
			}

			start := ""
			if len(args) == 2 {
				start = args[1]
			}
			h, err := r.CreateBranch(args[0], start)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created branch %s at %s\n", args[0], shortHash(h))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&deleteBranch, "delete", "d", false, "delete the named branch")
	return cmd
}

func newBranchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}
}
