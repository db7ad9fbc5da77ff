package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [files...]",
		Short: "Stage files for the next commit (everything when no files are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			report, err := r.Add(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range report.Staged {
				fmt.Fprintf(out, "staged %s\n", p)
			}
			if !report.Changed() {
				fmt.Fprintln(out, "nothing new to stage")
			}
			return nil
		},
	}
}
