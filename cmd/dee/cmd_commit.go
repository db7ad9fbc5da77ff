package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit <message>",
		Short: "Record staged changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if message != "" {
					return fmt.Errorf("give the message either as an argument or with -m, not both")
				}
				message = args[0]
			}
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("commit message is required")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			h, err := r.Commit(message)
			if err != nil {
				return err
			}

			branch, _ := r.CurrentBranch()
			if branch == "" {
				branch = "detached HEAD"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortHash(h), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
