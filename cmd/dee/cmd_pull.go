package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deevcs/dee/pkg/repo"
)

func newPullCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote_id]",
		Short: "Fetch the latest bundle of the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			sess, err := openRemote(v, r)
			if err != nil {
				return err
			}
			defer sess.Close()

			remoteID := ""
			if len(args) == 1 {
				remoteID = args[0]
			}
			res, err := sess.Client.Pull(cmd.Context(), remoteID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.UpToDate {
				fmt.Fprintf(out, "%s already up to date\n", res.Branch)
				return nil
			}
			fmt.Fprintf(out, "updated %s to %s from %s\n", res.Branch, shortHash(res.Commit), res.Remote.Name)
			return nil
		},
	}
}
