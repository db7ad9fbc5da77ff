package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deevcs/dee/pkg/repo"
)

func newPushCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "push [remote_id]",
		Short: "Upload HEAD's history as a bundle (default remote: the linked one)",
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
			res, err := sess.Client.Push(cmd.Context(), remoteID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s (%s) to %s\nbundle %s\n",
				res.Bundle.Branch, shortHash(res.Bundle.Commit), res.Remote.Name, res.Bundle.ContentHash)
			return nil
		},
	}
}
