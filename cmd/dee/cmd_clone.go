package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCloneCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <bundle_ref> [target]",
		Short: "Create a repository from a pushed bundle",
		Long: "Create <target>/<remote name> from the bundle whose content hash is bundle_ref.\n" +
			"A trailing .bundle suffix is accepted.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 2 {
				target = args[1]
			}
			sess, err := openRemote(v, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			r, err := sess.Client.Clone(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned into %s\n", r.RootDir)
			return nil
		},
	}
}
