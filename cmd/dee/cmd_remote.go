package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRemoteCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage repositories in the shared registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Register a new remote repository and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(v)
			if err != nil {
				return err
			}
			defer reg.Close()

			rr, err := reg.CreateRepository(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rr.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remote repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(v)
			if err != nil {
				return err
			}
			defer reg.Close()

			repos, err := reg.Repositories(cmd.Context())
			if err != nil {
				return err
			}
			for _, rr := range repos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rr.ID, rr.Name)
			}
			return nil
		},
	})
	return cmd
}
