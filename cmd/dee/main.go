package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/update"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.11"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "dee",
		Short:         "Lightweight version control with bundle-based sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetOutput(cmd.ErrOrStderr())
			logging.SetVerbose(false)
			if lvl := v.GetString(keyLogLevel); lvl != "" {
				if err := logging.SetLevel(lvl); err != nil {
					return fmt.Errorf("--log-level: %w", err)
				}
			}
			if v.GetBool(keyVerbose) {
				logging.SetVerbose(true)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			update.Notify(cmd.Context(), cmd.ErrOrStderr(), v.GetString(keyUpdateURL), version)
		},
	}
	bindSettings(root, v)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newBranchesCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newRebaseCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newPushCmd(v))
	root.AddCommand(newPullCmd(v))
	root.AddCommand(newCloneCmd(v))
	root.AddCommand(newRemoteCmd(v))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dee %s\n", version)
		},
	}
}
