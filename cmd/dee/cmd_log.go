package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deevcs/dee/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show first-parent history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}
			start, err := r.ResolveRef(ref)
			if err != nil {
				return err
			}
			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, e := range entries {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				if len(e.Commit.Parents) > 1 {
					parents := make([]string, len(e.Commit.Parents))
					for j, p := range e.Commit.Parents {
						parents[j] = shortHash(p)
					}
					fmt.Fprintf(out, "Merge: %s\n", strings.Join(parents, " "))
				}
				fmt.Fprintf(out, "Date:  %s\n", time.Unix(e.Commit.Timestamp, 0).Format(time.RFC1123Z))
				fmt.Fprintf(out, "Files: %d\n\n", len(e.Commit.Files))
				for _, line := range strings.Split(e.Commit.Message, "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits (0 = all)")
	return cmd
}
