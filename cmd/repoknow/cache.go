package main

import (
	"errors"
	"fmt"

	"repoknow/internal/pipeline"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local analysis cache",
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [path]",
		Short: "Remove cached analyses of a repository, or all of them with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give either a repository path or --all")
			}
			c, err := a.analysisCache()
			if err != nil {
				return err
			}

			var removed int
			if all {
				removed, err = c.Clear()
			} else {
				root, absErr := pipeline.ResolveRoot(args[0])
				if absErr != nil {
					return absErr
				}
				removed, err = c.ClearPath(root)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached analyses\n", removed)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "remove every cached analysis")

	cmd.AddCommand(clearCmd)
	return cmd
}
