package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"checkpoint", "cp"},
		Short:   "Inspect and remove analysis checkpoints",
	}

	var path string
	list := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			all, err := p.Checkpoints(path)
			if err != nil {
				return err
			}
			writeCheckpoints(cmd.OutOrStdout(), all)
			return nil
		},
	}
	list.Flags().StringVar(&path, "path", "", "only checkpoints of this repository path")

	show := &cobra.Command{
		Use:   "show <checkpoint-id>",
		Short: "Show step progress and recorded errors of a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			report, err := p.Progress(args[0])
			if err != nil {
				return err
			}
			writeProgress(cmd.OutOrStdout(), report)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "delete <checkpoint-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete checkpoints; saved knowledge base records are kept",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.checkpoints()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := store.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoint %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}
