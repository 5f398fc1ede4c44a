package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repoknow/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.configPath
			if p == "" {
				var err error
				if p, err = config.ConfigPath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, exists := config.FindConfigFile()
			if a.configPath != "" {
				p = a.configPath
				_, err := os.Stat(p)
				exists = err == nil
			}
			if exists && !force {
				return fmt.Errorf("config file %s already exists; use --force to overwrite", p)
			}
			cfg := config.DefaultConfig()
			if err := cfg.SaveTo(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd.AddCommand(path, initCmd)
	return cmd
}
