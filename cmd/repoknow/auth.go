package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"repoknow/internal/config"
	"repoknow/internal/credentials"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the knowledge API token",
		Long: `Manage the bearer token sent to the knowledge API. The token is kept in the OS
credential store. ` + config.APITokenEnv + ` takes precedence when set.`,
	}

	setToken := &cobra.Command{
		Use:   "set-token [token]",
		Short: "Store the API token in the OS credential store",
		Long:  "Store the API token. Without an argument the token is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					token = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
			}
			if err := credentials.NewCredentialManager("").StoreToken(strings.TrimSpace(token)); err != nil {
				return err
			}
			a.logger.Info("Knowledge API token stored")
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Token stored in the credential store."))
			return nil
		},
	}

	deleteToken := &cobra.Command{
		Use:   "delete-token",
		Short: "Remove the API token from the OS credential store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewCredentialManager("").DeleteToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report where the API token comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, source, err := credentials.NewCredentialManager(config.APITokenEnv).Token()
			out := cmd.OutOrStdout()
			switch {
			case errors.Is(err, credentials.ErrNoToken):
				fmt.Fprintln(out, warningStyle.Render("No token configured."))
				return nil
			case err != nil:
				return err
			case source == credentials.SourceEnv:
				fmt.Fprintf(out, "%s (from %s)\n", successStyle.Render("Token configured"), config.APITokenEnv)
			default:
				fmt.Fprintf(out, "%s (from the credential store)\n", successStyle.Render("Token configured"))
			}
			return nil
		},
	}

	cmd.AddCommand(setToken, deleteToken, status)
	return cmd
}
