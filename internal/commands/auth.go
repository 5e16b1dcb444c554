package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-apiclient/app"
)

type opener func() (*app.App, error)

// withApp opens the App for the duration of run and closes it afterwards.
func withApp(cmd *cobra.Command, open opener, run func(*app.App) error) (err error) {
	a, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(cmd.Context()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return run(a)
}

func newLoginCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Store the session credential",
		Long:  "Store a bearer token for later requests. Without an argument, or with \"-\", the token is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				if err := a.Login(cmd.Context(), token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
				return nil
			})
		},
	}
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return "", nil
}

func newLogoutCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				a.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newStatusCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report authentication state and storage health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				report := a.Status(cmd.Context())
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if !report.Healthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}
}
