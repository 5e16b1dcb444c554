// Package commands implements the apiclient command line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gaborage/go-apiclient/app"
	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/navigation"
)

// Settings holds the persistent flags shared by every command.
type Settings struct {
	EnvFile   string
	ConfigDir string
	BaseURL   string

	// Stderr receives user hints such as the login prompt after a 401.
	Stderr io.Writer
}

// AppFactory builds the App a command runs against.
type AppFactory func(Settings) (*app.App, error)

// NewRootCommand creates the apiclient command tree. A nil factory selects
// DefaultAppFactory.
func NewRootCommand(version string, factory AppFactory) *cobra.Command {
	if factory == nil {
		factory = DefaultAppFactory
	}
	settings := &Settings{}

	root := &cobra.Command{
		Use:   "apiclient",
		Short: "Call a JSON API with retries and a stored session credential",
		Long: `apiclient sends authenticated JSON requests to a REST API.

Transport failures are retried with linear backoff so a sleeping free-tier
server gets time to wake up. A 401 answer clears the stored credential.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&settings.EnvFile, "env-file", ".env", "Dotenv file loaded before configuration (ignored when missing)")
	root.PersistentFlags().StringVar(&settings.ConfigDir, "config-dir", "", "Directory holding config.yaml")
	root.PersistentFlags().StringVar(&settings.BaseURL, "base-url", "", "Override api.baseurl")

	open := func() (*app.App, error) {
		s := *settings
		s.Stderr = root.ErrOrStderr()
		return factory(s)
	}

	root.AddCommand(
		newLoginCommand(open),
		newLogoutCommand(open),
		newStatusCommand(open),
		newReadCommand(open, "get"),
		newReadCommand(open, "delete"),
		newWriteCommand(open, "post"),
		newWriteCommand(open, "put"),
		newWriteCommand(open, "patch"),
	)
	return root
}

// DefaultAppFactory loads the dotenv file and configuration, applies flag
// overrides and builds the App.
func DefaultAppFactory(s Settings) (*app.App, error) {
	if err := loadEnvFile(s.EnvFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.WithDir(s.ConfigDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if baseURL := strings.TrimSpace(s.BaseURL); baseURL != "" {
		cfg.API.BaseURL = baseURL
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	return app.NewWithConfig(cfg, &app.Options{Navigator: loginHint(s.Stderr)})
}

// loginHint tells the user to log in again once the API rejected the credential.
func loginHint(w io.Writer) navigation.Navigator {
	if w == nil {
		w = os.Stderr
	}
	return navigation.Func(func(_ context.Context, path string) {
		fmt.Fprintf(w, "Session expired or missing. Run 'apiclient login' (login page: %s)\n", path)
	})
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
