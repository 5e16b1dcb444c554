// Package app wires configuration, logging, credential storage, telemetry and
// the resilient HTTP client into a ready-to-use API client session.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/credential"
	"github.com/gaborage/go-apiclient/httpclient"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/observability"
	"github.com/gaborage/go-apiclient/storage"
)

const shutdownTimeout = 5 * time.Second

// ErrEmptyCredential is returned by Login when no token is given.
var ErrEmptyCredential = errors.New("credential must not be empty")

// ErrCredentialNotStored is returned by Login when the backend did not keep the token.
var ErrCredentialNotStored = errors.New("credential could not be stored")

// App is a configured API client session.
type App struct {
	cfg           *config.Config
	logger        logger.Logger
	storage       storage.Store
	credentials   credential.Store
	client        httpclient.Client
	observability observability.Provider
	healthProbes  []HealthProbe
	closers       []namedCloser

	closeOnce sync.Once
	closeErr  error
}

// namedCloser holds a resource with its name for cleanup tracking
type namedCloser struct {
	name   string
	closer interface{ Close() error }
}

// New loads configuration from the working directory and environment and
// builds an App.
func New() (*App, error) {
	return NewWithOptions(nil)
}

// NewWithOptions is New with injectable dependencies.
func NewWithOptions(opts *Options) (*App, error) {
	cfg, err := opts.configLoader()()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg, opts)
}

// NewWithConfig builds an App from an already loaded configuration.
func NewWithConfig(cfg *config.Config, opts *Options) (*App, error) {
	return NewAppBuilder().
		WithConfig(cfg, opts).
		CreateLogger().
		CreateStorage().
		CreateCredentials().
		CreateObservability().
		CreateClient().
		CreateHealthProbes().
		RegisterClosers().
		Build()
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.logger }

// Client returns the resilient HTTP client.
func (a *App) Client() httpclient.Client { return a.client }

// Credentials returns the session credential store.
func (a *App) Credentials() credential.Store { return a.credentials }

// Observability returns the telemetry provider, a no-op one when disabled.
func (a *App) Observability() observability.Provider { return a.observability }

// Login stores token as the session credential.
func (a *App) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyCredential
	}

	a.credentials.Set(ctx, token)
	if !a.credentials.IsAuthenticated(ctx) {
		return fmt.Errorf("%w in %s backend", ErrCredentialNotStored, a.cfg.Credential.Backend)
	}

	a.logger.Info().Str("backend", a.cfg.Credential.Backend).Msg("Credential stored")
	return nil
}

// Logout removes the session credential.
func (a *App) Logout(ctx context.Context) {
	a.credentials.Clear(ctx)
	a.logger.Info().Str("backend", a.cfg.Credential.Backend).Msg("Credential cleared")
}

// Close flushes telemetry and releases storage. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error

		if err := observability.Shutdown(ctx, a.observability, shutdownTimeout); err != nil {
			errs = append(errs, err)
			a.logger.Error().Err(err).Msg("Failed to shut down observability")
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closeResource(a.closers[i], &errs)
		}

		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) closeResource(c namedCloser, errs *[]error) {
	if err := c.closer.Close(); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", c.name, err))
		a.logger.Error().Err(err).Msgf("Failed to close %s", c.name)
		return
	}
	a.logger.Debug().Msgf("Closed %s", c.name)
}

func (a *App) registerCloser(name string, closer interface{ Close() error }) {
	if closer == nil {
		return
	}
	a.closers = append(a.closers, namedCloser{name: name, closer: closer})
}
