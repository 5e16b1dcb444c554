package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/credential"
	"github.com/gaborage/go-apiclient/httpclient"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/navigation"
	"github.com/gaborage/go-apiclient/observability"
	"github.com/gaborage/go-apiclient/storage"
)

// Builder orchestrates the step-by-step construction of an App instance
// using a fluent interface. Each step is skipped once an earlier one failed.
type Builder struct {
	cfg  *config.Config
	opts *Options

	logger        logger.Logger
	storage       storage.Store
	storageReady  bool
	credentials   credential.Store
	observability observability.Provider
	client        httpclient.Client
	app           *App

	err error
}

// NewAppBuilder creates a new app builder instance.
func NewAppBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration and options for the app.
func (b *Builder) WithConfig(cfg *config.Config, opts *Options) *Builder {
	if b.err != nil {
		return b
	}

	b.cfg = cfg
	b.opts = opts
	if b.opts == nil {
		b.opts = &Options{}
	}
	return b
}

// CreateLogger creates the application logger.
func (b *Builder) CreateLogger() *Builder {
	if b.err != nil {
		return b
	}

	if b.cfg == nil {
		b.err = fmt.Errorf("configuration required before creating logger")
		return b
	}

	b.logger = logger.New(b.cfg.Log.Level, b.cfg.Log.Pretty, logger.WithOutput(b.opts.LogOutput))
	b.logger.Debug().
		Str("app", b.cfg.App.Name).
		Str("env", b.cfg.App.Env).
		Str("version", b.cfg.App.Version).
		Str("base_url", b.cfg.API.BaseURL).
		Msg("Starting API client")

	return b
}

// CreateStorage opens the configured credential backend.
func (b *Builder) CreateStorage() *Builder {
	if b.err != nil {
		return b
	}

	if b.logger == nil {
		b.err = fmt.Errorf("logger required before creating storage")
		return b
	}

	store, err := b.opts.storageConnector()(&b.cfg.Credential, b.logger)
	if err != nil {
		b.err = fmt.Errorf("failed to create credential storage: %w", err)
		return b
	}

	b.storage = store
	b.storageReady = true
	return b
}

// CreateCredentials wraps the storage backend in a credential store.
func (b *Builder) CreateCredentials() *Builder {
	if b.err != nil {
		return b
	}

	if !b.storageReady {
		b.err = fmt.Errorf("storage required before creating credentials")
		return b
	}

	b.credentials = credential.New(b.storage, b.logger, credential.WithKey(b.cfg.Credential.Key))
	return b
}

// CreateObservability creates the telemetry provider and installs it globally
// when enabled.
func (b *Builder) CreateObservability() *Builder {
	if b.err != nil {
		return b
	}

	if b.logger == nil {
		b.err = fmt.Errorf("logger required before creating observability")
		return b
	}

	provider, err := observability.NewProvider(&b.cfg.Observability,
		observability.WithEnvironment(b.cfg.App.Env),
		observability.WithWriter(b.opts.TelemetryOutput),
		observability.WithLogger(b.logger),
	)
	if err != nil {
		b.err = fmt.Errorf("failed to create observability provider: %w", err)
		return b
	}

	b.observability = provider
	return b
}

// CreateClient builds the HTTP client from the api section.
func (b *Builder) CreateClient() *Builder {
	if b.err != nil {
		return b
	}

	if b.credentials == nil || b.observability == nil {
		b.err = fmt.Errorf("credentials and observability required before creating client")
		return b
	}

	api := b.cfg.API
	cb := httpclient.NewBuilder(b.logger).
		WithBaseURL(api.BaseURL).
		WithTimeout(api.Timeout).
		WithRetryBudget(api.RetryBudget).
		WithBackoff(httpclient.LinearBackoff(api.RetryDelay)).
		WithLoginPath(api.LoginPath).
		WithDefaultHeaders(api.Headers).
		WithPayloadLogging(api.LogPayloads, api.MaxPayloadLogBytes).
		WithCredentialStore(b.credentials).
		WithNavigator(b.navigator()).
		WithTracerProvider(b.observability.TracerProvider())

	if b.opts.Transport != nil {
		cb = cb.WithTransport(b.opts.Transport)
	}
	if b.opts.Sleeper != nil {
		cb = cb.WithSleeper(b.opts.Sleeper)
	}

	b.client = cb.Build()
	return b
}

func (b *Builder) navigator() navigation.Navigator {
	if b.opts.Navigator != nil {
		return b.opts.Navigator
	}
	log := b.logger
	return navigation.Func(func(_ context.Context, path string) {
		log.Info().Str("path", path).Msg("Login required")
	})
}

// CreateHealthProbes assembles the App and its status probes.
func (b *Builder) CreateHealthProbes() *Builder {
	if b.err != nil {
		return b
	}

	if b.client == nil {
		b.err = fmt.Errorf("client required before creating health probes")
		return b
	}

	b.app = &App{
		cfg:           b.cfg,
		logger:        b.logger,
		storage:       b.storage,
		credentials:   b.credentials,
		client:        b.client,
		observability: b.observability,
	}
	b.app.healthProbes = []HealthProbe{
		storageHealthProbe(b.cfg.Credential.Backend, b.storage),
		credentialHealthProbe(b.credentials),
	}
	return b
}

// RegisterClosers registers all components that need cleanup on Close.
func (b *Builder) RegisterClosers() *Builder {
	if b.err != nil {
		return b
	}

	if b.app == nil {
		b.err = fmt.Errorf("app instance required before registering closers")
		return b
	}

	if b.storage != nil {
		b.app.registerCloser("credential storage", b.storage)
	}
	return b
}

// Build returns the App or the first error, releasing anything already opened.
func (b *Builder) Build() (*App, error) {
	if b.err == nil && b.app == nil {
		b.err = fmt.Errorf("app instance was not created")
	}
	if b.err != nil {
		b.cleanup()
		return nil, b.err
	}
	return b.app, nil
}

func (b *Builder) cleanup() {
	var errs []error
	if b.observability != nil {
		errs = append(errs, observability.Shutdown(context.Background(), b.observability, shutdownTimeout))
	}
	if b.storage != nil {
		errs = append(errs, b.storage.Close())
	}
	if err := errors.Join(errs...); err != nil && b.logger != nil {
		b.logger.Warn().Err(err).Msg("Cleanup after failed build reported errors")
	}
}
