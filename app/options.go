package app

import (
	"io"

	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/httpclient"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/navigation"
	"github.com/gaborage/go-apiclient/storage"
)

// Options contains optional dependencies for creating an App instance.
// Zero values select the production defaults.
type Options struct {
	ConfigLoader     func() (*config.Config, error)
	StorageConnector func(*config.CredentialConfig, logger.Logger) (storage.Store, error)
	Transport        httpclient.HTTPDoer
	Sleeper          httpclient.Sleeper
	Navigator        navigation.Navigator

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
	// TelemetryOutput receives stdout exporter output. Defaults to os.Stderr.
	TelemetryOutput io.Writer
}

func (o *Options) configLoader() func() (*config.Config, error) {
	if o != nil && o.ConfigLoader != nil {
		return o.ConfigLoader
	}
	return func() (*config.Config, error) { return config.Load() }
}

func (o *Options) storageConnector() func(*config.CredentialConfig, logger.Logger) (storage.Store, error) {
	if o != nil && o.StorageConnector != nil {
		return o.StorageConnector
	}
	return NewStorage
}
