package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/storage"
	"github.com/gaborage/go-apiclient/storage/file"
	"github.com/gaborage/go-apiclient/storage/keyring"
	"github.com/gaborage/go-apiclient/storage/memory"
	"github.com/gaborage/go-apiclient/storage/redis"
)

const (
	credentialDirName  = "go-apiclient"
	credentialFileName = "credentials.json"
)

// NewStorage opens the credential backend selected by cfg. The "none" backend
// returns a nil store, which the credential layer treats as always empty.
func NewStorage(cfg *config.CredentialConfig, log logger.Logger) (storage.Store, error) {
	if cfg == nil {
		return nil, config.NewMissingFieldError("credential")
	}
	if log == nil {
		log = logger.Nop()
	}

	switch cfg.Backend {
	case config.BackendNone:
		log.Debug().Msg("Credential storage disabled")
		return nil, nil
	case config.BackendMemory:
		log.Debug().Msg("Using in-memory credential storage")
		return memory.New(), nil
	case config.BackendFile:
		path := cfg.File.Path
		if path == "" {
			var err error
			if path, err = DefaultCredentialPath(); err != nil {
				return nil, err
			}
		}
		store, err := file.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential file: %w", err)
		}
		log.Debug().Str("path", store.Path()).Msg("Using file credential storage")
		return store, nil
	case config.BackendRedis:
		store, err := redis.New(&redis.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			Database:    cfg.Redis.Database,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			TTL:         cfg.Redis.TTL,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to credential redis: %w", err)
		}
		log.Debug().
			Str("host", cfg.Redis.Host).
			Int("port", cfg.Redis.Port).
			Msg("Using redis credential storage")
		return store, nil
	case config.BackendKeyring:
		log.Debug().Str("service", cfg.Keyring.Service).Msg("Using OS keyring credential storage")
		return keyring.New(cfg.Keyring.Service), nil
	default:
		return nil, config.NewInvalidFieldError("credential.backend", fmt.Sprintf("unknown backend '%s'", cfg.Backend),
			[]string{config.BackendNone, config.BackendMemory, config.BackendFile, config.BackendRedis, config.BackendKeyring})
	}
}

// DefaultCredentialPath returns <user config dir>/go-apiclient/credentials.json.
func DefaultCredentialPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, credentialDirName, credentialFileName), nil
}
