// Package keyring keeps the credential in the operating system's secret
// vault (macOS Keychain, Secret Service on Linux, Windows Credential Manager).
package keyring

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/gaborage/go-apiclient/internal/tracking"
	"github.com/gaborage/go-apiclient/storage"
)

const (
	backendName = storage.BackendKeyring

	// DefaultService is the vault service name used when none is configured.
	DefaultService = "go-apiclient"

	healthProbeKey = "__health__"
)

// Vault is the subset of go-keyring used by Store.
type Vault interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

type osVault struct{}

func (osVault) Get(service, user string) (string, error) {
	return gokeyring.Get(service, user)
}

func (osVault) Set(service, user, password string) error {
	return gokeyring.Set(service, user, password)
}

func (osVault) Delete(service, user string) error {
	return gokeyring.Delete(service, user)
}

// Store maps storage keys onto vault accounts under one service name.
type Store struct {
	service string
	vault   Vault
	closed  atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithVault replaces the OS vault, mainly for tests.
func WithVault(v Vault) Option {
	return func(s *Store) {
		if v != nil {
			s.vault = v
		}
	}
}

// New creates a Store for service. An empty service selects DefaultService.
func New(service string, opts ...Option) *Store {
	if service == "" {
		service = DefaultService
	}
	s := &Store{service: service, vault: osVault{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Service returns the vault service name.
func (s *Store) Service() string {
	return s.service
}

func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	if s.closed.Load() {
		return "", storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpGet, time.Since(start), err, storage.ErrNotFound)
	}()

	value, err = s.vault.Get(s.service, key)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", storage.NewOperationError(tracking.OpGet, key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpSet, time.Since(start), err, nil)
	}()

	if err = s.vault.Set(s.service, key, value); err != nil {
		return storage.NewOperationError(tracking.OpSet, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (err error) {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpDelete, time.Since(start), err, nil)
	}()

	err = s.vault.Delete(s.service, key)
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return storage.NewOperationError(tracking.OpDelete, key, err)
}

// Health performs a lookup of a key that is never written. A not-found answer
// proves the vault is reachable.
func (s *Store) Health(_ context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	_, err := s.vault.Get(s.service, healthProbeKey)
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return storage.NewConnectionError("lookup", s.service, err)
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
