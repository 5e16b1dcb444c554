// Package storage defines the key-value persistence contract used to keep the
// API credential between runs, plus the sentinel and typed errors shared by all backends.
//
// Backends live in sub-packages:
//
//	storage/memory   process-local map, also used as a test double
//	storage/file     JSON document on disk
//	storage/redis    shared Redis instance
//	storage/keyring  OS credential vault (Keychain, Secret Service, WinCred)
package storage

import "context"

// Store persists string values by key.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when key has no value.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites any existing value.
	Set(ctx context.Context, key, value string) error

	// Delete is idempotent and returns nil when key is absent.
	Delete(ctx context.Context, key string) error

	// Health reports whether the backend can serve requests.
	Health(ctx context.Context) error

	// Close releases resources. Operations after Close return ErrClosed.
	Close() error
}

// Backend names accepted by configuration.
const (
	BackendNone    = "none"
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendRedis   = "redis"
	BackendKeyring = "keyring"
)
