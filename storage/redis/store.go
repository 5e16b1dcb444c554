// Package redis stores the credential in Redis so several processes on
// different hosts share one session.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/go-apiclient/internal/tracking"
	"github.com/gaborage/go-apiclient/storage"
)

const (
	backendName = storage.BackendRedis
	pingTimeout = 5 * time.Second
)

// Store implements storage.Store on a go-redis client.
type Store struct {
	client *redis.Client
	config *Config
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// New validates cfg, connects and pings the server.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, storage.NewConfigError("redis", "config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Store{client: client, config: cfg}, nil
}

func (s *Store) key(k string) string {
	return s.config.KeyPrefix + k
}

func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	if s.closed.Load() {
		return "", storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpGet, time.Since(start), err, storage.ErrNotFound)
	}()

	value, err = s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
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

	if err = s.client.Set(ctx, s.key(key), value, s.config.TTL).Err(); err != nil {
		return storage.NewOperationError(tracking.OpSet, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpDelete, time.Since(start), err, nil)
	}()

	if err = s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return storage.NewOperationError(tracking.OpDelete, key, err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) (err error) {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpHealth, time.Since(start), err, nil)
	}()

	if err = s.client.Ping(ctx).Err(); err != nil {
		return storage.NewConnectionError("ping", s.config.Address(), err)
	}
	return nil
}

// Close closes the connection pool. Subsequent calls return nil.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.client.Close()
}
