// Package credential owns the single bearer credential of a client session.
// It sits on top of a storage.Store and never surfaces backend failures to
// callers: a failing or missing backend behaves like an empty one.
package credential

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/storage"
)

// DefaultKey is the storage key holding the credential.
const DefaultKey = "token"

// Store reads and writes the session credential.
type Store interface {
	// Get returns the credential and true, or "" and false when none is available.
	Get(ctx context.Context) (string, bool)
	// Set stores value. Setting the current value again has no further effect.
	Set(ctx context.Context, value string)
	// Clear removes the credential if present.
	Clear(ctx context.Context)
	// IsAuthenticated reports whether Get would return a credential.
	IsAuthenticated(ctx context.Context) bool
}

type store struct {
	backend storage.Store
	key     string
	log     logger.Logger
	group   singleflight.Group
}

// Option configures the store returned by New.
type Option func(*store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *store) {
		if key != "" {
			s.key = key
		}
	}
}

// New wraps backend. A nil backend yields a store that is always empty and
// ignores writes, for contexts without persistent storage.
func New(backend storage.Store, log logger.Logger, opts ...Option) Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &store{backend: backend, key: DefaultKey, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nop returns a store without backing storage.
func Nop() Store {
	return New(nil, nil)
}

func (s *store) Get(ctx context.Context) (string, bool) {
	if s.backend == nil {
		return "", false
	}

	// Concurrent readers share one backend round trip. The shared read does not
	// inherit any single caller's cancellation; each caller stops waiting on its own.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.key, func() (any, error) {
		return s.backend.Get(shared, s.key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", false
	}
	if res.Err != nil {
		if !errors.Is(res.Err, storage.ErrNotFound) {
			s.log.Warn().Err(res.Err).Str("storage_key", s.key).Msg("Credential lookup failed, continuing unauthenticated")
		}
		return "", false
	}

	token, _ := res.Val.(string)
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *store) Set(ctx context.Context, value string) {
	if s.backend == nil {
		return
	}
	if value == "" {
		s.Clear(ctx)
		return
	}
	if err := s.backend.Set(ctx, s.key, value); err != nil {
		s.log.Warn().Err(err).Str("storage_key", s.key).Msg("Credential could not be stored")
	}
}

func (s *store) Clear(ctx context.Context) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.log.Warn().Err(err).Str("storage_key", s.key).Msg("Credential could not be cleared")
	}
}

func (s *store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Get(ctx)
	return ok
}
