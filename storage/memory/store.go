// Package memory provides a process-local storage.Store. It backs the credential
// for short-lived sessions and doubles as a configurable test double.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-apiclient/internal/tracking"
	"github.com/gaborage/go-apiclient/storage"
)

const backendName = storage.BackendMemory

// Store is a thread-safe in-memory storage.Store.
//
//	s := memory.New()
//	_ = s.Set(ctx, "token", "abc")
//	v, err := s.Get(ctx, "token")
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed atomic.Bool

	failMu      sync.RWMutex
	getError    error
	setError    error
	deleteError error
	healthError error

	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
}

var _ storage.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// WithGetFailure makes Get return err until cleared with nil.
func (s *Store) WithGetFailure(err error) *Store {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.getError = err
	return s
}

// WithSetFailure makes Set return err until cleared with nil.
func (s *Store) WithSetFailure(err error) *Store {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.setError = err
	return s
}

// WithDeleteFailure makes Delete return err until cleared with nil.
func (s *Store) WithDeleteFailure(err error) *Store {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.deleteError = err
	return s
}

// WithHealthFailure makes Health return err until cleared with nil.
func (s *Store) WithHealthFailure(err error) *Store {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.healthError = err
	return s
}

func (s *Store) failure(which *error) error {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return *which
}

func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	s.getCalls.Add(1)
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpGet, time.Since(start), err, storage.ErrNotFound)
	}()

	if s.closed.Load() {
		return "", storage.ErrClosed
	}
	if err := s.failure(&s.getError); err != nil {
		return "", storage.NewOperationError(tracking.OpGet, key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	s.setCalls.Add(1)
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpSet, time.Since(start), err, nil)
	}()

	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := s.failure(&s.setError); err != nil {
		return storage.NewOperationError(tracking.OpSet, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (err error) {
	s.deleteCalls.Add(1)
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpDelete, time.Since(start), err, nil)
	}()

	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := s.failure(&s.deleteError); err != nil {
		return storage.NewOperationError(tracking.OpDelete, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Health(_ context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return s.failure(&s.healthError)
}

// Close marks the store closed. It is safe to call more than once.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GetCalls returns how many times Get was invoked.
func (s *Store) GetCalls() int64 { return s.getCalls.Load() }

// SetCalls returns how many times Set was invoked.
func (s *Store) SetCalls() int64 { return s.setCalls.Load() }

// DeleteCalls returns how many times Delete was invoked.
func (s *Store) DeleteCalls() int64 { return s.deleteCalls.Load() }
