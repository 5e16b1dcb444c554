// Package file persists values as a JSON document on local disk so a CLI
// session survives process restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-apiclient/internal/tracking"
	"github.com/gaborage/go-apiclient/storage"
)

const backendName = storage.BackendFile

// snapshot is the on-disk layout.
type snapshot struct {
	Values map[string]string `json:"values"`
}

// Store reads the file on every Get so that a logout performed by another
// process is observed, and rewrites it atomically (temp file + rename) on every
// mutation.
type Store struct {
	mu     sync.Mutex
	path   string
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// New creates a Store backed by path. The file and its parent directory are
// created lazily on the first Set.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, storage.NewConfigError("path", "is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, storage.NewConfigError("path", "cannot be resolved", err)
	}
	return &Store{path: abs}, nil
}

// Path returns the absolute file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpGet, time.Since(start), err, storage.ErrNotFound)
	}()

	if s.closed.Load() {
		return "", storage.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return "", storage.NewOperationError(tracking.OpGet, key, err)
	}
	v, ok := snap.Values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpSet, time.Since(start), err, nil)
	}()

	return s.mutate(tracking.OpSet, key, func(values map[string]string) bool {
		if current, ok := values[key]; ok && current == value {
			return false
		}
		values[key] = value
		return true
	})
}

func (s *Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		tracking.RecordStorageOperation(ctx, backendName, tracking.OpDelete, time.Since(start), err, nil)
	}()

	return s.mutate(tracking.OpDelete, key, func(values map[string]string) bool {
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		return true
	})
}

// mutate loads the snapshot, applies fn and saves only when fn reports a change.
func (s *Store) mutate(op, key string, fn func(map[string]string) bool) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return storage.NewOperationError(op, key, err)
	}
	if !fn(snap.Values) {
		return nil
	}
	if err := s.save(snap); err != nil {
		return storage.NewOperationError(op, key, err)
	}
	return nil
}

// Health checks that the parent directory exists or can be created.
func (s *Store) Health(_ context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return storage.NewConnectionError("stat", dir, err)
	}
	if !info.IsDir() {
		return storage.NewConnectionError("stat", dir, fmt.Errorf("not a directory"))
	}
	return nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) load() (*snapshot, error) {
	snap := &snapshot{Values: map[string]string{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if snap.Values == nil {
		snap.Values = map[string]string{}
	}
	return snap, nil
}

func (s *Store) save(snap *snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
