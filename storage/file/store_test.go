package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-apiclient/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	require.NoError(t, err)
	return s
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	var cfgErr *storage.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}

func TestStoreRoundTripPersists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "token")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "token", "abc"))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := New(s.Path())
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, reopened.Delete(ctx, "token"))
	_, err = s.Get(ctx, "token")
	assert.ErrorIs(t, err, storage.ErrNotFound, "deletion by another handle is visible")
}

func TestStoreDeleteMissingDoesNotCreateFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Delete(ctx, "token"))

	_, err := os.Stat(s.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	require.NoError(t, s.Set(ctx, "profile", "staging"))
	require.NoError(t, s.Delete(ctx, "token"))

	v, err := s.Get(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, "staging", v)
}

func TestStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Get(ctx, "token")
	var opErr *storage.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "get", opErr.Op)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreHealthAndClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.NoError(t, s.Health(ctx))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Health(ctx), storage.ErrClosed)
	assert.ErrorIs(t, s.Set(ctx, "token", "abc"), storage.ErrClosed)
	_, err := s.Get(ctx, "token")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestStoreHealthParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s, err := New(filepath.Join(blocker, "credentials.json"))
	require.NoError(t, err)

	var connErr *storage.ConnectionError
	assert.ErrorAs(t, s.Health(context.Background()), &connErr)
}
