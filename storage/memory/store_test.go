package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-apiclient/storage"
)

const testKey = "token"

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, testKey, "abc"))
	v, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, testKey, "def"))
	v, _ = s.Get(ctx, testKey)
	assert.Equal(t, "def", v)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, testKey))
	require.NoError(t, s.Delete(ctx, testKey), "delete is idempotent")
	_, err = s.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.EqualValues(t, 3, s.GetCalls())
	assert.EqualValues(t, 2, s.SetCalls())
	assert.EqualValues(t, 2, s.DeleteCalls())
}

func TestStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := New().WithGetFailure(boom).WithSetFailure(boom).WithDeleteFailure(boom).WithHealthFailure(boom)

	_, err := s.Get(ctx, testKey)
	assert.ErrorIs(t, err, boom)
	var opErr *storage.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "get", opErr.Op)

	assert.ErrorIs(t, s.Set(ctx, testKey, "v"), boom)
	assert.ErrorIs(t, s.Delete(ctx, testKey), boom)
	assert.ErrorIs(t, s.Health(ctx), boom)

	s.WithSetFailure(nil)
	assert.NoError(t, s.Set(ctx, testKey, "v"))
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Set(ctx, testKey, "v"), storage.ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, testKey), storage.ErrClosed)
	assert.ErrorIs(t, s.Health(ctx), storage.ErrClosed)
}

func TestStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = s.Set(ctx, testKey, "v")
				return
			}
			_, _ = s.Get(ctx, testKey)
		}(i)
	}
	wg.Wait()

	v, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
