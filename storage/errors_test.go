package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	cause := errors.New("empty")

	withCause := NewConfigError("path", "is required", cause)
	assert.Equal(t, "storage configuration error: path: is required: empty", withCause.Error())
	assert.ErrorIs(t, withCause, cause)

	bare := NewConfigError("service", "is required", nil)
	assert.Equal(t, "storage configuration error: service: is required", bare.Error())
	assert.NoError(t, bare.Unwrap())
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("refused")
	err := NewConnectionError("ping", "localhost:6379", cause)

	assert.Equal(t, "storage connection error: ping failed for localhost:6379: refused", err.Error())
	assert.ErrorIs(t, err, cause)

	var connErr *ConnectionError
	assert.ErrorAs(t, error(err), &connErr)
	assert.Equal(t, "localhost:6379", connErr.Address)
}

func TestOperationErrorWrapsSentinels(t *testing.T) {
	err := NewOperationError("get", "token", ErrClosed)

	assert.Equal(t, `storage operation error: get failed for key "token": storage: store closed`, err.Error())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotErrorIs(t, err, ErrNotFound)
}
