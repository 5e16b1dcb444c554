package httpclient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawResult(body string) Result[json.RawMessage] {
	raw := json.RawMessage(body)
	return success(&raw)
}

func TestResultAccessors(t *testing.T) {
	v := 7
	ok := success(&v)
	assert.True(t, ok.OK())
	assert.NoError(t, ok.Err())
	assert.Equal(t, 7, ok.Value())

	empty := Result[int]{}
	assert.True(t, empty.OK())
	assert.Zero(t, empty.Value())

	cause := errors.New("boom")
	failed := failure[int]("Access forbidden", 403, cause)
	assert.False(t, failed.OK())
	assert.Zero(t, failed.Value())
	require.Error(t, failed.Err())
	assert.Equal(t, "Access forbidden (status 403)", failed.Err().Error())
	assert.ErrorIs(t, failed.Err(), cause)
}

func TestResultJSONShape(t *testing.T) {
	data, err := json.Marshal(failure[item]("Network error", 0, errors.New("x")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"detail":"Network error","status_code":0}}`, string(data))

	v := item{ID: 1, Name: "x"}
	data, err = json.Marshal(success(&v))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"id":1,"name":"x"}}`, string(data))
}

func TestDecode(t *testing.T) {
	t.Run("typed payload", func(t *testing.T) {
		got := Decode[item](rawResult(`{"id":3,"name":"z"}`))
		require.True(t, got.OK())
		assert.Equal(t, item{ID: 3, Name: "z"}, got.Value())
	})

	t.Run("error passes through", func(t *testing.T) {
		in := failure[json.RawMessage]("Item not found", 404, nil)
		got := Decode[item](in)
		require.NotNil(t, got.Error)
		assert.Same(t, in.Error, got.Error)
	})

	t.Run("empty stays empty", func(t *testing.T) {
		got := Decode[item](Result[json.RawMessage]{})
		assert.True(t, got.OK())
		assert.Nil(t, got.Data)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		got := Decode[item](rawResult(`{"id":"not a number"}`))
		require.NotNil(t, got.Error)
		assert.Equal(t, 0, got.Error.StatusCode)
		assert.Contains(t, got.Error.Detail, "Failed to decode response")
		assert.True(t, IsErrorType(got.Error.Cause, ValidationError))
	})
}
