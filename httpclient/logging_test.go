package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-apiclient/logger"
)

func newBufferedClient(t *testing.T, level string, configure func(*Builder)) (Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	b := NewBuilder(logger.New(level, false, logger.WithOutput(&buf))).
		WithSleeper(&recordingSleeper{})
	configure(b)
	return b.Build(), &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line), raw)
		lines = append(lines, line)
	}
	return lines
}

func linesWithMessage(lines []map[string]any, msg string) []map[string]any {
	var out []map[string]any
	for _, l := range lines {
		if l["message"] == msg {
			out = append(out, l)
		}
	}
	return out
}

func TestRequestAndResponseAreLogged(t *testing.T) {
	c, buf := newBufferedClient(t, "info", func(b *Builder) {
		b.WithTransport(doerFunc(func(*nethttp.Request) (*nethttp.Response, error) {
			return jsonResponse(nethttp.StatusOK, `{"ok":true}`), nil
		}))
	})

	require.True(t, c.Post(context.Background(), itemsPath, map[string]string{"name": "x"}).OK())

	lines := logLines(t, buf)
	requests := linesWithMessage(lines, "REST client request")
	responses := linesWithMessage(lines, "REST client response")
	require.Len(t, requests, 1)
	require.Len(t, responses, 1)

	assert.Equal(t, "outbound", requests[0]["direction"])
	assert.Equal(t, nethttp.MethodPost, requests[0]["method"])
	assert.Equal(t, DefaultBaseURL+itemsPath, requests[0]["url"])
	assert.NotEmpty(t, requests[0]["request_id"])
	assert.EqualValues(t, len(`{"name":"x"}`), requests[0]["body_size"])

	assert.Equal(t, "inbound", responses[0]["direction"])
	assert.EqualValues(t, nethttp.StatusOK, responses[0]["status"])
	assert.EqualValues(t, 1, responses[0]["call_count"])
	assert.Equal(t, requests[0]["request_id"], responses[0]["request_id"])
}

func TestPayloadLoggingMasksCredentials(t *testing.T) {
	c, buf := newBufferedClient(t, "debug", func(b *Builder) {
		b.WithCredentialStore(newCredentials(t, "secret-token")).
			WithPayloadLogging(true, 4).
			WithTransport(doerFunc(func(*nethttp.Request) (*nethttp.Response, error) {
				return jsonResponse(nethttp.StatusOK, `{"id":1,"name":"long"}`), nil
			}))
	})

	require.True(t, c.Get(context.Background(), itemsPath).OK())

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "Bearer ***")

	var truncated []map[string]any
	for _, l := range linesWithMessage(logLines(t, buf), "REST client response") {
		if l["level"] == "debug" {
			truncated = append(truncated, l)
		}
	}
	require.Len(t, truncated, 1)
	assert.Equal(t, "true", truncated[0]["body_truncated"])
	assert.Equal(t, `{"id`, truncated[0]["body_preview"])
}

func TestPayloadLoggingDisabledByDefault(t *testing.T) {
	c, buf := newBufferedClient(t, "debug", func(b *Builder) {
		b.WithTransport(doerFunc(func(*nethttp.Request) (*nethttp.Response, error) {
			return jsonResponse(nethttp.StatusOK, `{}`), nil
		}))
	})

	require.True(t, c.Get(context.Background(), itemsPath).OK())

	assert.NotContains(t, buf.String(), "body_preview")
}

func TestRetriesAreLoggedAtWarn(t *testing.T) {
	c, buf := newBufferedClient(t, "warn", func(b *Builder) {
		b.WithTransport(doerFunc(func(*nethttp.Request) (*nethttp.Response, error) {
			return nil, errors.New("connection refused")
		}))
	})

	require.False(t, c.Get(context.Background(), itemsPath).OK())

	retries := linesWithMessage(logLines(t, buf), "REST client attempt failed, retrying")
	require.Len(t, retries, 2)
	assert.EqualValues(t, 1, retries[0]["attempt"])
	assert.EqualValues(t, 2, retries[1]["attempt"])
	assert.Contains(t, retries[0]["error"], "connection refused")
}

func TestPreview(t *testing.T) {
	c := &client{config: &Config{}}

	p, truncated := c.preview([]byte("short"))
	assert.Equal(t, "short", string(p))
	assert.False(t, truncated)

	long := bytes.Repeat([]byte("a"), DefaultMaxPayloadLogBytes+10)
	p, truncated = c.preview(long)
	assert.Len(t, p, DefaultMaxPayloadLogBytes)
	assert.True(t, truncated)
}

func TestPreviewKeepsWholeCharacters(t *testing.T) {
	c := &client{config: &Config{MaxPayloadLogBytes: 4}}

	p, truncated := c.preview([]byte("abc€x"))
	assert.True(t, truncated)
	assert.Equal(t, "abc", string(p))
	assert.True(t, utf8.Valid(p))

	p, truncated = c.preview([]byte("ab€x"))
	assert.True(t, truncated)
	assert.Equal(t, "ab", string(p))

	p, truncated = c.preview([]byte("a€bcd"))
	assert.True(t, truncated)
	assert.Equal(t, "a€", string(p))

	invalid := bytes.Repeat([]byte{0x80}, 10)
	p, truncated = c.preview(invalid)
	assert.True(t, truncated)
	assert.Len(t, p, 4, "bytes that are not UTF-8 are cut at the limit")
}
