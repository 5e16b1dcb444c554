package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-apiclient/app"
	"github.com/gaborage/go-apiclient/config"
)

const testToken = "abc"

type instantSleeper struct{}

func (instantSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type testBackend struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{}

	e := echo.New()
	e.HideBanner = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b.hits.Add(1)
			if c.Request().Header.Get("Authorization") != "Bearer "+testToken {
				return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "not authenticated"})
			}
			return next(c)
		}
	})
	e.GET("/items", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []map[string]any{{"id": 1, "name": "first"}})
	})
	e.POST("/items", func(c echo.Context) error {
		var body map[string]any
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		body["id"] = 2
		return c.JSON(http.StatusCreated, body)
	})
	update := func(c echo.Context) error {
		var body map[string]any
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		body["id"] = c.Param("id")
		body["method"] = c.Request().Method
		return c.JSON(http.StatusOK, body)
	}
	e.PUT("/items/:id", update)
	e.PATCH("/items/:id", update)
	e.DELETE("/items/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/headers", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"trace": c.Request().Header.Get("X-Trace")})
	})
	e.GET("/admin", func(c echo.Context) error {
		return c.JSON(http.StatusForbidden, map[string]string{"detail": "admins only"})
	})

	b.server = httptest.NewServer(e)
	t.Cleanup(b.server.Close)
	return b
}

// testFactory builds Apps that share one credential file, like separate CLI runs.
func testFactory(t *testing.T, baseURL string) AppFactory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	return func(s Settings) (*app.App, error) {
		cfg, err := config.LoadFromBytes([]byte(fmt.Sprintf(`
api:
  baseurl: %s
credential:
  backend: file
  file:
    path: %s
log:
  level: disabled
`, baseURL, path)))
		if err != nil {
			return nil, err
		}
		if s.BaseURL != "" {
			cfg.API.BaseURL = s.BaseURL
		}
		return app.NewWithConfig(cfg, &app.Options{Sleeper: instantSleeper{}, LogOutput: io.Discard})
	}
}

func execute(t *testing.T, factory AppFactory, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test", factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestSessionLifecycle(t *testing.T) {
	backend := newTestBackend(t)
	factory := testFactory(t, backend.server.URL)

	out, err := execute(t, factory, "", "login", testToken)
	require.NoError(t, err)
	assert.Equal(t, "Logged in\n", out)

	out, err = execute(t, factory, "", "status")
	require.NoError(t, err)
	status := decodeOutput(t, out)
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, true, status["healthy"])
	assert.Equal(t, config.BackendFile, status["backend"])

	out, err = execute(t, factory, "", "get", "/items")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "name": "first"}}, decodeOutput(t, out)["data"])

	out, err = execute(t, factory, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)

	out, err = execute(t, factory, "", "get", "/items")
	require.Error(t, err)
	errBody := decodeOutput(t, out)["error"].(map[string]any)
	assert.Equal(t, float64(http.StatusUnauthorized), errBody["status_code"])
}

func TestUnauthorizedClearsStoredCredential(t *testing.T) {
	backend := newTestBackend(t)
	factory := testFactory(t, backend.server.URL)

	_, err := execute(t, factory, "", "login", "stale")
	require.NoError(t, err)

	_, err = execute(t, factory, "", "get", "/items")
	require.Error(t, err)

	out, err := execute(t, factory, "", "status")
	require.NoError(t, err)
	assert.Equal(t, false, decodeOutput(t, out)["authenticated"])
}

func TestLoginReadsTokenFromStdin(t *testing.T) {
	backend := newTestBackend(t)
	factory := testFactory(t, backend.server.URL)

	_, err := execute(t, factory, "  "+testToken+"  \nignored\n", "login")
	require.NoError(t, err)

	_, err = execute(t, factory, "", "get", "/items")
	assert.NoError(t, err)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	factory := testFactory(t, "http://localhost:8000")

	_, err := execute(t, factory, "", "login", "-")
	assert.ErrorIs(t, err, app.ErrEmptyCredential)
}

func TestWriteCommands(t *testing.T) {
	backend := newTestBackend(t)
	factory := testFactory(t, backend.server.URL)
	_, err := execute(t, factory, "", "login", testToken)
	require.NoError(t, err)

	t.Run("post inline body", func(t *testing.T) {
		out, err := execute(t, factory, "", "post", "/items", "-d", `{"name":"x"}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": float64(2), "name": "x"}, decodeOutput(t, out)["data"])
	})

	t.Run("put body from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "item.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"y"}`), 0o600))

		out, err := execute(t, factory, "", "put", "/items/1", "--data", "@"+path)
		require.NoError(t, err)
		data := decodeOutput(t, out)["data"].(map[string]any)
		assert.Equal(t, "y", data["name"])
		assert.Equal(t, http.MethodPut, data["method"])
	})

	t.Run("patch body from stdin", func(t *testing.T) {
		out, err := execute(t, factory, `{"name":"z"}`, "patch", "/items/1", "-d", "-")
		require.NoError(t, err)
		data := decodeOutput(t, out)["data"].(map[string]any)
		assert.Equal(t, "z", data["name"])
		assert.Equal(t, http.MethodPatch, data["method"])
	})

	t.Run("invalid body never reaches the server", func(t *testing.T) {
		before := backend.hits.Load()
		_, err := execute(t, factory, "", "post", "/items", "-d", "{not json")
		assert.ErrorIs(t, err, errInvalidData)
		assert.Equal(t, before, backend.hits.Load())
	})

	t.Run("missing body file", func(t *testing.T) {
		_, err := execute(t, factory, "", "post", "/items", "-d", "@"+filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read body file")
	})
}

func TestReadCommands(t *testing.T) {
	backend := newTestBackend(t)
	factory := testFactory(t, backend.server.URL)
	_, err := execute(t, factory, "", "login", testToken)
	require.NoError(t, err)

	t.Run("delete prints empty result", func(t *testing.T) {
		out, err := execute(t, factory, "", "delete", "/items/1")
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, out)
	})

	t.Run("header flag is forwarded", func(t *testing.T) {
		out, err := execute(t, factory, "", "get", "/headers", "-H", "X-Trace: 42")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"trace": "42"}, decodeOutput(t, out)["data"])
	})

	t.Run("malformed header flag", func(t *testing.T) {
		_, err := execute(t, factory, "", "get", "/headers", "-H", "no-colon")
		assert.ErrorIs(t, err, errInvalidHeader)
	})

	t.Run("forbidden prints error result", func(t *testing.T) {
		out, err := execute(t, factory, "", "get", "/admin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Access forbidden")
		errBody := decodeOutput(t, out)["error"].(map[string]any)
		assert.Equal(t, "Access forbidden", errBody["detail"])
	})

	t.Run("endpoint argument is required", func(t *testing.T) {
		_, err := execute(t, factory, "", "get")
		assert.Error(t, err)
	})
}

func TestRetriesFlagAndBaseURLOverride(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	factory := testFactory(t, "http://localhost:8000")
	out, err := execute(t, factory, "", "--base-url", closedURL, "get", "/items", "--retries", "0")
	require.Error(t, err)

	errBody := decodeOutput(t, out)["error"].(map[string]any)
	assert.Equal(t, float64(0), errBody["status_code"])
	assert.NotEmpty(t, errBody["detail"])
}

func TestDefaultAppFactory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
credential:
  backend: memory
log:
  level: disabled
`), 0o600))

	t.Run("missing env file is ignored", func(t *testing.T) {
		a, err := DefaultAppFactory(Settings{EnvFile: filepath.Join(dir, "absent.env"), ConfigDir: dir})
		require.NoError(t, err)
		defer a.Close(context.Background())
		assert.Equal(t, config.BackendMemory, a.Config().Credential.Backend)
	})

	t.Run("env file feeds configuration", func(t *testing.T) {
		envFile := filepath.Join(dir, "test.env")
		require.NoError(t, os.WriteFile(envFile, []byte("API_LOGINPATH=/signin\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("API_LOGINPATH") })

		a, err := DefaultAppFactory(Settings{EnvFile: envFile, ConfigDir: dir})
		require.NoError(t, err)
		defer a.Close(context.Background())
		assert.Equal(t, "/signin", a.Config().API.LoginPath)
	})

	t.Run("base url override", func(t *testing.T) {
		a, err := DefaultAppFactory(Settings{ConfigDir: dir, BaseURL: " http://api.example.test "})
		require.NoError(t, err)
		defer a.Close(context.Background())
		assert.Equal(t, "http://api.example.test", a.Config().API.BaseURL)
	})

	t.Run("invalid base url override", func(t *testing.T) {
		_, err := DefaultAppFactory(Settings{ConfigDir: dir, BaseURL: "not a url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --base-url")
	})
}

func TestLoginHint(t *testing.T) {
	var buf bytes.Buffer
	loginHint(&buf).Redirect(context.Background(), "/login")
	assert.Equal(t, "Session expired or missing. Run 'apiclient login' (login page: /login)\n", buf.String())
}

func TestFactoryReceivesStderr(t *testing.T) {
	var got Settings
	factory := func(s Settings) (*app.App, error) {
		got = s
		return nil, assert.AnError
	}

	_, err := execute(t, factory, "", "--config-dir", "/etc/apiclient", "logout")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "/etc/apiclient", got.ConfigDir)
	assert.Equal(t, ".env", got.EnvFile)
	assert.NotNil(t, got.Stderr)
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand("v1.2.3", nil)
	assert.Equal(t, "v1.2.3", root.Version)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"login", "logout", "status", "get", "post", "put", "patch", "delete"}, names)
}
