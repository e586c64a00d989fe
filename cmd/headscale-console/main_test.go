package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ownding/headscale-console/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps config lookups away from the real home directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("HEADSCALE_CONSOLE_REST_API_KEY", "")
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	defer version.ForTesting("1.2.3")()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3\n", out)

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "headscale-console/v1.2.3", got["userAgent"])
}

func TestConfigInitWritesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "console.yaml")

	_, err := run(t, "config", "init", "--config", path, "--rest.url", "https://hs.example.com", "--rest.api-key", "secret-key")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://hs.example.com")
	assert.Contains(t, string(data), "secret-key")
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	_, err = run(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "config", "init", "--config", path, "--force", "--rpc.port", "9090")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://hs.example.com", "existing values survive a forced rewrite")
	assert.Contains(t, string(data), "9090")
}

func TestConfigShowMasksKey(t *testing.T) {
	isolate(t)

	out, err := run(t, "config", "show", "--json", "--rest.api-key", "abcdefghijkl")
	require.NoError(t, err)
	assert.NotContains(t, out, "abcdefghijkl")
	assert.Contains(t, out, "abcd********")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "********", maskSecret("short"))
	assert.Equal(t, "abcd********", maskSecret("abcdefghij"))
}

func TestUsersListOverREST(t *testing.T) {
	isolate(t)
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/user" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"id":"1","name":"alice"},{"id":2,"name":"bob","displayName":"Bob"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "users", "list", "--json",
		"--rest.url", srv.URL, "--rest.api-key", "k3y", "--rpc.enabled=false", "--log.level", "error")
	require.NoError(t, err)
	assert.Equal(t, "Bearer k3y", gotAuth)

	var users []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0]["name"])
	assert.Equal(t, "2", users[1]["id"])

	out, err = run(t, "users", "list",
		"--rest.url", srv.URL, "--rpc.enabled=false", "--log.level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "bob")
}

func TestNamespaceCreateWithoutRPC(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, "namespaces", "create", "team",
		"--rest.url", srv.URL, "--rpc.enabled=false", "--log.level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the rpc transport")
}

func TestStatusCommandFailsWhenNothingAnswers(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out, err := run(t, "status", "--json",
		"--rest.url", srv.URL, "--rpc.enabled=false", "--log.level", "error")
	require.Error(t, err)
	assert.Contains(t, out, `"mode": "none"`)
}
