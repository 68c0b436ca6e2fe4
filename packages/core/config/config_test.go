package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "apitest.yaml", `
baseURL: http://localhost:3333
appKey: test-secret
defaultGuard: api
timeout: 5000
followRedirects: false
headers:
  x-requested-with: apitest
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3333", cfg.BaseURL)
	assert.Equal(t, "test-secret", cfg.AppKey)
	assert.Equal(t, "api", cfg.DefaultGuard)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.GetFollowRedirects())
	assert.Equal(t, "apitest", cfg.Headers["x-requested-with"])

	// Unset fields keep their defaults.
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.Equal(t, "apitest-session", cfg.SessionCookie)
	assert.True(t, cfg.GetValidateSSL())
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".apitest.yaml", "baseURL: http://hidden.local\n")
	writeConfig(t, dir, "apitest.yaml", "baseURL: http://visible.local\n")

	cfg, err := FindAndLoad(dir)
	require.NoError(t, err)

	// Dotfile wins, it is earlier in the search order.
	assert.Equal(t, "http://hidden.local", cfg.BaseURL)
}

func TestFindAndLoad_NoFile(t *testing.T) {
	cfg, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}

func TestLoad_AppKeyFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "apitest.yaml", "appKey: from-file\n")

	t.Setenv(AppKeyEnv, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AppKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "apitest.yaml", "baseURL: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.BaseURL = "http://base.local"
	base.Headers = map[string]string{"a": "1"}

	merged := base.Merge(&Config{
		BaseURL:         "http://override.local",
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"b": "2"},
	})

	assert.Equal(t, "http://override.local", merged.BaseURL)
	assert.False(t, merged.GetFollowRedirects())
	assert.Equal(t, "1", merged.Headers["a"])
	assert.Equal(t, "2", merged.Headers["b"])

	// Merge with nil returns the receiver unchanged.
	assert.Equal(t, merged, merged.Merge(nil))
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apitest.yaml")

	cfg := DefaultConfig()
	cfg.BaseURL = "http://saved.local"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved.local", loaded.BaseURL)
}
