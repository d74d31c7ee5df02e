package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvString(t *testing.T) {
	os.Setenv("TEST_API_KEY", "secret-key-123")
	os.Setenv("TEST_PATH", "/path/to/data")
	defer os.Unsetenv("TEST_API_KEY")
	defer os.Unsetenv("TEST_PATH")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand ${VAR} syntax",
			input:    "${TEST_API_KEY}",
			expected: "secret-key-123",
		},
		{
			name:     "expand $VAR syntax",
			input:    "$TEST_API_KEY",
			expected: "secret-key-123",
		},
		{
			name:     "expand in middle of string",
			input:    "key:${TEST_API_KEY}:end",
			expected: "key:secret-key-123:end",
		},
		{
			name:     "expand multiple variables",
			input:    "${TEST_API_KEY}:${TEST_PATH}",
			expected: "secret-key-123:/path/to/data",
		},
		{
			name:     "leave non-existent var unchanged",
			input:    "${NONEXISTENT_VAR}",
			expected: "${NONEXISTENT_VAR}",
		},
		{
			name:     "handle empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "handle string without variables",
			input:    "plain-text",
			expected: "plain-text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvString(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("GEMINI_KEY", "AIza-test-123")
	os.Setenv("HOOK_SECRET", "hunter2")
	defer os.Unsetenv("GEMINI_KEY")
	defer os.Unsetenv("HOOK_SECRET")

	cfg := Config{
		Server: ServerConfig{WebhookSecret: "${HOOK_SECRET}"},
		Gemini: GeminiConfig{APIKey: "${GEMINI_KEY}"},
		Store:  StoreConfig{Path: "$HOME/state.db"},
	}

	expanded := expandEnvVars(cfg)

	assert.Equal(t, "hunter2", expanded.Server.WebhookSecret)
	assert.Equal(t, "AIza-test-123", expanded.Gemini.APIKey)
	if home := os.Getenv("HOME"); home != "" {
		assert.Equal(t, home+"/state.db", expanded.Store.Path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "10s", cfg.Server.ShutdownTimeout)
	assert.Equal(t, "120s", cfg.Registry.TTL)
	assert.Equal(t, "60s", cfg.Registry.SweepInterval)
	assert.Equal(t, 5, cfg.Registry.CodeAttempts)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "60s", cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "auto", cfg.Observability.Logging.Format)
	assert.True(t, cfg.Observability.Logging.RedactAPIKeys)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  addr: ":9090"
  webhookSecret: "file-secret"
registry:
  ttl: "300s"
github:
  appID: 12345
  privateKeyPath: "/etc/wizardd/app.pem"
gemini:
  apiKey: "AIza-from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wizardd.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "file-secret", cfg.Server.WebhookSecret)
	assert.Equal(t, "300s", cfg.Registry.TTL)
	assert.Equal(t, int64(12345), cfg.GitHub.AppID)
	// File values merge over defaults, not replace them.
	assert.Equal(t, "60s", cfg.Registry.SweepInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `
gemini:
  apiKey: "from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wizardd.yaml"), []byte(content), 0o644))

	t.Setenv("WIZARD_GEMINI_APIKEY", "from-env")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wizardd.yaml"), []byte("server: [not a map"), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestLocateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wizardd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	assert.Equal(t, path, locateConfigFile("wizardd", []string{dir}))
	assert.Equal(t, "", locateConfigFile("wizardd", []string{t.TempDir()}))
}
