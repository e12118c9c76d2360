package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvString(t *testing.T) {
	os.Setenv("TEST_ENDPOINT", "http://patcher.internal:8080")
	os.Setenv("TEST_PATH", "/path/to/data")
	defer os.Unsetenv("TEST_ENDPOINT")
	defer os.Unsetenv("TEST_PATH")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand ${VAR} syntax",
			input:    "${TEST_ENDPOINT}",
			expected: "http://patcher.internal:8080",
		},
		{
			name:     "expand $VAR syntax",
			input:    "$TEST_PATH",
			expected: "/path/to/data",
		},
		{
			name:     "expand in middle of string",
			input:    "base:${TEST_PATH}:end",
			expected: "base:/path/to/data:end",
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

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Patcher.Mode)
	assert.Equal(t, "60s", cfg.Patcher.Timeout)
	assert.Equal(t, 3, cfg.Patcher.MaxRetries)
	assert.Equal(t, 3, cfg.Patcher.ContextLines)
	assert.Equal(t, ".", cfg.Git.RepositoryDir)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "out", cfg.Output.Directory)
	assert.Equal(t, "both", cfg.Output.Format)
	assert.True(t, cfg.Output.RedactSecrets)
	assert.Equal(t, 5, cfg.Display.CollapseThreshold)
	assert.Equal(t, 200*1024, cfg.Limits.MaxFileBytes)
	assert.Equal(t, 50, cfg.Limits.MaxSuggestionsPerFile)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `patcher:
  mode: remote
  endpoint: http://localhost:9000
  timeout: 30s
display:
  collapseThreshold: 8
output:
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(content), 0o600))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "remote", cfg.Patcher.Mode)
	assert.Equal(t, "http://localhost:9000", cfg.Patcher.Endpoint)
	assert.Equal(t, "30s", cfg.Patcher.Timeout)
	assert.Equal(t, 8, cfg.Display.CollapseThreshold)
	assert.Equal(t, "json", cfg.Output.Format)

	// Defaults still apply for unset keys
	assert.Equal(t, 3, cfg.Patcher.MaxRetries)
}

func TestLoadExpandsEnvInFile(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("PATCH_ENDPOINT", "http://patcher:7000")
	defer os.Unsetenv("PATCH_ENDPOINT")

	content := `patcher:
  mode: remote
  endpoint: ${PATCH_ENDPOINT}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(content), 0o600))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "http://patcher:7000", cfg.Patcher.Endpoint)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(":\tnot yaml"), 0o600))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestPatcherDurationHelpers(t *testing.T) {
	cfg := Config{}
	cfg.Patcher.Timeout = "15s"
	cfg.Patcher.InitialBackoff = "500ms"
	cfg.Patcher.MaxBackoff = "8s"

	assert.Equal(t, 15*time.Second, cfg.PatcherTimeout())
	initial, max := cfg.PatcherBackoff()
	assert.Equal(t, 500*time.Millisecond, initial)
	assert.Equal(t, 8*time.Second, max)

	// Unparseable values fall back to defaults
	cfg.Patcher.Timeout = "bogus"
	assert.Equal(t, 60*time.Second, cfg.PatcherTimeout())
}
