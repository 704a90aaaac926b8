package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"parses duration", "90s", 90 * time.Second},
		{"uses default for empty", "", time.Minute},
		{"uses default for garbage", "soon", time.Minute},
		{"uses default for negative", "-5s", time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv("TEST_DURATION", tc.envValue)
			}

			assert.Equal(t, tc.expected, getEnvAsDurationOrDefault("TEST_DURATION", time.Minute))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "rest", cfg.GeminiTransport)
	assert.Equal(t, "Hebrew", cfg.ScriptLanguage)
	assert.Equal(t, "@hourly", cfg.CachePurgeSchedule)
	assert.GreaterOrEqual(t, cfg.GeminiConcurrentReqs, 1)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoad_PostgresNeedsDatabaseURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_RejectsUnknownTransport(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("GEMINI_TRANSPORT", "carrier-pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "GEMINI_TRANSPORT")
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recap.yaml")
	content := `
genre_defaults:
  western:
    clip_duration: 4
    interval_pattern: 9
script_instructions: "Keep it short."
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	overlay, err := LoadOverlay(path)
	require.NoError(t, err)
	assert.Equal(t, GenreDefault{ClipDuration: 4, IntervalPattern: 9}, overlay.GenreDefaults["western"])
	assert.Equal(t, "Keep it short.", overlay.ScriptInstructions)
}

func TestLoadOverlay_RejectsNonPositiveDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("genre_defaults:\n  noir:\n    clip_duration: 0\n    interval_pattern: 5\n"), 0644))

	_, err := LoadOverlay(path)
	assert.ErrorContains(t, err, "noir")
}

func TestLoadOverlay_MissingFile(t *testing.T) {
	_, err := LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
