package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people-search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://xlhyimcjmnvz.manus.space/api", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Health.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, 3, cfg.Upload.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Upload.BackoffStep)
	assert.Equal(t, 10, cfg.Progress.Step)
	assert.Equal(t, 2*time.Second, cfg.Progress.Interval)
	assert.Equal(t, 90, cfg.Progress.Ceiling)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
base_url: http://localhost:8080/api
log_level: debug
upload:
  timeout: 5s
  max_attempts: 4
progress:
  interval: 500ms
`)
	t.Setenv("PEOPLE_SEARCH_UPLOAD_MAX_ATTEMPTS", "6")
	t.Setenv("PEOPLE_SEARCH_HEALTH_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, 6, cfg.Upload.MaxAttempts, "environment wins over the file")
	assert.Equal(t, 3*time.Second, cfg.Health.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Progress.Interval)
	assert.Equal(t, time.Second, cfg.Upload.BackoffStep, "unset keys keep their defaults")
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "zero attempts", env: map[string]string{"PEOPLE_SEARCH_UPLOAD_MAX_ATTEMPTS": "0"}},
		{name: "bad base url", env: map[string]string{"PEOPLE_SEARCH_BASE_URL": "not a url"}},
		{name: "ceiling above 100", env: map[string]string{"PEOPLE_SEARCH_PROGRESS_CEILING": "120"}},
		{name: "unknown log level", env: map[string]string{"PEOPLE_SEARCH_LOG_LEVEL": "loud"}},
		{name: "unparseable duration", env: map[string]string{"PEOPLE_SEARCH_UPLOAD_TIMEOUT": "soon"}},
		{name: "broken yaml", file: "upload: [unterminated"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeConfig(t, tc.file)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}
