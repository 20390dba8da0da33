package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neonote/internal/domain/job"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 30, cfg.PollMaxAttempts)
	require.Equal(t, int64(52428800), cfg.UploadMaxBytes)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "session.json", filepath.Base(cfg.SessionFile))
	require.Equal(t, job.MaxUploadBytes, cfg.UploadPolicy().MaxBytes)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NEONOTE_API_BASE_URL", "https://api.neonote.test/")
	t.Setenv("NEONOTE_POLL_INTERVAL", "500ms")
	t.Setenv("NEONOTE_POLL_MAX_ATTEMPTS", "10")
	t.Setenv("NEONOTE_ALLOWED_ORIGINS", "http://localhost:5173, https://app.neonote.test")
	t.Setenv("NEONOTE_LOG_FORMAT", "JSON")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://api.neonote.test", cfg.APIBaseURL)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 10, cfg.PollMaxAttempts)
	require.Equal(t, []string{"http://localhost:5173", "https://app.neonote.test"}, cfg.AllowedOrigins)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFallsBackToWebClientVariable(t *testing.T) {
	t.Setenv("VITE_API_BASE_URL", "https://vite.neonote.test")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://vite.neonote.test", cfg.APIBaseURL)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.env")
	require.NoError(t, os.WriteFile(path, []byte("NEONOTE_LISTEN_ADDR=127.0.0.1:9999\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NEONOTE_LISTEN_ADDR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("NEONOTE_API_BASE_URL", "not a url")
	_, err := Load("")
	require.ErrorContains(t, err, "invalid configuration")

	t.Setenv("NEONOTE_API_BASE_URL", "http://localhost:8000")
	t.Setenv("NEONOTE_LOG_LEVEL", "verbose")
	_, err = Load("")
	require.Error(t, err)
}
