package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	s, err := m.Load()
	require.NoError(t, err)

	def := DefaultSettings()
	assert.Equal(t, def.Server, s.Server)
	assert.Equal(t, def.Backends.Poll, s.Backends.Poll)
	assert.Equal(t, 30*time.Second, s.Backends.RequestTimeout)
	assert.Equal(t, RateLimitSettings{RPS: 4, Burst: 4}, s.Backends.RateLimits["realdebrid"])
	assert.True(t, s.Ranking.PreferCached)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m := NewManager(path)

	s := DefaultSettings()
	s.Server.Port = 9191
	s.Log.Level = "DEBUG"
	s.Backends.HealthTimeout = 3 * time.Second
	s.Backends.RateLimits["torbox"] = RateLimitSettings{RPS: 1.5, Burst: 2}
	s.Backends.BaseURLs = map[string]string{"realdebrid": "http://127.0.0.1:9999/rest/1.0"}
	s.Ranking.PreferredHDR = "DV"
	s.Ranking.PreferSpatialAudio = true
	require.NoError(t, m.Save(s))

	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, got.Server.Port)
	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, 3*time.Second, got.Backends.HealthTimeout)
	assert.Equal(t, RateLimitSettings{RPS: 1.5, Burst: 2}, got.Backends.RateLimits["torbox"])
	assert.Equal(t, "http://127.0.0.1:9999/rest/1.0", got.Backends.BaseURLs["realdebrid"])
	assert.Equal(t, "DV", got.Ranking.PreferredHDR)
	assert.True(t, got.Ranking.PreferSpatialAudio)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESOLVARR_SERVER_PORT", "8181")
	t.Setenv("RESOLVARR_BACKENDS_POLL_MAX_ATTEMPTS", "12")
	t.Setenv("RESOLVARR_SECRETS_PASSPHRASE", "hunter2")

	s, err := NewManager(filepath.Join(t.TempDir(), "config.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8181, s.Server.Port)
	assert.EqualValues(t, 12, s.Backends.Poll.MaxAttempts)
	assert.Equal(t, "hunter2", s.Secrets.Passphrase)
}

func TestNewManagerPathFallbacks(t *testing.T) {
	t.Setenv(ConfigPathEnv, "/etc/resolvarr/config.yaml")
	assert.Equal(t, "/etc/resolvarr/config.yaml", NewManager("").Path())
	assert.Equal(t, "custom.yaml", NewManager("custom.yaml").Path())

	t.Setenv(ConfigPathEnv, "")
	assert.Equal(t, "config.yaml", NewManager("").Path())
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err := NewManager(path).Load()
	assert.Error(t, err)
}
