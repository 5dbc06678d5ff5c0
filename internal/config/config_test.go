package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/bridge.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/bridge.db", cfg.Database.Path)
	assert.Equal(t, DefaultTimeout, cfg.Broker.Timeout)
	assert.Equal(t, DefaultPollInterval, cfg.Broker.PollInterval)
	assert.Equal(t, DefaultHistoryDays, cfg.Broker.HistoryDays)
	assert.False(t, cfg.Relay.Enabled)
}

func TestLoad_Durations(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/bridge.db"
broker:
  timeout: "10m"
  poll_interval: "250ms"
  history_days: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Broker.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.PollInterval)
	assert.Equal(t, 0, cfg.Broker.HistoryDays)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/bridge.db"
broker:
  timeout: "not-a-duration"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing timeout")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_RELAY_TOKEN", "syt_secret")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/bridge.db"
relay:
  enabled: true
  homeserver: "https://matrix.example.org"
  user_id: "@bridge:example.org"
  access_token: "${TEST_RELAY_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "syt_secret", cfg.Relay.AccessToken)
}

func TestLoad_RelayValidation(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/bridge.db"
relay:
  enabled: true
  homeserver: "https://matrix.example.org"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "relay.user_id")
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/bridge.db"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "server.http_addr")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
