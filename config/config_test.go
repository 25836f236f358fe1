package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":5000", cfg.Broker.Addr)
	assert.Equal(t, int64(16<<20), cfg.Broker.MaxUploadBytes)
	assert.Equal(t, time.Minute, cfg.Broker.ActivityWindow)
	assert.Empty(t, cfg.Broker.DatabaseURL)

	assert.Equal(t, "pi_printer_001", cfg.Agent.DeviceID)
	assert.Equal(t, "http://localhost:5000", cfg.Agent.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.Agent.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Agent.RetryInterval)
	assert.Equal(t, "./downloads", cfg.Agent.WorkDir)
	assert.Equal(t, "lp", cfg.Agent.LPPath)

	assert.NoError(t, cfg.ValidateBroker())
	assert.NoError(t, cfg.ValidateAgent())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := `
log:
  level: debug
broker:
  addr: ":8080"
  activity_window: 30s
agent:
  device_id: lobby
  server_url: http://broker:5000/
  poll_interval: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Broker.Addr)
	assert.Equal(t, 30*time.Second, cfg.Broker.ActivityWindow)
	assert.Equal(t, "lobby", cfg.Agent.DeviceID)
	assert.Equal(t, "http://broker:5000", cfg.Agent.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.Agent.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Agent.RetryInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PRINT_RELAY_AGENT_DEVICE_ID", "basement")
	t.Setenv("PRINT_RELAY_BROKER_ADDR", ":9000")
	t.Setenv("PRINT_RELAY_AGENT_POLL_INTERVAL", "3s")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "basement", cfg.Agent.DeviceID)
	assert.Equal(t, ":9000", cfg.Broker.Addr)
	assert.Equal(t, 3*time.Second, cfg.Agent.PollInterval)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	bad := *cfg
	bad.Agent.DeviceID = ""
	assert.Error(t, bad.ValidateAgent())

	bad = *cfg
	bad.Agent.PollInterval = 0
	assert.Error(t, bad.ValidateAgent())

	bad = *cfg
	bad.Broker.MaxUploadBytes = 0
	assert.Error(t, bad.ValidateBroker())

	bad = *cfg
	bad.Broker.ActivityWindow = -time.Second
	assert.Error(t, bad.ValidateBroker())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("chdir: restoring %s: %v", prev, err)
		}
	})
}
