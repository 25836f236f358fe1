package main

import (
	"os"
	"testing"
	"time"

	"github.com/jupark12/go-print-relay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "broker")
	assert.Contains(t, names, "agent")
}

func TestAgentFlagsOverrideDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	v := config.New()
	var cfgFile string
	cmd := newAgentCmd(v, &cfgFile)
	require.NoError(t, cmd.ParseFlags([]string{"--device-id", "lobby", "--poll-interval", "2s"}))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "lobby", cfg.Agent.DeviceID)
	assert.Equal(t, 2*time.Second, cfg.Agent.PollInterval)
	// unset flags keep the configured defaults
	assert.Equal(t, 10*time.Second, cfg.Agent.RetryInterval)
	assert.Equal(t, "http://localhost:5000", cfg.Agent.ServerURL)
}

func TestBrokerFlagsOverrideDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	v := config.New()
	var cfgFile string
	cmd := newBrokerCmd(v, &cfgFile)
	require.NoError(t, cmd.ParseFlags([]string{"--addr", ":7000"}))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Broker.Addr)
	assert.Equal(t, time.Minute, cfg.Broker.ActivityWindow)
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
