package main

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
	path := filepath.Join(t.TempDir(), "saturn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
base_url: "https://social.example"
database_path: "/var/lib/saturn/saturn.db"
log_level: "debug"
max_clock_skew: 2m
actor:
  username: "relay"
  private_key_path: "/etc/saturn/relay.pem"
delivery:
  workers: 8
  max_attempts: 5
  backoff_base: 10s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.MaxClockSkew)
	assert.Equal(t, 8, cfg.Delivery.Workers)
	assert.Equal(t, 10*time.Second, cfg.Delivery.BackoffBase)
	assert.Equal(t, "https://social.example/users/relay", cfg.ActorURI())
	assert.Equal(t, "https://social.example/users/relay#main-key", cfg.KeyID())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url: "https://social.example"
actor:
  username: "relay"
  private_key_path: "relay.pem"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.AutoAcceptFollows)
}

func TestLoadConfigValidation(t *testing.T) {
	for name, body := range map[string]string{
		"missing base_url": `
actor:
  username: "relay"
  private_key_path: "relay.pem"
`,
		"missing username": `
base_url: "https://social.example"
actor:
  private_key_path: "relay.pem"
`,
		"missing key path": `
base_url: "https://social.example"
actor:
  username: "relay"
`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
