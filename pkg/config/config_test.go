package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points Load at a file that does not exist.
func noEnvFile(t *testing.T) {
	t.Setenv(EnvPrefix+"ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_defaults(t *testing.T) {
	noEnvFile(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.TLSEnabled())
}

func TestLoad_precedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ARENA_RECORD_EVERY=9\nARENA_PORT=7000\n"), 0o600))
	t.Setenv(EnvPrefix+"ENV_FILE", envFile)
	// variables loaded from the file are cleaned up with the rest
	t.Setenv(EnvPrefix+"RECORD_EVERY", "")
	os.Unsetenv(EnvPrefix + "RECORD_EVERY")
	t.Setenv(EnvPrefix+"PORT", "9000")
	t.Setenv(EnvPrefix+"HEARTBEAT_INTERVAL", "5s")
	t.Setenv(EnvPrefix+"RATE_LIMIT", "2.5")

	cfg, err := Load([]string{"-port", "9100", "-log-level", "debug"})
	require.NoError(t, err)

	// the .env file never overrides a variable that is already set
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 9, cfg.RecordEvery)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad int", env: map[string]string{"PORT": "eighty"}},
		{name: "bad duration", env: map[string]string{"HEARTBEAT_INTERVAL": "soon"}},
		{name: "bad float", env: map[string]string{"RATE_LIMIT": "fast"}},
		{name: "port out of range", args: []string{"-port", "70000"}},
		{name: "cert without key", args: []string{"-tls-cert-file", "cert.pem"}},
		{name: "negative record interval", args: []string{"-record-every", "-1"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noEnvFile(t)
			for k, v := range tt.env {
				t.Setenv(EnvPrefix+k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := &Config{AllowOrigin: " http://a.test, ,http://b.test "}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
}
