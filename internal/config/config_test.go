package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atinyakov/suborg-shortener/internal/config"
)

var envKeys = []string{
	"CONFIG", "SERVER_ADDRESS", "BASE_URL", "DATABASE_DSN", "DRIFT_LOG_PATH",
	"ENABLE_PPROF", "ENABLE_HTTPS", "LOG_LEVEL", "ENDPOINT_LENGTH", "ALLOCATION_ATTEMPTS",
	"DNS_TIMEOUT", "DNS_CACHE_TTL", "SKIP_DNS_CHECK", "RATE_LIMIT", "RESERVED_WORDS",
	"RECONCILE_INTERVAL",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseArgs(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		opts, err := config.ParseArgs(nil)
		require.NoError(t, err)
		require.Equal(t, config.Default(), opts)

		require.Equal(t, "localhost:8080", opts.Port)
		require.Equal(t, "http://localhost:8080", opts.ResultHostname)
		require.Equal(t, 8, opts.EndpointLength)
		require.Equal(t, 10, opts.AllocationAttempts)
		require.Equal(t, 2*time.Second, opts.DNSTimeout)
		require.Equal(t, 5*time.Minute, opts.DNSCacheTTL)
		require.Equal(t, 10*time.Second, opts.ReconcileInterval)
	})

	t.Run("flags", func(t *testing.T) {
		clearEnv(t)

		opts, err := config.ParseArgs([]string{"-a", ":9090", "-b", "https://sho.rt", "-d", "postgres://x", "-f", "/tmp/drift.log", "-p", "-l", "debug", "-n", "6"})
		require.NoError(t, err)
		require.Equal(t, ":9090", opts.Port)
		require.Equal(t, "https://sho.rt", opts.ResultHostname)
		require.Equal(t, "postgres://x", opts.DatabaseDSN)
		require.Equal(t, "/tmp/drift.log", opts.DriftLogPath)
		require.True(t, opts.EnablePprof)
		require.False(t, opts.EnableHTTPS)
		require.Equal(t, "debug", opts.LogLevel)
		require.Equal(t, 6, opts.EndpointLength)
	})

	t.Run("env overrides flags", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SERVER_ADDRESS", "127.0.0.1:9999")
		t.Setenv("ENABLE_HTTPS", "true")
		t.Setenv("DNS_TIMEOUT", "500ms")
		t.Setenv("RESERVED_WORDS", "billing, Team ,")
		t.Setenv("ALLOCATION_ATTEMPTS", "9")

		opts, err := config.ParseArgs([]string{"-a", ":9090"})
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:9999", opts.Port)
		require.True(t, opts.EnableHTTPS)
		require.Equal(t, 500*time.Millisecond, opts.DNSTimeout)
		require.Equal(t, []string{"billing", "Team"}, opts.ReservedWords)
		require.Equal(t, 9, opts.AllocationAttempts)
	})

	t.Run("config file below flags", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, `{
			"server_address": "10.0.0.1:8081",
			"base_url": "http://testhost",
			"skip_dns_check": true,
			"reserved_words": ["ops"],
			"reconcile_interval": "1m",
			"endpoint_length": 10
		}`)

		opts, err := config.ParseArgs([]string{"-c", path, "-n", "7"})
		require.NoError(t, err)
		require.Equal(t, "10.0.0.1:8081", opts.Port)
		require.Equal(t, "http://testhost", opts.ResultHostname)
		require.True(t, opts.SkipDNSCheck)
		require.Equal(t, []string{"ops"}, opts.ReservedWords)
		require.Equal(t, time.Minute, opts.ReconcileInterval)
		require.Equal(t, 7, opts.EndpointLength)
		require.Equal(t, path, opts.Config)
	})

	t.Run("config from env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG", writeConfig(t, `{"rate_limit": "5-S"}`))

		opts, err := config.ParseArgs(nil)
		require.NoError(t, err)
		require.Equal(t, "5-S", opts.RateLimit)
	})
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "unknown flag", args: []string{"-z"}},
		{name: "missing file", args: []string{"-c", "/nonexistent/cfg.json"}},
		{name: "bad bool", env: map[string]string{"ENABLE_PPROF": "maybe"}},
		{name: "bad duration", env: map[string]string{"RECONCILE_INTERVAL": "soon"}},
		{name: "zero length", args: []string{"-n", "0"}},
		{name: "negative attempts", env: map[string]string{"ALLOCATION_ATTEMPTS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.ParseArgs(tt.args)
			require.Error(t, err)
		})
	}

	t.Run("malformed file", func(t *testing.T) {
		clearEnv(t)
		_, err := config.ParseArgs([]string{"-c", writeConfig(t, `{"dns_timeout": 5}`)})
		require.Error(t, err)
	})
}
