// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("HLSGATE_TEST_STR", "from-env")
		assert.Equal(t, "from-env", ParseString("HLSGATE_TEST_STR", "default"))
	})

	t.Run("empty env falls back", func(t *testing.T) {
		t.Setenv("HLSGATE_TEST_STR", "")
		assert.Equal(t, "default", ParseString("HLSGATE_TEST_STR", "default"))
	})

	t.Run("unset falls back", func(t *testing.T) {
		assert.Equal(t, "default", ParseString("HLSGATE_TEST_UNSET", "default"))
	})
}

func TestParseInt(t *testing.T) {
	t.Setenv("HLSGATE_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("HLSGATE_TEST_INT", 7))

	t.Setenv("HLSGATE_TEST_INT", "not-a-number")
	assert.Equal(t, 7, ParseInt("HLSGATE_TEST_INT", 7))
}

func TestParseBool(t *testing.T) {
	t.Setenv("HLSGATE_TEST_BOOL", "true")
	assert.True(t, ParseBool("HLSGATE_TEST_BOOL", false))

	t.Setenv("HLSGATE_TEST_BOOL", "bogus")
	assert.False(t, ParseBool("HLSGATE_TEST_BOOL", false))
}

func TestParseDuration(t *testing.T) {
	t.Run("go duration format", func(t *testing.T) {
		t.Setenv("HLSGATE_TEST_DUR", "5s")
		assert.Equal(t, 5*time.Second, ParseDuration("HLSGATE_TEST_DUR", time.Minute))
	})

	t.Run("bare integer means seconds", func(t *testing.T) {
		t.Setenv("HLSGATE_TEST_DUR", "30")
		assert.Equal(t, 30*time.Second, ParseDuration("HLSGATE_TEST_DUR", time.Minute))
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv("HLSGATE_TEST_DUR", "soon")
		assert.Equal(t, time.Minute, ParseDuration("HLSGATE_TEST_DUR", time.Minute))
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.ListenAddr)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.Retries)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTLManifest)
	assert.Equal(t, "proxy?url=", cfg.Proxy.BasePath)
	assert.Equal(t, 3, cfg.Proxy.PrefetchSegments)
	assert.True(t, cfg.Proxy.InjectStartTag)
	assert.Equal(t, []string{"m3u8", "m3u8_native"}, cfg.Extraction.SupportedProtocols)
	assert.Equal(t, "test", cfg.Version)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listenAddr: ":9000"
http:
  timeoutSeconds: 30
cache:
  ttlM3U8Seconds: 120
proxy:
  injectStartTag: false
`), 0o600))

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 120*time.Second, cfg.Cache.TTLManifest)
	assert.False(t, cfg.Proxy.InjectStartTag)
	// Untouched keys keep defaults.
	assert.Equal(t, 3, cfg.HTTP.Retries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listenAddr: \":9000\"\n"), 0o600))

	t.Setenv("HLSGATE_LISTEN", ":7000")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := NewLoader("/nonexistent/config.yaml", "test").Load()
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative retries", "HLSGATE_HTTP_RETRIES", "-1"},
		{"zero prefetch", "HLSGATE_PROXY_PREFETCH_SEGMENTS", "0"},
		{"zero buffer", "HLSGATE_PROXY_BUFFER_SIZE", "0"},
		{"zero workers", "HLSGATE_EXTRACT_WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := NewLoader("", "test").Load()
			assert.Error(t, err)
		})
	}
}
