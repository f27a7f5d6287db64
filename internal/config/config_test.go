package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	path := writeConfig(t, `
http_port: "9090"
default_available: false
write_timeout: 3s
conversation_ttl: 15m
log_level: debug
keys_dir: `+filepath.Join(t.TempDir(), "keys")+`
db_path: `+filepath.Join(t.TempDir(), "p.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "8443", cfg.HTTPSPort)
	assert.False(t, cfg.DefaultAvailable)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ConversationTTL)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("HTTP_PORT", "7000")
	t.Setenv("DEFAULT_AVAILABLE", "true")
	t.Setenv("WRITE_TIMEOUT", "250ms")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	path := writeConfig(t, "http_port: \"9090\"\ndefault_available: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.HTTPPort)
	assert.True(t, cfg.DefaultAvailable)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.True(t, cfg.DefaultAvailable)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")

	path := writeConfig(t, "write_timeout: [1\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "write_timeout: -1s\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadOrGenerateJWTSecret_PersistsAcrossLoads(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	keysDir := filepath.Join(t.TempDir(), "keys")

	first := loadOrGenerateJWTSecret(keysDir)
	require.NotEmpty(t, first)

	second := loadOrGenerateJWTSecret(keysDir)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(keysDir, "jwt-secret.key"))
	require.NoError(t, err)
	assert.Equal(t, first, string(data))
}
