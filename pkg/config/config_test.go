package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDBDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("DB_MAX_IDLE_CONNS", "")
	t.Setenv("DB_NAME", "vault")

	cfg, err := LoadConfigDB()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "vault", cfg.Name)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
}

func TestLoadConfigDBInvalidPort(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_PORT", "abc")

	_, err := LoadConfigDB()
	assert.ErrorContains(t, err, "invalid DB_PORT")
}

func TestLoadConfigServer(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("TX_RETRY_ATTEMPTS", "3")
	t.Setenv("TX_RETRY_DELAY", "5ms")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("TLS_CERT_FILE", "")
	t.Setenv("TLS_KEY_FILE", "")

	cfg, err := LoadConfigServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, uint(3), cfg.TxRetryAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.TxRetryDelay)
}

func TestLoadConfigServerRequiresSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfigServer()
	assert.Error(t, err)
}

func TestLoadConfigServerRejectsUnknownStorage(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := LoadConfigServer()
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestLoadConfigServerTLS(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("TLS_CERT_FILE", "server.crt")
	t.Setenv("TLS_KEY_FILE", "")

	_, err := LoadConfigServer()
	assert.ErrorContains(t, err, "TLS_CERT_FILE")

	t.Setenv("TLS_KEY_FILE", "server.key")
	cfg, err := LoadConfigServer()
	require.NoError(t, err)
	assert.True(t, cfg.TLSEnabled())
	assert.Equal(t, "server.crt", cfg.TLSCertFile)
	assert.Equal(t, "server.key", cfg.TLSKeyFile)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("REDIS_CHANNEL", "")
	// godotenv never overrides variables already present
	os.Unsetenv("REDIS_CHANNEL")
	require.NoError(t, os.WriteFile("config.env", []byte("REDIS_CHANNEL=vault.test\n"), 0o600))

	cfg, err := LoadConfigServer()
	require.NoError(t, err)
	assert.Equal(t, "vault.test", cfg.RedisChannel)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
