package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotus-sign/filsign/pkg/log"
)

// setConfigDir points LoadConfig at an empty directory.
func setConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirPathEnv, dir)
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	setConfigDir(t)

	cfg, err := LoadConfig(log.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, "https://api.node.glif.io/rpc/v0", cfg.Lotus.URL)
	assert.Equal(t, 30*time.Second, cfg.Lotus.Timeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "lotus_sign.db", cfg.Database.Name)
	assert.EqualValues(t, 5, cfg.Confidence)
	assert.False(t, cfg.LenientAddresses)
}

func TestLoadConfigEnv(t *testing.T) {
	setConfigDir(t)
	t.Setenv("FILSIGN_LOTUS_HOST", "ws://127.0.0.1:1234/rpc/v1")
	t.Setenv("FILSIGN_LOTUS_TOKEN", "secret")
	t.Setenv("FILSIGN_CONFIDENCE", "10")
	t.Setenv("FILSIGN_LENIENT_ADDRESSES", "true")
	t.Setenv("FILSIGN_DATABASE_URL", "postgres://alice:pw@db.local:6543/wallet")

	cfg, err := LoadConfig(log.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:1234/rpc/v1", cfg.Lotus.URL)
	assert.Equal(t, "Bearer secret", cfg.Lotus.Header().Get("Authorization"))
	assert.EqualValues(t, 10, cfg.Confidence)
	assert.True(t, cfg.LenientAddresses)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "wallet", cfg.Database.Name)
}

func TestLoadConfigFile(t *testing.T) {
	dir := setConfigDir(t)
	t.Setenv("FILSIGN_CONFIDENCE", "2")

	yaml := `
lotus:
  host: https://lotus.example.com/rpc/v0
database:
  driver: sqlite
  name: keys.db
confidence: 7
metrics_pushgateway: http://127.0.0.1:9091
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(log.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, "https://lotus.example.com/rpc/v0", cfg.Lotus.URL)
	assert.Equal(t, "keys.db", cfg.Database.Name)
	assert.Equal(t, "http://127.0.0.1:9091", cfg.MetricsPushgateway)
	// the environment wins over the file
	assert.EqualValues(t, 2, cfg.Confidence)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := setConfigDir(t)
	t.Setenv("FILSIGN_WALLET_PASSWORD", "")
	require.NoError(t, os.Unsetenv("FILSIGN_WALLET_PASSWORD"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FILSIGN_WALLET_PASSWORD=from-dotenv\n"), 0o600))

	cfg, err := LoadConfig(log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.WalletPassword)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		setConfigDir(t)
		t.Setenv("FILSIGN_DATABASE_DRIVER", "mysql")

		_, err := LoadConfig(log.NewNoopLogger())
		assert.ErrorContains(t, err, "Driver")
	})

	t.Run("lotus url", func(t *testing.T) {
		setConfigDir(t)
		t.Setenv("FILSIGN_LOTUS_HOST", "not a url")

		_, err := LoadConfig(log.NewNoopLogger())
		assert.ErrorContains(t, err, "URL")
	})

	t.Run("database url", func(t *testing.T) {
		setConfigDir(t)
		t.Setenv("FILSIGN_DATABASE_URL", "mysql://db.local/wallet")

		_, err := LoadConfig(log.NewNoopLogger())
		assert.Error(t, err)
	})
}
