package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServiceURL)
	assert.Equal(t, 300, cfg.MnemonicTTL)
	assert.Equal(t, 3600, cfg.WalletTTL)
	assert.Equal(t, 15, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WALLETSESSION_SERVICE_URL", "https://auth.example.com")
	t.Setenv("WALLETSESSION_MNEMONIC_TTL", "120")
	t.Setenv("WALLETSESSION_DATA_DIR", "/tmp/ws")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.ServiceURL)
	assert.Equal(t, 120, cfg.MnemonicTTL)
	assert.Equal(t, "/tmp/ws/session.db", cfg.DatabasePath())
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("WALLETSESSION_WALLET_TTL", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLETSESSION_WALLET_TTL")
}

func TestLoad_IgnoresUnparsableInt(t *testing.T) {
	t.Setenv("WALLETSESSION_HTTP_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.HTTPTimeout)
}
