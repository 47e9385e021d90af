// Package config loads CLI configuration from environment variables, with
// an optional .env file picked up from the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceURL string // base URL of the auth service
	DataDir    string // directory holding the session database

	MnemonicTTL int // seconds, default mnemonic retention
	WalletTTL   int // seconds, default wallet retention
	HTTPTimeout int // seconds, per-request timeout

	LogLevel string // debug, info, warn, error
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		ServiceURL:  getEnv("WALLETSESSION_SERVICE_URL", "http://localhost:8080"),
		DataDir:     getEnv("WALLETSESSION_DATA_DIR", defaultDataDir()),
		MnemonicTTL: getEnvInt("WALLETSESSION_MNEMONIC_TTL", 300),
		WalletTTL:   getEnvInt("WALLETSESSION_WALLET_TTL", 3600),
		HTTPTimeout: getEnvInt("WALLETSESSION_HTTP_TIMEOUT", 15),
		LogLevel:    getEnv("WALLETSESSION_LOG_LEVEL", "info"),
	}

	for _, ttl := range []struct {
		name  string
		value int
	}{
		{"WALLETSESSION_MNEMONIC_TTL", cfg.MnemonicTTL},
		{"WALLETSESSION_WALLET_TTL", cfg.WalletTTL},
		{"WALLETSESSION_HTTP_TIMEOUT", cfg.HTTPTimeout},
	} {
		if ttl.value < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", ttl.name, ttl.value)
		}
	}

	return cfg, nil
}

// DatabasePath returns the path of the bbolt session database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "session.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletsession"
	}
	return filepath.Join(home, ".walletsession")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
