package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Digital-Defiance/walletsession/authclient"
	"github.com/Digital-Defiance/walletsession/internal/config"
	"github.com/Digital-Defiance/walletsession/session"
	bboltstorage "github.com/Digital-Defiance/walletsession/storage/bbolt"
)

var rootCmd = &cobra.Command{
	Use:   "walletsession",
	Short: "walletsession manages a wallet-backed login session",
	Long: `A client for challenge-signature authentication services: register
accounts, log in with a recovery phrase or a local password, and inspect or
end the stored session.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newManager builds the session manager over the configured bbolt store and
// HTTP auth client. The returned cleanup closes the store.
func newManager() (*session.Manager, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := bboltstorage.NewStoreFromFile(cfg.DatabasePath(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	client, err := authclient.New(cfg.ServiceURL,
		authclient.WithLogger(logger),
		authclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second}),
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	m := session.New(store, client,
		session.WithLogger(logger),
		session.WithDefaultMnemonicTTL(cfg.MnemonicTTL),
		session.WithDefaultWalletTTL(cfg.WalletTTL),
	)
	return m, func() { store.Close() }, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
