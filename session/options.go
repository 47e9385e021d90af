package session

import (
	"log/slog"

	"github.com/benbjohnson/clock"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.log = logger
	}
}

// WithClock sets the clock used for secret expiry timers.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clk = clk
	}
}

// WithThemeSetter sets the theme collaborator synchronized from the user's
// dark-mode preference.
func WithThemeSetter(theme ThemeSetter) Option {
	return func(m *Manager) {
		m.theme = theme
	}
}

// WithLocalizer sets the i18n collaborator synchronized from the user's
// stored site language.
func WithLocalizer(localizer Localizer) Option {
	return func(m *Manager) {
		m.localizer = localizer
	}
}

// WithOnLogout sets a callback invoked after Logout completes, typically
// for post-logout navigation.
func WithOnLogout(fn func()) Option {
	return func(m *Manager) {
		m.onLogout = fn
	}
}

// WithAuthStateListener sets a callback invoked with the new counter value
// each time the auth-state counter is bumped (successful login, logout).
// Dependents use it to schedule a fresh CheckAuth.
func WithAuthStateListener(fn func(uint64)) Option {
	return func(m *Manager) {
		m.onAuthState = fn
	}
}

// WithDefaultMnemonicTTL overrides the built-in default mnemonic duration
// (seconds) used when no persisted setting exists.
func WithDefaultMnemonicTTL(seconds int) Option {
	return func(m *Manager) {
		m.defaultMnemonicTTL = seconds
	}
}

// WithDefaultWalletTTL overrides the built-in default wallet duration
// (seconds) used when no persisted setting exists.
func WithDefaultWalletTTL(seconds int) Option {
	return func(m *Manager) {
		m.defaultWalletTTL = seconds
	}
}

// WithMnemonicExpiryListener sets a hook invoked when the mnemonic store's
// timer fires.
func WithMnemonicExpiryListener(fn func()) Option {
	return func(m *Manager) {
		m.onMnemonicExpire = fn
	}
}

// WithWalletExpiryListener sets a hook invoked when the wallet store's
// timer fires.
func WithWalletExpiryListener(fn func()) Option {
	return func(m *Manager) {
		m.onWalletExpire = fn
	}
}
