// Package session implements the client-side authentication and
// ephemeral-secret lifecycle: bearer-token state against a remote auth
// service, auto-expiring in-memory mnemonic and wallet slots, and
// password-derived wallet unlock.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/Digital-Defiance/walletsession/keybundle"
	"github.com/Digital-Defiance/walletsession/storage"
	"github.com/Digital-Defiance/walletsession/wallet"
)

// Built-in defaults, used when no persisted duration setting exists and no
// option overrides them.
const (
	DefaultMnemonicTTLSeconds = 300
	DefaultWalletTTLSeconds   = 3600
	DefaultCurrencyCode       = "USD"
)

// Durable-storage keys owned by the session layer.
const (
	tokenStorageKey       = "authToken"
	userStorageKey        = "currentUser"
	mnemonicTTLStorageKey = "mnemonicExpirationSeconds"
	walletTTLStorageKey   = "walletExpirationSeconds"
	currencyStorageKey    = "currencyCode"
)

// Manager aggregates the authentication state machine and the two expiring
// secret stores. Operations that call the remote service take a
// context.Context and block until the call resolves; state updates are
// applied only after resolution. Concurrent login attempts are not
// serialized: the last one to resolve wins.
type Manager struct {
	store storage.Store
	svc   AuthService
	clk   clock.Clock
	log   *slog.Logger

	theme       ThemeSetter
	localizer   Localizer
	onLogout    func()
	onAuthState func(uint64)

	onMnemonicExpire func()
	onWalletExpire   func()

	defaultMnemonicTTL int
	defaultWalletTTL   int

	mnemonicTTL *Setting[int]
	walletTTL   *Setting[int]
	currency    *Setting[string]

	mnemonic *ExpiringStore[*wallet.Mnemonic]
	wallet   *ExpiringStore[*wallet.Wallet]

	mu               sync.Mutex
	authenticated    bool
	checking         bool
	loading          bool
	token            string
	user             *UserRecord
	admin            bool
	authState        uint64
	lastSiteLanguage string
}

// Snapshot is a read-only projection of the session state for observers.
type Snapshot struct {
	Authenticated bool
	CheckingAuth  bool
	Loading       bool
	Admin         bool
	Token         string
	User          *UserRecord
	AuthState     uint64
}

// New creates a Manager over the given durable store and auth service.
func New(store storage.Store, svc AuthService, opts ...Option) *Manager {
	m := &Manager{
		store:              store,
		svc:                svc,
		defaultMnemonicTTL: DefaultMnemonicTTLSeconds,
		defaultWalletTTL:   DefaultWalletTTLSeconds,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clk == nil {
		m.clk = clock.New()
	}
	if m.log == nil {
		m.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	m.mnemonicTTL = NewIntSetting(store, mnemonicTTLStorageKey, m.defaultMnemonicTTL)
	m.walletTTL = NewIntSetting(store, walletTTLStorageKey, m.defaultWalletTTL)
	m.currency = NewStringSetting(store, currencyStorageKey, DefaultCurrencyCode)

	mnemonicOpts := []ExpiringStoreOption[*wallet.Mnemonic]{
		WithOnClear[*wallet.Mnemonic](func(mn *wallet.Mnemonic) { mn.Destroy() }),
	}
	if m.onMnemonicExpire != nil {
		mnemonicOpts = append(mnemonicOpts, WithOnExpire[*wallet.Mnemonic](m.onMnemonicExpire))
	}
	m.mnemonic = NewExpiringStore(m.clk, m.mnemonicTTL, mnemonicOpts...)

	walletOpts := []ExpiringStoreOption[*wallet.Wallet]{
		WithOnClear[*wallet.Wallet](func(w *wallet.Wallet) { w.Destroy() }),
	}
	if m.onWalletExpire != nil {
		walletOpts = append(walletOpts, WithOnExpire[*wallet.Wallet](m.onWalletExpire))
	}
	m.wallet = NewExpiringStore(m.clk, m.walletTTL, walletOpts...)

	return m
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Authenticated: m.authenticated,
		CheckingAuth:  m.checking,
		Loading:       m.loading,
		Admin:         m.admin,
		Token:         m.token,
		User:          m.user,
		AuthState:     m.authState,
	}
}

// AuthState returns the monotonically increasing auth-state counter.
func (m *Manager) AuthState() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authState
}

// Token returns the current in-memory bearer token ("" when absent).
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SetMnemonic installs a mnemonic into its expiring slot. See ExpiringStore.Set.
func (m *Manager) SetMnemonic(mn *wallet.Mnemonic, opts ...SetOption) CancelFunc {
	return m.mnemonic.Set(mn, opts...)
}

// ClearMnemonic empties the mnemonic slot and wipes the secret.
func (m *Manager) ClearMnemonic() { m.mnemonic.Clear() }

// Mnemonic returns the held mnemonic, if any.
func (m *Manager) Mnemonic() (*wallet.Mnemonic, bool) { return m.mnemonic.Get() }

// MnemonicRemaining returns the whole seconds before the mnemonic expires.
func (m *Manager) MnemonicRemaining() int { return m.mnemonic.Remaining() }

// MnemonicActive reports whether a mnemonic is held with a live timer.
func (m *Manager) MnemonicActive() bool { return m.mnemonic.Active() }

// SetWallet installs a wallet into its expiring slot. See ExpiringStore.Set.
func (m *Manager) SetWallet(w *wallet.Wallet, opts ...SetOption) CancelFunc {
	return m.wallet.Set(w, opts...)
}

// ClearWallet empties the wallet slot and wipes the key material.
func (m *Manager) ClearWallet() { m.wallet.Clear() }

// Wallet returns the held wallet, if any.
func (m *Manager) Wallet() (*wallet.Wallet, bool) { return m.wallet.Get() }

// WalletRemaining returns the whole seconds before the wallet expires.
func (m *Manager) WalletRemaining() int { return m.wallet.Remaining() }

// WalletActive reports whether a wallet is held with a live timer.
func (m *Manager) WalletActive() bool { return m.wallet.Active() }

// MnemonicExpirationSeconds returns the default mnemonic duration.
func (m *Manager) MnemonicExpirationSeconds() int { return m.mnemonicTTL.Value() }

// SetMnemonicExpirationSeconds persists a new default mnemonic duration.
func (m *Manager) SetMnemonicExpirationSeconds(seconds int) error {
	return m.mnemonicTTL.Set(seconds)
}

// WalletExpirationSeconds returns the default wallet duration.
func (m *Manager) WalletExpirationSeconds() int { return m.walletTTL.Value() }

// SetWalletExpirationSeconds persists a new default wallet duration.
func (m *Manager) SetWalletExpirationSeconds(seconds int) error {
	return m.walletTTL.Set(seconds)
}

// CurrencyCode returns the persisted display currency, independent of auth.
func (m *Manager) CurrencyCode() string { return m.currency.Value() }

// SetCurrencyCode persists the display currency.
func (m *Manager) SetCurrencyCode(code string) error { return m.currency.Set(code) }

// PasswordLoginAvailable reports whether an encrypted key bundle exists in
// durable storage.
func (m *Manager) PasswordLoginAvailable() bool {
	return keybundle.Available(m.store)
}

// CheckAuth verifies any stored bearer token against the remote service and
// settles the session into Authenticated or Unauthenticated. It is invoked
// on startup and whenever the auth-state counter is bumped. With no stored
// token it resolves locally without a network call. Verification errors are
// logged and converted into the unauthenticated state, never propagated.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	m.mu.Lock()
	m.checking = true
	m.mu.Unlock()

	tok, err := m.store.Get(tokenStorageKey)
	if err != nil {
		m.mnemonic.Clear()
		m.wallet.Clear()
		m.mu.Lock()
		m.user = nil
		m.admin = false
		m.token = ""
		m.authenticated = false
		m.loading = false
		m.checking = false
		m.mu.Unlock()
		return false
	}

	user, err := m.svc.VerifyToken(ctx, tok)
	var fe *FlowError
	switch {
	case err == nil:
		m.mu.Lock()
		m.user = user
		m.admin = user.IsAdmin()
		m.token = tok
		m.authenticated = true
		m.loading = false
		m.checking = false
		m.mu.Unlock()
		m.syncCollaborators(user)
		return true

	case errors.As(err, &fe):
		// Structured rejection: the token is dropped but the last user
		// record is deliberately left in place.
		m.mu.Lock()
		m.token = ""
		m.authenticated = false
		m.loading = false
		m.checking = false
		m.mu.Unlock()
		return false

	default:
		m.log.Error("token verification failed", "error", err)
		m.store.Delete(tokenStorageKey)
		// Mnemonic and wallet are intentionally left untouched on this path.
		m.mu.Lock()
		m.user = nil
		m.admin = false
		m.token = ""
		m.authenticated = false
		m.loading = false
		m.checking = false
		m.mu.Unlock()
		return false
	}
}

// DirectLoginParams parameterizes DirectLogin. TTL fields of 0 use the
// persisted default durations.
type DirectLoginParams struct {
	Phrase             string
	Username           string
	Email              string
	MnemonicTTLSeconds int
	WalletTTLSeconds   int
}

// DirectLogin authenticates by signing a server-issued challenge with the
// wallet derived from the mnemonic. On success the mnemonic and wallet are
// installed into their expiring slots, the token and user are persisted,
// and the auth-state counter is bumped. Failures are returned in the
// result, never propagated as errors.
func (m *Manager) DirectLogin(ctx context.Context, p DirectLoginParams) LoginResult {
	m.setLoading(true)
	defer m.setLoading(false)

	grant, err := m.svc.DirectLogin(ctx, DirectLoginRequest{
		Phrase:   p.Phrase,
		Username: p.Username,
		Email:    p.Email,
	})
	if err != nil {
		return m.loginFailure(err)
	}
	return m.applyLoginGrant(grant, p.Phrase, p.MnemonicTTLSeconds, p.WalletTTLSeconds)
}

// EmailChallengeLoginParams parameterizes EmailChallengeLogin.
type EmailChallengeLoginParams struct {
	DirectLoginParams
	ChallengeToken string
}

// EmailChallengeLogin is DirectLogin carrying an email-issued challenge
// token; success and failure handling are identical.
func (m *Manager) EmailChallengeLogin(ctx context.Context, p EmailChallengeLoginParams) LoginResult {
	m.setLoading(true)
	defer m.setLoading(false)

	grant, err := m.svc.EmailChallengeLogin(ctx, EmailChallengeLoginRequest{
		DirectLoginRequest: DirectLoginRequest{
			Phrase:   p.Phrase,
			Username: p.Username,
			Email:    p.Email,
		},
		ChallengeToken: p.ChallengeToken,
	})
	if err != nil {
		return m.loginFailure(err)
	}
	return m.applyLoginGrant(grant, p.Phrase, p.MnemonicTTLSeconds, p.WalletTTLSeconds)
}

// PasswordLogin unlocks the locally stored encrypted bundle with the
// password and performs a direct login with the recovered mnemonic. When
// username and email are both empty, the identity stored at bundle setup is
// used. Unlike DirectLogin, no explicit TTLs are threaded through: the
// secret slots use their default durations.
func (m *Manager) PasswordLogin(ctx context.Context, password, username, email string) LoginResult {
	if !m.PasswordLoginAvailable() {
		return LoginResult{Err: newFlowError(CodePasswordLoginNotSetup, TypePasswordLoginNotSetup)}
	}

	m.setLoading(true)
	defer m.setLoading(false)

	w, mn, id, err := keybundle.Unlock(m.store, password)
	if err != nil {
		switch {
		case errors.Is(err, keybundle.ErrNotSetup):
			return LoginResult{Err: newFlowError(CodePasswordLoginNotSetup, TypePasswordLoginNotSetup)}
		case errors.Is(err, keybundle.ErrInvalidPassword):
			return LoginResult{Err: newFlowError(CodeInvalidPassword, TypeInvalidPassword)}
		default:
			m.log.Error("unlocking key bundle failed", "error", err)
			return LoginResult{Err: newFlowError(CodeInvalidPassword, TypeInvalidPassword)}
		}
	}
	defer w.Destroy()
	defer mn.Destroy()

	phrase, err := mn.Phrase()
	if err != nil {
		return LoginResult{Err: newFlowError(CodeInvalidMnemonic, TypeInvalidMnemonic)}
	}
	if username == "" && email == "" {
		username, email = id.Username, id.Email
	}

	grant, err := m.svc.DirectLogin(ctx, DirectLoginRequest{
		Phrase:   phrase,
		Username: username,
		Email:    email,
	})
	if err != nil {
		return m.loginFailure(err)
	}
	return m.applyLoginGrant(grant, phrase, 0, 0)
}

// SetUpPasswordLogin creates or overwrites the encrypted local bundle from
// the mnemonic and password, and installs the resulting wallet and mnemonic
// into their slots with default durations. Failures are converted into the
// result, never propagated.
func (m *Manager) SetUpPasswordLogin(phrase, password, username, email string) SetupResult {
	w, err := keybundle.Setup(m.store, phrase, password, keybundle.Identity{Username: username, Email: email})
	if err != nil {
		return SetupResult{Success: false, Message: err.Error()}
	}
	mn, err := wallet.FromPhrase(phrase)
	if err != nil {
		w.Destroy()
		return SetupResult{Success: false, Message: err.Error()}
	}
	m.mnemonic.Set(mn)
	m.wallet.Set(w)
	return SetupResult{Success: true, Message: "password login enabled"}
}

// ChangePassword re-keys the encrypted bundle from the current password to
// a new one. The current password is validated locally against the bundle
// before the service's change-password endpoint is called; only then is the
// bundle re-encrypted and the in-memory secret slots refreshed.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) ChangePasswordResult {
	if !m.PasswordLoginAvailable() {
		return ChangePasswordResult{Err: newFlowError(CodePasswordLoginNotSetup, TypePasswordLoginNotSetup)}
	}

	m.setLoading(true)
	defer m.setLoading(false)

	w, mn, id, err := keybundle.Unlock(m.store, currentPassword)
	if err != nil {
		return ChangePasswordResult{Err: newFlowError(CodeInvalidCurrentPassword, TypeInvalidCurrentPassword)}
	}
	defer w.Destroy()

	phrase, err := mn.Phrase()
	if err != nil {
		mn.Destroy()
		return ChangePasswordResult{Err: newFlowError(CodeInvalidCurrentPassword, TypeInvalidCurrentPassword)}
	}

	if err := m.svc.ChangePassword(ctx, m.Token(), currentPassword, newPassword); err != nil {
		mn.Destroy()
		var fe *FlowError
		if errors.As(err, &fe) {
			return ChangePasswordResult{Err: fe}
		}
		m.log.Error("change password request failed", "error", err)
		return ChangePasswordResult{Err: newFlowError(CodeChangePasswordFailed, TypeTransport)}
	}

	w2, err := keybundle.Setup(m.store, phrase, newPassword, id)
	if err != nil {
		mn.Destroy()
		return ChangePasswordResult{Err: &FlowError{Code: CodeChangePasswordFailed}}
	}
	m.mnemonic.Set(mn)
	m.wallet.Set(w2)
	return ChangePasswordResult{Success: true, Message: "password changed"}
}

// RefreshToken exchanges the current token for a fresh one. This is the one
// auth operation that propagates its error: on failure the user state and
// persisted credentials are cleared before the error is returned.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	tok := m.token
	m.loading = true
	m.mu.Unlock()
	defer m.setLoading(false)

	if tok == "" {
		if stored, err := m.store.Get(tokenStorageKey); err == nil {
			tok = stored
		}
	}

	grant, err := m.svc.RefreshToken(ctx, tok)
	if err != nil {
		m.store.Delete(tokenStorageKey)
		m.store.Delete(userStorageKey)
		m.mu.Lock()
		m.user = nil
		m.admin = false
		m.token = ""
		m.authenticated = false
		m.mu.Unlock()
		return err
	}

	m.store.Set(tokenStorageKey, grant.Token)
	if grant.User != nil {
		if data, err := json.Marshal(grant.User); err == nil {
			m.store.Set(userStorageKey, string(data))
		}
	}
	m.mu.Lock()
	m.token = grant.Token
	if grant.User != nil {
		m.user = grant.User
		m.admin = grant.User.IsAdmin()
	}
	m.authenticated = true
	m.mu.Unlock()
	return nil
}

// Logout clears every piece of session state: persisted user and token,
// both secret slots, and the in-memory auth flags. It bumps the auth-state
// counter and invokes the post-logout callback. Always succeeds; no
// network call is made.
func (m *Manager) Logout() {
	m.store.Delete(userStorageKey)
	m.store.Delete(tokenStorageKey)
	m.mnemonic.Clear()
	m.wallet.Clear()
	m.mu.Lock()
	m.user = nil
	m.admin = false
	m.token = ""
	m.authenticated = false
	m.mu.Unlock()
	m.bumpAuthState()
	if m.onLogout != nil {
		m.onLogout()
	}
}

// BackupCodeLoginParams parameterizes BackupCodeLogin.
type BackupCodeLoginParams struct {
	Identifier      string
	Code            string
	IsEmail         bool
	RecoverMnemonic bool
	NewPassword     string
}

// BackupCodeLogin logs in with a single-use recovery code. The token is
// always persisted on success; the user record, authenticated flag, theme
// sync, and auth-state bump apply only when the service includes a user in
// its response.
func (m *Manager) BackupCodeLogin(ctx context.Context, p BackupCodeLoginParams) BackupCodeResult {
	m.setLoading(true)
	defer m.setLoading(false)

	grant, err := m.svc.BackupCodeLogin(ctx, BackupCodeLoginRequest{
		Identifier:      p.Identifier,
		Code:            p.Code,
		IsEmail:         p.IsEmail,
		RecoverMnemonic: p.RecoverMnemonic,
		NewPassword:     p.NewPassword,
	})
	if err != nil {
		var fe *FlowError
		if errors.As(err, &fe) {
			return BackupCodeResult{Err: fe}
		}
		m.log.Error("backup code login failed", "error", err)
		return BackupCodeResult{Err: newFlowError(CodeServiceUnreachable, TypeTransport)}
	}

	m.store.Set(tokenStorageKey, grant.Token)
	m.mu.Lock()
	m.token = grant.Token
	m.mu.Unlock()

	if grant.User != nil {
		if data, err := json.Marshal(grant.User); err == nil {
			m.store.Set(userStorageKey, string(data))
		}
		m.mu.Lock()
		m.user = grant.User
		m.admin = grant.User.IsAdmin()
		m.authenticated = true
		m.mu.Unlock()
		m.bumpAuthState()
		m.syncCollaborators(grant.User)
	}

	return BackupCodeResult{
		Token:     grant.Token,
		Mnemonic:  grant.Mnemonic,
		Message:   grant.Message,
		CodeCount: grant.CodeCount,
	}
}

// RegisterParams parameterizes Register.
type RegisterParams struct {
	Username string
	Email    string
	Timezone string
	Password string
}

// Register delegates to the service without mutating session state beyond
// the transient loading flag.
func (m *Manager) Register(ctx context.Context, p RegisterParams) RegisterResult {
	m.setLoading(true)
	defer m.setLoading(false)

	grant, err := m.svc.Register(ctx, RegisterRequest{
		Username: p.Username,
		Email:    p.Email,
		Timezone: p.Timezone,
		Password: p.Password,
	})
	if err != nil {
		var fe *FlowError
		if errors.As(err, &fe) {
			return RegisterResult{Err: fe}
		}
		m.log.Error("registration failed", "error", err)
		return RegisterResult{Err: newFlowError(CodeServiceUnreachable, TypeTransport)}
	}
	return RegisterResult{Success: grant.Success, Message: grant.Message, Mnemonic: grant.Mnemonic}
}

// RequestEmailLogin delegates to the service without mutating session state
// beyond the transient loading flag.
func (m *Manager) RequestEmailLogin(ctx context.Context, username, email string) EmailLoginRequestResult {
	m.setLoading(true)
	defer m.setLoading(false)

	msg, err := m.svc.RequestEmailLogin(ctx, username, email)
	if err != nil {
		var fe *FlowError
		if errors.As(err, &fe) {
			return EmailLoginRequestResult{Err: fe}
		}
		m.log.Error("email login request failed", "error", err)
		return EmailLoginRequestResult{Err: newFlowError(CodeServiceUnreachable, TypeTransport)}
	}
	return EmailLoginRequestResult{Message: msg}
}

// loginFailure converts a service error into the error variant of a login
// result. Structured rejections pass through; transport failures are logged
// and folded into a generic unreachable error so the result-returning
// contract holds for the whole login family.
func (m *Manager) loginFailure(err error) LoginResult {
	var fe *FlowError
	if errors.As(err, &fe) {
		return LoginResult{Err: fe}
	}
	m.log.Error("login request failed", "error", err)
	return LoginResult{Err: newFlowError(CodeServiceUnreachable, TypeTransport)}
}

// applyLoginGrant applies the all-or-nothing success path shared by the
// login family: install mnemonic and wallet, set user and auth flags,
// persist token and serialized user, bump the auth-state counter, and sync
// collaborators. The token is persisted before this function returns so a
// restart can resume the session via CheckAuth.
func (m *Manager) applyLoginGrant(grant *LoginGrant, phrase string, mnemonicTTL, walletTTL int) LoginResult {
	mn, err := wallet.FromPhrase(phrase)
	if err != nil {
		return LoginResult{Err: newFlowError(CodeInvalidMnemonic, TypeInvalidMnemonic)}
	}

	w := grant.Wallet
	if w == nil {
		w, err = wallet.FromPhraseKey(phrase)
		if err != nil {
			mn.Destroy()
			return LoginResult{Err: newFlowError(CodeInvalidMnemonic, TypeInvalidMnemonic)}
		}
	}

	var mnOpts, wOpts []SetOption
	if mnemonicTTL > 0 {
		mnOpts = append(mnOpts, WithTTL(mnemonicTTL))
	}
	if walletTTL > 0 {
		wOpts = append(wOpts, WithTTL(walletTTL))
	}
	m.mnemonic.Set(mn, mnOpts...)
	m.wallet.Set(w, wOpts...)

	m.store.Set(tokenStorageKey, grant.Token)
	if data, err := json.Marshal(grant.User); err == nil {
		m.store.Set(userStorageKey, string(data))
	}

	m.mu.Lock()
	m.user = grant.User
	m.admin = grant.User.IsAdmin()
	m.token = grant.Token
	m.authenticated = true
	m.mu.Unlock()

	m.bumpAuthState()
	m.syncCollaborators(grant.User)

	return LoginResult{Token: grant.Token, User: grant.User, Message: grant.Message}
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

func (m *Manager) bumpAuthState() {
	m.mu.Lock()
	m.authState++
	v := m.authState
	listener := m.onAuthState
	m.mu.Unlock()
	if listener != nil {
		listener(v)
	}
}

// syncCollaborators pushes the user's dark-mode preference into the theme
// collaborator and, when the user's stored site language has changed,
// propagates it to the localizer. The propagation is keyed on changes to
// the stored language only; it never reacts to the active UI language, so a
// just-changed UI language is not overwritten back.
func (m *Manager) syncCollaborators(user *UserRecord) {
	if user == nil {
		return
	}
	if m.theme != nil {
		mode := ThemeLight
		if user.DarkMode {
			mode = ThemeDark
		}
		m.theme.SetMode(mode)
	}

	m.mu.Lock()
	changed := user.SiteLanguage != "" && user.SiteLanguage != m.lastSiteLanguage
	if changed {
		m.lastSiteLanguage = user.SiteLanguage
	}
	m.mu.Unlock()

	if changed && m.localizer != nil && user.SiteLanguage != m.localizer.CurrentLanguage() {
		m.localizer.ChangeLanguage(user.SiteLanguage)
	}
}
