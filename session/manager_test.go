package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digital-Defiance/walletsession/keybundle"
	"github.com/Digital-Defiance/walletsession/storage/memory"
	"github.com/Digital-Defiance/walletsession/wallet"
)

// fakeAuthService implements AuthService with per-operation function fields
// and call counters.
type fakeAuthService struct {
	verifyFn   func(token string) (*UserRecord, error)
	directFn   func(req DirectLoginRequest) (*LoginGrant, error)
	emailFn    func(req EmailChallengeLoginRequest) (*LoginGrant, error)
	refreshFn  func(token string) (*LoginGrant, error)
	registerFn func(req RegisterRequest) (*RegisterGrant, error)
	emailReqFn func(username, email string) (string, error)
	backupFn   func(req BackupCodeLoginRequest) (*BackupCodeGrant, error)
	changeFn   func(token, currentPassword, newPassword string) error

	verifyCalls int
	directCalls int
	changeCalls int
}

func (f *fakeAuthService) VerifyToken(_ context.Context, token string) (*UserRecord, error) {
	f.verifyCalls++
	if f.verifyFn == nil {
		return nil, errors.New("unexpected VerifyToken call")
	}
	return f.verifyFn(token)
}

func (f *fakeAuthService) DirectLogin(_ context.Context, req DirectLoginRequest) (*LoginGrant, error) {
	f.directCalls++
	if f.directFn == nil {
		return nil, errors.New("unexpected DirectLogin call")
	}
	return f.directFn(req)
}

func (f *fakeAuthService) EmailChallengeLogin(_ context.Context, req EmailChallengeLoginRequest) (*LoginGrant, error) {
	if f.emailFn == nil {
		return nil, errors.New("unexpected EmailChallengeLogin call")
	}
	return f.emailFn(req)
}

func (f *fakeAuthService) RefreshToken(_ context.Context, token string) (*LoginGrant, error) {
	if f.refreshFn == nil {
		return nil, errors.New("unexpected RefreshToken call")
	}
	return f.refreshFn(token)
}

func (f *fakeAuthService) Register(_ context.Context, req RegisterRequest) (*RegisterGrant, error) {
	if f.registerFn == nil {
		return nil, errors.New("unexpected Register call")
	}
	return f.registerFn(req)
}

func (f *fakeAuthService) RequestEmailLogin(_ context.Context, username, email string) (string, error) {
	if f.emailReqFn == nil {
		return "", errors.New("unexpected RequestEmailLogin call")
	}
	return f.emailReqFn(username, email)
}

func (f *fakeAuthService) BackupCodeLogin(_ context.Context, req BackupCodeLoginRequest) (*BackupCodeGrant, error) {
	if f.backupFn == nil {
		return nil, errors.New("unexpected BackupCodeLogin call")
	}
	return f.backupFn(req)
}

func (f *fakeAuthService) ChangePassword(_ context.Context, token, currentPassword, newPassword string) error {
	f.changeCalls++
	if f.changeFn == nil {
		return errors.New("unexpected ChangePassword call")
	}
	return f.changeFn(token, currentPassword, newPassword)
}

type fakeTheme struct {
	modes []ThemeMode
}

func (f *fakeTheme) SetMode(mode ThemeMode) { f.modes = append(f.modes, mode) }

type fakeLocalizer struct {
	current string
	changes []string
}

func (f *fakeLocalizer) CurrentLanguage() string { return f.current }

func (f *fakeLocalizer) ChangeLanguage(code string) {
	f.current = code
	f.changes = append(f.changes, code)
}

func testUser() *UserRecord {
	return &UserRecord{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		Roles:    []Role{{Name: "member"}},
	}
}

func adminUser() *UserRecord {
	u := testUser()
	u.Roles = []Role{{Name: "admin", Admin: true}}
	return u
}

func newPhrase(t *testing.T) string {
	t.Helper()
	m, err := wallet.NewMnemonic()
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	phrase, err := m.Phrase()
	require.NoError(t, err)
	return phrase
}

func grantFor(t *testing.T, token string, user *UserRecord) func(DirectLoginRequest) (*LoginGrant, error) {
	t.Helper()
	return func(req DirectLoginRequest) (*LoginGrant, error) {
		w, err := wallet.FromPhraseKey(req.Phrase)
		if err != nil {
			return nil, err
		}
		return &LoginGrant{Token: token, User: user, Wallet: w}, nil
	}
}

func TestCheckAuth_NoToken(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{}
	m := New(store, svc, WithClock(clock.NewMock()))

	ok := m.CheckAuth(context.Background())

	assert.False(t, ok)
	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.False(t, snap.CheckingAuth)
	assert.False(t, snap.Loading)
	assert.Equal(t, 0, svc.verifyCalls)
}

func TestCheckAuth_ValidToken(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Set("authToken", "tok-1"))

	theme := &fakeTheme{}
	user := adminUser()
	user.DarkMode = true
	svc := &fakeAuthService{
		verifyFn: func(token string) (*UserRecord, error) {
			assert.Equal(t, "tok-1", token)
			return user, nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()), WithThemeSetter(theme))

	ok := m.CheckAuth(context.Background())

	assert.True(t, ok)
	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.True(t, snap.Admin)
	assert.False(t, snap.CheckingAuth)
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, []ThemeMode{ThemeDark}, theme.modes)
}

func TestCheckAuth_StructuredFailureLeavesUser(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "tok-1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})
	require.True(t, res.OK())

	svc.verifyFn = func(string) (*UserRecord, error) {
		return nil, &FlowError{Code: "error_token_expired"}
	}
	ok := m.CheckAuth(context.Background())

	assert.False(t, ok)
	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Token)
	// The user record is deliberately left in place on this branch.
	assert.NotNil(t, snap.User)
	// The persisted token is also left alone.
	assert.True(t, store.Has("authToken"))
}

func TestCheckAuth_ThrownFailureClearsTokenButNotSecrets(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "tok-1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})
	require.True(t, res.OK())
	require.True(t, m.MnemonicActive())

	svc.verifyFn = func(string) (*UserRecord, error) {
		return nil, errors.New("connection reset")
	}
	ok := m.CheckAuth(context.Background())

	assert.False(t, ok)
	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, store.Has("authToken"))
	// Mnemonic and wallet stay resident on this path.
	assert.True(t, m.MnemonicActive())
	assert.True(t, m.WalletActive())
}

func TestDirectLogin_Success(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	before := m.AuthState()
	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})

	require.True(t, res.OK())
	assert.Equal(t, "t1", res.Token)

	tok, err := store.Get("authToken")
	require.NoError(t, err)
	assert.Equal(t, "t1", tok)
	assert.True(t, store.Has("currentUser"))

	assert.Equal(t, before+1, m.AuthState())
	assert.True(t, m.Snapshot().Authenticated)
	assert.True(t, m.MnemonicActive())
	assert.True(t, m.WalletActive())
	assert.False(t, m.Snapshot().Loading)
}

func TestDirectLogin_ExplicitTTLs(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	res := m.DirectLogin(context.Background(), DirectLoginParams{
		Phrase:             newPhrase(t),
		Username:           "alice",
		MnemonicTTLSeconds: 42,
		WalletTTLSeconds:   77,
	})
	require.True(t, res.OK())
	assert.Equal(t, 42, m.MnemonicRemaining())
	assert.Equal(t, 77, m.WalletRemaining())
}

func TestDirectLogin_StructuredFailureAllOrNothing(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		directFn: func(DirectLoginRequest) (*LoginGrant, error) {
			return nil, &FlowError{Code: "error_login_unknownUser", Type: "UnknownUser"}
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	before := m.AuthState()
	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})

	require.False(t, res.OK())
	assert.Equal(t, "error_login_unknownUser", res.Err.Code)

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, m.MnemonicActive())
	assert.False(t, m.WalletActive())
	assert.False(t, store.Has("authToken"))
	assert.Equal(t, before, m.AuthState())
}

func TestDirectLogin_TransportFailureFoldsIntoResult(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		directFn: func(DirectLoginRequest) (*LoginGrant, error) {
			return nil, fmt.Errorf("dial tcp: connection refused")
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})
	require.False(t, res.OK())
	assert.Equal(t, CodeServiceUnreachable, res.Err.Code)
	assert.Equal(t, TypeTransport, res.Err.Type)
}

func TestEmailChallengeLogin_Success(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		emailFn: func(req EmailChallengeLoginRequest) (*LoginGrant, error) {
			assert.Equal(t, "challenge-token", req.ChallengeToken)
			w, err := wallet.FromPhraseKey(req.Phrase)
			require.NoError(t, err)
			return &LoginGrant{Token: "t-email", User: testUser(), Wallet: w}, nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	res := m.EmailChallengeLogin(context.Background(), EmailChallengeLoginParams{
		DirectLoginParams: DirectLoginParams{Phrase: newPhrase(t), Email: "alice@example.com"},
		ChallengeToken:    "challenge-token",
	})
	require.True(t, res.OK())
	assert.Equal(t, "t-email", m.Token())
}

func TestLogout_ClearsEverything(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	navigated := false
	m := New(store, svc, WithClock(clock.NewMock()), WithOnLogout(func() { navigated = true }))

	res := m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"})
	require.True(t, res.OK())
	afterLogin := m.AuthState()

	m.Logout()

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.False(t, m.MnemonicActive())
	assert.False(t, m.WalletActive())
	assert.False(t, store.Has("authToken"))
	assert.False(t, store.Has("currentUser"))
	assert.Equal(t, afterLogin+1, m.AuthState())
	assert.True(t, navigated)
}

func TestPasswordLogin_NotSetup(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{}
	m := New(store, svc, WithClock(clock.NewMock()))

	assert.False(t, m.PasswordLoginAvailable())
	res := m.PasswordLogin(context.Background(), "password", "", "")

	require.False(t, res.OK())
	assert.Equal(t, CodePasswordLoginNotSetup, res.Err.Code)
	assert.Equal(t, TypePasswordLoginNotSetup, res.Err.Type)
	assert.Equal(t, 0, svc.directCalls)
}

func TestPasswordLogin_Success(t *testing.T) {
	store := memory.NewStore()
	phrase := newPhrase(t)
	svc := &fakeAuthService{
		directFn: func(req DirectLoginRequest) (*LoginGrant, error) {
			// The identity stored at setup is used when none is supplied.
			assert.Equal(t, "alice", req.Username)
			assert.Equal(t, phrase, req.Phrase)
			w, err := wallet.FromPhraseKey(req.Phrase)
			require.NoError(t, err)
			return &LoginGrant{Token: "t-pw", User: testUser(), Wallet: w}, nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	setup := m.SetUpPasswordLogin(phrase, "hunter2-hunter2", "alice", "")
	require.True(t, setup.Success)
	assert.True(t, m.PasswordLoginAvailable())

	res := m.PasswordLogin(context.Background(), "hunter2-hunter2", "", "")
	require.True(t, res.OK())
	assert.Equal(t, "t-pw", res.Token)
	assert.True(t, m.MnemonicActive())
	assert.True(t, m.WalletActive())
	// No explicit TTLs are threaded: defaults apply.
	assert.Equal(t, m.MnemonicExpirationSeconds(), m.MnemonicRemaining())
}

func TestPasswordLogin_WrongPassword(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{}
	m := New(store, svc, WithClock(clock.NewMock()))

	require.True(t, m.SetUpPasswordLogin(newPhrase(t), "right-password", "alice", "").Success)

	res := m.PasswordLogin(context.Background(), "wrong-password", "", "")
	require.False(t, res.OK())
	assert.Equal(t, TypeInvalidPassword, res.Err.Type)
	assert.Equal(t, 0, svc.directCalls)
}

func TestSetUpPasswordLogin_InvalidPhrase(t *testing.T) {
	store := memory.NewStore()
	m := New(store, &fakeAuthService{}, WithClock(clock.NewMock()))

	res := m.SetUpPasswordLogin("not a mnemonic", "password", "", "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.False(t, m.PasswordLoginAvailable())
}

func TestChangePassword_NotSetup(t *testing.T) {
	m := New(memory.NewStore(), &fakeAuthService{}, WithClock(clock.NewMock()))

	res := m.ChangePassword(context.Background(), "current", "next")
	require.NotNil(t, res.Err)
	assert.Equal(t, TypePasswordLoginNotSetup, res.Err.Type)
}

func TestChangePassword_InvalidCurrentPassword(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{}
	m := New(store, svc, WithClock(clock.NewMock()))

	require.True(t, m.SetUpPasswordLogin(newPhrase(t), "right-password", "alice", "").Success)

	res := m.ChangePassword(context.Background(), "wrong-password", "next-password")
	require.NotNil(t, res.Err)
	assert.Equal(t, TypeInvalidCurrentPassword, res.Err.Type)
	// Validated locally, before any server round-trip.
	assert.Equal(t, 0, svc.changeCalls)
}

func TestChangePassword_Success(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		changeFn: func(_, currentPassword, newPassword string) error {
			assert.Equal(t, "old-password", currentPassword)
			assert.Equal(t, "new-password", newPassword)
			return nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	phrase := newPhrase(t)
	require.True(t, m.SetUpPasswordLogin(phrase, "old-password", "alice", "").Success)

	res := m.ChangePassword(context.Background(), "old-password", "new-password")
	require.Nil(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, svc.changeCalls)

	// The bundle is now keyed to the new password.
	_, _, _, err := keybundle.Unlock(store, "old-password")
	assert.ErrorIs(t, err, keybundle.ErrInvalidPassword)
	w, mn, _, err := keybundle.Unlock(store, "new-password")
	require.NoError(t, err)
	w.Destroy()
	mn.Destroy()

	// In-memory slots were refreshed.
	assert.True(t, m.MnemonicActive())
	assert.True(t, m.WalletActive())
}

func TestChangePassword_ServerRejection(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		changeFn: func(_, _, _ string) error {
			return &FlowError{Code: "error_changePassword_weak", Type: "WeakPassword"}
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	require.True(t, m.SetUpPasswordLogin(newPhrase(t), "old-password", "alice", "").Success)

	res := m.ChangePassword(context.Background(), "old-password", "weak")
	require.NotNil(t, res.Err)
	assert.Equal(t, "WeakPassword", res.Err.Type)

	// The bundle still opens with the old password.
	w, mn, _, err := keybundle.Unlock(store, "old-password")
	require.NoError(t, err)
	w.Destroy()
	mn.Destroy()
}

func TestRefreshToken_Success(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	require.True(t, m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"}).OK())

	svc.refreshFn = func(token string) (*LoginGrant, error) {
		assert.Equal(t, "t1", token)
		return &LoginGrant{Token: "t2", User: testUser()}, nil
	}
	require.NoError(t, m.RefreshToken(context.Background()))

	assert.Equal(t, "t2", m.Token())
	tok, err := store.Get("authToken")
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	assert.True(t, m.Snapshot().Authenticated)
}

func TestRefreshToken_FailureClearsAndPropagates(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	m := New(store, svc, WithClock(clock.NewMock()))

	require.True(t, m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"}).OK())

	refreshErr := errors.New("refresh rejected")
	svc.refreshFn = func(string) (*LoginGrant, error) { return nil, refreshErr }

	err := m.RefreshToken(context.Background())
	require.ErrorIs(t, err, refreshErr)

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.False(t, store.Has("authToken"))
	assert.False(t, store.Has("currentUser"))
}

func TestBackupCodeLogin_TokenOnly(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		backupFn: func(req BackupCodeLoginRequest) (*BackupCodeGrant, error) {
			assert.Equal(t, "alice", req.Identifier)
			return &BackupCodeGrant{Token: "t-backup", CodeCount: 7}, nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	before := m.AuthState()
	res := m.BackupCodeLogin(context.Background(), BackupCodeLoginParams{Identifier: "alice", Code: "CODE1"})

	require.True(t, res.OK())
	assert.Equal(t, "t-backup", res.Token)
	assert.Equal(t, 7, res.CodeCount)

	tok, err := store.Get("authToken")
	require.NoError(t, err)
	assert.Equal(t, "t-backup", tok)
	// Without a user in the response the session stays unauthenticated.
	assert.False(t, m.Snapshot().Authenticated)
	assert.Equal(t, before, m.AuthState())
}

func TestBackupCodeLogin_WithUser(t *testing.T) {
	store := memory.NewStore()
	svc := &fakeAuthService{
		backupFn: func(BackupCodeLoginRequest) (*BackupCodeGrant, error) {
			return &BackupCodeGrant{Token: "t-backup", User: adminUser(), Mnemonic: "recovered words", CodeCount: 6}, nil
		},
	}
	m := New(store, svc, WithClock(clock.NewMock()))

	before := m.AuthState()
	res := m.BackupCodeLogin(context.Background(), BackupCodeLoginParams{Identifier: "alice", Code: "CODE1", RecoverMnemonic: true})

	require.True(t, res.OK())
	assert.Equal(t, "recovered words", res.Mnemonic)
	assert.True(t, m.Snapshot().Authenticated)
	assert.True(t, m.Snapshot().Admin)
	assert.Equal(t, before+1, m.AuthState())
}

func TestBackupCodeLogin_Failure(t *testing.T) {
	svc := &fakeAuthService{
		backupFn: func(BackupCodeLoginRequest) (*BackupCodeGrant, error) {
			return nil, &FlowError{Code: "error_backupCode_invalid", Type: "InvalidCode"}
		},
	}
	m := New(memory.NewStore(), svc, WithClock(clock.NewMock()))

	res := m.BackupCodeLogin(context.Background(), BackupCodeLoginParams{Identifier: "alice", Code: "BAD"})
	require.False(t, res.OK())
	assert.Equal(t, "InvalidCode", res.Err.Type)
}

func TestRegister_Delegation(t *testing.T) {
	svc := &fakeAuthService{
		registerFn: func(req RegisterRequest) (*RegisterGrant, error) {
			assert.Equal(t, "bob", req.Username)
			return &RegisterGrant{Success: true, Message: "registered", Mnemonic: "twelve words here"}, nil
		},
	}
	m := New(memory.NewStore(), svc, WithClock(clock.NewMock()))

	res := m.Register(context.Background(), RegisterParams{Username: "bob", Email: "bob@example.com"})
	assert.True(t, res.Success)
	assert.Equal(t, "twelve words here", res.Mnemonic)
	// Registration never mutates auth state.
	assert.False(t, m.Snapshot().Authenticated)
	assert.Equal(t, uint64(0), m.AuthState())
}

func TestRequestEmailLogin_StructuredError(t *testing.T) {
	svc := &fakeAuthService{
		emailReqFn: func(_, _ string) (string, error) {
			return "", &FlowError{Code: "error_login_unknownUser"}
		},
	}
	m := New(memory.NewStore(), svc, WithClock(clock.NewMock()))

	res := m.RequestEmailLogin(context.Background(), "nobody", "")
	require.NotNil(t, res.Err)
	assert.Equal(t, "error_login_unknownUser", res.Err.Code)
}

func TestMnemonicDefaultDuration(t *testing.T) {
	// Scenario A: no persisted setting, the built-in default applies.
	store := memory.NewStore()
	m := New(store, &fakeAuthService{}, WithClock(clock.NewMock()))

	mn, err := wallet.NewMnemonic()
	require.NoError(t, err)
	m.SetMnemonic(mn)

	assert.Equal(t, DefaultMnemonicTTLSeconds, m.MnemonicRemaining())
}

func TestMnemonicPersistedDuration(t *testing.T) {
	// Scenario B: a persisted setting overrides the default for implicit Sets.
	store := memory.NewStore()
	m := New(store, &fakeAuthService{}, WithClock(clock.NewMock()))

	require.NoError(t, m.SetMnemonicExpirationSeconds(300))
	mn, err := wallet.NewMnemonic()
	require.NoError(t, err)
	m.SetMnemonic(mn)

	assert.Equal(t, 300, m.MnemonicRemaining())
	raw, err := store.Get("mnemonicExpirationSeconds")
	require.NoError(t, err)
	assert.Equal(t, "300", raw)
}

func TestMnemonicExpiryListener(t *testing.T) {
	mock := clock.NewMock()
	expired := 0
	m := New(memory.NewStore(), &fakeAuthService{},
		WithClock(mock),
		WithMnemonicExpiryListener(func() { expired++ }),
	)

	mn, err := wallet.NewMnemonic()
	require.NoError(t, err)
	m.SetMnemonic(mn, WithTTL(10))

	mock.Add(10 * time.Second)
	assert.Equal(t, 1, expired)
	assert.False(t, m.MnemonicActive())
}

func TestAuthStateListener(t *testing.T) {
	var states []uint64
	svc := &fakeAuthService{directFn: grantFor(t, "t1", testUser())}
	m := New(memory.NewStore(), svc,
		WithClock(clock.NewMock()),
		WithAuthStateListener(func(v uint64) { states = append(states, v) }),
	)

	require.True(t, m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"}).OK())
	m.Logout()

	assert.Equal(t, []uint64{1, 2}, states)
}

func TestLanguageSync_PropagatesOnChange(t *testing.T) {
	loc := &fakeLocalizer{current: "en"}
	user := testUser()
	user.SiteLanguage = "fr"
	svc := &fakeAuthService{directFn: grantFor(t, "t1", user)}
	m := New(memory.NewStore(), svc, WithClock(clock.NewMock()), WithLocalizer(loc))

	require.True(t, m.DirectLogin(context.Background(), DirectLoginParams{Phrase: newPhrase(t), Username: "alice"}).OK())
	assert.Equal(t, []string{"fr"}, loc.changes)
}

func TestLanguageSync_NoFeedbackLoop(t *testing.T) {
	store := memory.NewStore()
	loc := &fakeLocalizer{current: "en"}
	user := testUser()
	user.SiteLanguage = "fr"
	require.NoError(t, store.Set("authToken", "tok-1"))
	svc := &fakeAuthService{
		verifyFn: func(string) (*UserRecord, error) { return user, nil },
	}
	m := New(store, svc, WithClock(clock.NewMock()), WithLocalizer(loc))

	require.True(t, m.CheckAuth(context.Background()))
	require.Equal(t, []string{"fr"}, loc.changes)

	// The user switches the UI language locally; a re-verification with the
	// same stored site language must not overwrite it back.
	loc.ChangeLanguage("de")
	require.True(t, m.CheckAuth(context.Background()))
	assert.Equal(t, []string{"fr", "de"}, loc.changes)
	assert.Equal(t, "de", loc.current)
}

func TestCurrencyCode(t *testing.T) {
	store := memory.NewStore()
	m := New(store, &fakeAuthService{}, WithClock(clock.NewMock()))

	assert.Equal(t, DefaultCurrencyCode, m.CurrencyCode())
	require.NoError(t, m.SetCurrencyCode("EUR"))

	m2 := New(store, &fakeAuthService{}, WithClock(clock.NewMock()))
	assert.Equal(t, "EUR", m2.CurrencyCode())
}
