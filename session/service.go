package session

import (
	"context"

	"github.com/Digital-Defiance/walletsession/wallet"
)

// DirectLoginRequest asks the service to authenticate by signing a
// server-issued challenge with the wallet derived from the mnemonic.
// Exactly one of Username/Email must resolve to an account; the service
// rejects the request otherwise.
type DirectLoginRequest struct {
	Phrase   string
	Username string
	Email    string
}

// EmailChallengeLoginRequest is a direct login that additionally carries an
// email-issued challenge token.
type EmailChallengeLoginRequest struct {
	DirectLoginRequest
	ChallengeToken string
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string
	Email    string
	Timezone string
	Password string
}

// BackupCodeLoginRequest logs in with a single-use recovery code,
// optionally recovering the mnemonic or rotating the password.
type BackupCodeLoginRequest struct {
	Identifier      string
	Code            string
	IsEmail         bool
	RecoverMnemonic bool
	NewPassword     string
}

// LoginGrant is the success payload of a login call.
type LoginGrant struct {
	Token   string
	User    *UserRecord
	Wallet  *wallet.Wallet
	Message string
}

// RegisterGrant is the success payload of a registration call.
type RegisterGrant struct {
	Success  bool
	Message  string
	Mnemonic string
}

// BackupCodeGrant is the success payload of a backup-code login.
type BackupCodeGrant struct {
	Token     string
	User      *UserRecord
	Mnemonic  string
	Message   string
	CodeCount int
}

// AuthService is the remote authentication collaborator. Structured service
// rejections are returned as *FlowError values; any other error is a
// transport failure.
type AuthService interface {
	VerifyToken(ctx context.Context, token string) (*UserRecord, error)
	DirectLogin(ctx context.Context, req DirectLoginRequest) (*LoginGrant, error)
	EmailChallengeLogin(ctx context.Context, req EmailChallengeLoginRequest) (*LoginGrant, error)
	RefreshToken(ctx context.Context, token string) (*LoginGrant, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterGrant, error)
	RequestEmailLogin(ctx context.Context, username, email string) (string, error)
	BackupCodeLogin(ctx context.Context, req BackupCodeLoginRequest) (*BackupCodeGrant, error)
	ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error
}

// ThemeMode selects the UI color scheme.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// ThemeSetter is the theme collaborator; the session layer pushes the
// user's dark-mode preference into it after successful verification/login.
type ThemeSetter interface {
	SetMode(mode ThemeMode)
}

// Localizer is the i18n collaborator. Language propagation is keyed on
// changes to the user's stored site language, never on changes to the
// active UI language.
type Localizer interface {
	CurrentLanguage() string
	ChangeLanguage(code string)
}
