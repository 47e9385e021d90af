package session

import "fmt"

// Error codes and types shared between locally synthesized precondition
// failures and structured service rejections. Codes double as translation
// keys in consuming applications.
const (
	CodePasswordLoginNotSetup  = "error_login_passwordLoginNotSetup"
	TypePasswordLoginNotSetup  = "PasswordLoginNotSetup"
	CodeInvalidPassword        = "error_login_invalidPassword"
	TypeInvalidPassword        = "InvalidPassword"
	CodeInvalidCurrentPassword = "error_changePassword_invalidCurrentPassword"
	TypeInvalidCurrentPassword = "InvalidCurrentPassword"
	CodeInvalidMnemonic        = "error_login_invalidMnemonic"
	TypeInvalidMnemonic        = "InvalidMnemonic"
	CodeChangePasswordFailed   = "error_changePassword_failed"
	CodeServiceUnreachable     = "error_service_unreachable"
	TypeTransport              = "TransportError"
)

// FlowError is the structured error shape returned by the auth service and
// synthesized locally for precondition failures. It implements error so
// service clients can return it through ordinary error values; the Manager
// recovers it with errors.As and surfaces it inside tagged results.
type FlowError struct {
	Code   string            `json:"error"`
	Type   string            `json:"errorType,omitempty"`
	Field  string            `json:"field,omitempty"`
	Fields map[string]string `json:"errors,omitempty"`
}

func (e *FlowError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%s)", e.Code, e.Type)
	}
	return e.Code
}

func newFlowError(code, errType string) *FlowError {
	return &FlowError{Code: code, Type: errType}
}

// LoginResult is the tagged outcome of a login-family operation. Err is nil
// on the success variant; on the error variant all other fields are zero.
type LoginResult struct {
	Token   string
	User    *UserRecord
	Message string
	Err     *FlowError
}

// OK reports whether the result is the success variant.
func (r LoginResult) OK() bool { return r.Err == nil }

// RegisterResult is the outcome of a registration request.
type RegisterResult struct {
	Success  bool
	Message  string
	Mnemonic string
	Err      *FlowError
}

// EmailLoginRequestResult is the outcome of requesting an email login link.
type EmailLoginRequestResult struct {
	Message string
	Err     *FlowError
}

// BackupCodeResult is the trimmed outcome of a backup-code login.
type BackupCodeResult struct {
	Token     string
	Mnemonic  string
	Message   string
	CodeCount int
	Err       *FlowError
}

// OK reports whether the result is the success variant.
func (r BackupCodeResult) OK() bool { return r.Err == nil }

// SetupResult is the outcome of enabling password login. Failures from the
// unlock collaborator are converted here, never propagated as errors.
type SetupResult struct {
	Success bool
	Message string
}

// ChangePasswordResult is the outcome of a password change.
type ChangePasswordResult struct {
	Success bool
	Message string
	Err     *FlowError
}
