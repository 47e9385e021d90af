package authclient

import "github.com/Digital-Defiance/walletsession/session"

// Wire shapes for the auth service endpoints.

type challengeRequest struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	PublicKey string `json:"publicKey"`
}

type challengeResponse struct {
	ChallengeID string `json:"challengeId"`
	Challenge   string `json:"challenge"`
}

type loginRequest struct {
	ChallengeID    string `json:"challengeId"`
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	PublicKey      string `json:"publicKey"`
	Signature      string `json:"signature"`
	ChallengeToken string `json:"challengeToken,omitempty"`
}

type loginResponse struct {
	Token   string              `json:"token"`
	User    *session.UserRecord `json:"user"`
	Message string              `json:"message,omitempty"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Timezone string `json:"timezone,omitempty"`
	Password string `json:"password,omitempty"`
}

type registerResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

type emailLoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type backupCodeRequest struct {
	Identifier      string `json:"identifier"`
	Code            string `json:"code"`
	IsEmail         bool   `json:"isEmail,omitempty"`
	RecoverMnemonic bool   `json:"recoverMnemonic,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

type backupCodeResponse struct {
	Token     string              `json:"token"`
	User      *session.UserRecord `json:"user,omitempty"`
	Mnemonic  string              `json:"mnemonic,omitempty"`
	Message   string              `json:"message,omitempty"`
	CodeCount int                 `json:"codeCount"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
