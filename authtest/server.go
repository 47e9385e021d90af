// Package authtest provides an in-process auth service for exercising
// clients against the real wire protocol: challenge issuance, ed25519
// signature verification, HS256 bearer tokens, email challenges, and
// single-use backup codes. It is a test double, not a production server;
// all state lives in memory.
package authtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Digital-Defiance/walletsession/internal/util"
	"github.com/Digital-Defiance/walletsession/session"
	"github.com/Digital-Defiance/walletsession/wallet"
)

const tokenTTL = time.Hour

type account struct {
	user        session.UserRecord
	publicKey   string
	phrase      string
	backupCodes map[string]bool
}

type challenge struct {
	username  string
	challenge []byte
	issuedAt  time.Time
}

// Server is the in-memory auth service.
type Server struct {
	secret []byte
	now    func() time.Time

	mu          sync.Mutex
	users       map[string]*account
	byEmail     map[string]string
	challenges  map[string]challenge
	emailTokens map[string]string
	lastEmail   string
}

// New creates a Server with a random signing secret.
func New() (*Server, error) {
	secret, err := util.RandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generating signing secret: %w", err)
	}
	return &Server{
		secret:      secret,
		now:         time.Now,
		users:       make(map[string]*account),
		byEmail:     make(map[string]string),
		challenges:  make(map[string]challenge),
		emailTokens: make(map[string]string),
	}, nil
}

// AddAccount registers a user whose wallet is derived from the given
// recovery phrase.
func (s *Server) AddAccount(user session.UserRecord, phrase string) error {
	w, err := wallet.FromPhraseKey(phrase)
	if err != nil {
		return fmt.Errorf("deriving wallet for %s: %w", user.Username, err)
	}
	defer w.Destroy()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = &account{
		user:        user,
		publicKey:   w.PublicKeyHex(),
		phrase:      phrase,
		backupCodes: make(map[string]bool),
	}
	if user.Email != "" {
		s.byEmail[user.Email] = user.Username
	}
	return nil
}

// GenerateBackupCodes mints n random recovery codes for an account and
// returns them, mirroring what a real service would hand the user once.
func (s *Server) GenerateBackupCodes(username string, n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := util.RandomChars(10)
		if err != nil {
			return nil, fmt.Errorf("generating backup code: %w", err)
		}
		codes = append(codes, code)
	}
	s.AddBackupCodes(username, codes...)
	return codes, nil
}

// AddBackupCodes grants single-use recovery codes to an account.
func (s *Server) AddBackupCodes(username string, codes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[username]
	if !ok {
		return
	}
	for _, code := range codes {
		acct.backupCodes[code] = true
	}
}

// LastEmailToken returns the challenge token from the most recent
// email-login request, standing in for reading the user's inbox.
func (s *Server) LastEmailToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEmail
}

// Router returns the chi router with all auth routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/challenge", s.handleChallenge)
		r.Post("/login", s.handleLogin)
		r.Get("/verify", s.handleVerify)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/register", s.handleRegister)
		r.Post("/email-login", s.handleEmailLogin)
		r.Post("/backup-code", s.handleBackupCode)
		r.Post("/change-password", s.handleChangePassword)
	})
	return r
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		PublicKey string `json:"publicKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.lookupLocked(req.Username, req.Email)
	if acct == nil {
		writeFlowError(w, http.StatusNotFound, "error_login_unknownUser", "UnknownUser")
		return
	}
	if req.PublicKey != acct.publicKey {
		writeFlowError(w, http.StatusUnauthorized, "error_login_invalidMnemonic", "InvalidMnemonic")
		return
	}

	nonce, err := util.RandomBytes(32)
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	id := uuid.NewString()
	s.challenges[id] = challenge{username: acct.user.Username, challenge: nonce, issuedAt: s.now()}
	writeJSON(w, http.StatusOK, map[string]string{
		"challengeId": id,
		"challenge":   util.HexEncode(nonce),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengeID    string `json:"challengeId"`
		Username       string `json:"username"`
		Email          string `json:"email"`
		PublicKey      string `json:"publicKey"`
		Signature      string `json:"signature"`
		ChallengeToken string `json:"challengeToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[req.ChallengeID]
	if !ok {
		writeFlowError(w, http.StatusUnauthorized, "error_login_unknownChallenge", "UnknownChallenge")
		return
	}
	delete(s.challenges, req.ChallengeID) // single use

	acct := s.users[ch.username]
	if acct == nil || req.PublicKey != acct.publicKey {
		writeFlowError(w, http.StatusUnauthorized, "error_login_invalidMnemonic", "InvalidMnemonic")
		return
	}
	sig, err := util.HexDecode(req.Signature)
	if err != nil || !wallet.VerifySignature(acct.publicKey, ch.challenge, sig) {
		writeFlowError(w, http.StatusUnauthorized, "error_login_invalidSignature", "InvalidSignature")
		return
	}
	if req.ChallengeToken != "" {
		owner, ok := s.emailTokens[req.ChallengeToken]
		if !ok || owner != ch.username {
			writeFlowError(w, http.StatusUnauthorized, "error_login_invalidChallengeToken", "InvalidChallengeToken")
			return
		}
		delete(s.emailTokens, req.ChallengeToken)
	}

	tok, err := s.issueToken(ch.username)
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": tok,
		"user":  acct.user,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticate(r)
	if !ok {
		writeFlowError(w, http.StatusUnauthorized, "error_token_invalid", "InvalidToken")
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticate(r)
	if !ok {
		writeFlowError(w, http.StatusUnauthorized, "error_token_invalid", "InvalidToken")
		return
	}
	tok, err := s.issueToken(acct.user.Username)
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": tok,
		"user":  acct.user,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}

	s.mu.Lock()
	_, taken := s.users[req.Username]
	s.mu.Unlock()
	if taken {
		writeFlowError(w, http.StatusConflict, "error_register_usernameTaken", "UsernameTaken")
		return
	}

	mn, err := wallet.NewMnemonic()
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	defer mn.Destroy()
	phrase, err := mn.Phrase()
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}

	user := session.UserRecord{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Timezone: req.Timezone,
		Roles:    []session.Role{{Name: "member"}},
	}
	if err := s.AddAccount(user, phrase); err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "account created",
		"mnemonic": phrase,
	})
}

func (s *Server) handleEmailLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.lookupLocked(req.Username, req.Email)
	if acct == nil {
		writeFlowError(w, http.StatusNotFound, "error_login_unknownUser", "UnknownUser")
		return
	}
	token := uuid.NewString()
	s.emailTokens[token] = acct.user.Username
	s.lastEmail = token
	writeJSON(w, http.StatusOK, map[string]string{"message": "login link sent"})
}

func (s *Server) handleBackupCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier      string `json:"identifier"`
		Code            string `json:"code"`
		IsEmail         bool   `json:"isEmail"`
		RecoverMnemonic bool   `json:"recoverMnemonic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var acct *account
	if req.IsEmail {
		acct = s.lookupLocked("", req.Identifier)
	} else {
		acct = s.lookupLocked(req.Identifier, "")
	}
	if acct == nil {
		writeFlowError(w, http.StatusNotFound, "error_login_unknownUser", "UnknownUser")
		return
	}
	if !acct.backupCodes[req.Code] {
		writeFlowError(w, http.StatusUnauthorized, "error_backupCode_invalid", "InvalidCode")
		return
	}
	delete(acct.backupCodes, req.Code) // single use

	tok, err := s.issueToken(acct.user.Username)
	if err != nil {
		writeFlowError(w, http.StatusInternalServerError, "error_internal", "")
		return
	}
	resp := map[string]any{
		"token":     tok,
		"user":      acct.user,
		"codeCount": len(acct.backupCodes),
	}
	if req.RecoverMnemonic {
		resp["mnemonic"] = acct.phrase
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeFlowError(w, http.StatusUnauthorized, "error_token_invalid", "InvalidToken")
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFlowError(w, http.StatusBadRequest, "error_request_malformed", "MalformedRequest")
		return
	}
	if len(req.NewPassword) < 8 {
		writeFlowError(w, http.StatusUnprocessableEntity, "error_changePassword_weak", "WeakPassword")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// lookupLocked resolves an account by username or email. Callers hold s.mu.
func (s *Server) lookupLocked(username, email string) *account {
	if username != "" {
		return s.users[username]
	}
	if email != "" {
		if name, ok := s.byEmail[email]; ok {
			return s.users[name]
		}
	}
	return nil
}

func (s *Server) issueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// authenticate resolves the bearer token on the request to an account.
func (s *Server) authenticate(r *http.Request) (*account, bool) {
	auth := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return nil, false
	}
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[claims.Subject]
	return acct, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFlowError(w http.ResponseWriter, status int, code, errType string) {
	writeJSON(w, status, &session.FlowError{Code: code, Type: errType})
}
