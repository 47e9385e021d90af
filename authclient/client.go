// Package authclient implements session.AuthService over HTTP. Login is a
// two-step challenge flow: fetch a server-issued challenge, sign it with the
// wallet derived from the mnemonic, and exchange the signature for a bearer
// token. Structured rejections from the service are decoded into
// *session.FlowError so callers can distinguish them from transport faults.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Digital-Defiance/walletsession/internal/util"
	"github.com/Digital-Defiance/walletsession/session"
	"github.com/Digital-Defiance/walletsession/wallet"
)

const defaultTimeout = 15 * time.Second

// Client talks to the remote auth service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	c := &Client{baseURL: parsed}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

var _ session.AuthService = (*Client)(nil)

// VerifyToken asks the service whether the bearer token is still valid and
// returns the user it belongs to.
func (c *Client) VerifyToken(ctx context.Context, token string) (*session.UserRecord, error) {
	var user session.UserRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/verify", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DirectLogin runs the challenge flow for a mnemonic-derived wallet.
func (c *Client) DirectLogin(ctx context.Context, req session.DirectLoginRequest) (*session.LoginGrant, error) {
	return c.challengeLogin(ctx, req, "")
}

// EmailChallengeLogin runs the challenge flow carrying an email-issued
// challenge token.
func (c *Client) EmailChallengeLogin(ctx context.Context, req session.EmailChallengeLoginRequest) (*session.LoginGrant, error) {
	return c.challengeLogin(ctx, req.DirectLoginRequest, req.ChallengeToken)
}

func (c *Client) challengeLogin(ctx context.Context, req session.DirectLoginRequest, challengeToken string) (*session.LoginGrant, error) {
	w, err := wallet.FromPhraseKey(req.Phrase)
	if err != nil {
		return nil, &session.FlowError{Code: "error_login_invalidMnemonic", Type: "InvalidMnemonic"}
	}
	defer w.Destroy()

	var ch challengeResponse
	payload := challengeRequest{Username: req.Username, Email: req.Email, PublicKey: w.PublicKeyHex()}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/challenge", "", payload, &ch); err != nil {
		return nil, err
	}
	challenge, err := util.HexDecode(ch.Challenge)
	if err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	sig, err := w.Sign(challenge)
	if err != nil {
		return nil, err
	}

	var grant loginResponse
	login := loginRequest{
		ChallengeID:    ch.ChallengeID,
		Username:       req.Username,
		Email:          req.Email,
		PublicKey:      w.PublicKeyHex(),
		Signature:      util.HexEncode(sig),
		ChallengeToken: challengeToken,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", login, &grant); err != nil {
		return nil, err
	}
	return &session.LoginGrant{Token: grant.Token, User: grant.User, Message: grant.Message}, nil
}

// RefreshToken exchanges the bearer token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context, token string) (*session.LoginGrant, error) {
	var grant loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", token, nil, &grant); err != nil {
		return nil, err
	}
	return &session.LoginGrant{Token: grant.Token, User: grant.User, Message: grant.Message}, nil
}

// Register creates an account. The service responds with the generated
// recovery phrase, shown to the user exactly once.
func (c *Client) Register(ctx context.Context, req session.RegisterRequest) (*session.RegisterGrant, error) {
	payload := registerRequest{
		Username: req.Username,
		Email:    req.Email,
		Timezone: req.Timezone,
		Password: req.Password,
	}
	var out registerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", "", payload, &out); err != nil {
		return nil, err
	}
	return &session.RegisterGrant{Success: out.Success, Message: out.Message, Mnemonic: out.Mnemonic}, nil
}

// RequestEmailLogin asks the service to email a login challenge link.
func (c *Client) RequestEmailLogin(ctx context.Context, username, email string) (string, error) {
	payload := emailLoginRequest{Username: username, Email: email}
	var out messageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/email-login", "", payload, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// BackupCodeLogin redeems a single-use recovery code.
func (c *Client) BackupCodeLogin(ctx context.Context, req session.BackupCodeLoginRequest) (*session.BackupCodeGrant, error) {
	payload := backupCodeRequest{
		Identifier:      req.Identifier,
		Code:            req.Code,
		IsEmail:         req.IsEmail,
		RecoverMnemonic: req.RecoverMnemonic,
		NewPassword:     req.NewPassword,
	}
	var out backupCodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/backup-code", "", payload, &out); err != nil {
		return nil, err
	}
	return &session.BackupCodeGrant{
		Token:     out.Token,
		User:      out.User,
		Mnemonic:  out.Mnemonic,
		Message:   out.Message,
		CodeCount: out.CodeCount,
	}, nil
}

// ChangePassword submits a password change for the authenticated user.
func (c *Client) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error {
	payload := changePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/change-password", token, payload, nil)
}

// doJSON sends a request with an optional JSON payload and decodes a
// successful JSON response into out. Non-2xx responses carrying a structured
// error body yield *session.FlowError; anything else is a transport error.
func (c *Client) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	rel, err := url.Parse(path)
	if err != nil {
		return err
	}
	full := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) decodeError(method, path string, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	var fe session.FlowError
	if err := json.Unmarshal(data, &fe); err == nil && fe.Code != "" {
		c.log.Debug("structured rejection", "method", method, "path", path, "status", resp.StatusCode, "code", fe.Code)
		return &fe
	}
	return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
}
