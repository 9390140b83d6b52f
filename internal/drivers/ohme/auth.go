package ohme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Identity backend endpoints
const (
	DefaultIdentityURL    = "https://www.googleapis.com/identitytoolkit/v3/relyingparty"
	DefaultSecureTokenURL = "https://securetoken.googleapis.com/v1"

	pathCreateAuthURI  = "/createAuthUri"
	pathVerifyPassword = "/verifyPassword"
	pathToken          = "/token"

	authScheme     = "Firebase"
	continueURI    = "http://www.google.com/"
	defaultTimeout = 30 * time.Second
)

// Refresh error codes after which the refresh token can never succeed again
var permanentRefreshCodes = []string{
	"TOKEN_EXPIRED",
	"USER_DISABLED",
	"USER_NOT_FOUND",
	"INVALID_REFRESH_TOKEN",
	"invalid_grant",
}

// AuthConfig configures an AuthSession
type AuthConfig struct {
	APIKey         string
	Email          string
	IdentityURL    string
	SecureTokenURL string
	HTTPClient     *http.Client
	Clock          Clock
	Logger         *slog.Logger
}

// AuthSession signs in against the identity backend and keeps the bearer
// token fresh. It owns the only CredentialStore for its account.
type AuthSession struct {
	apiKey         string
	email          string
	identityURL    string
	secureTokenURL string
	httpClient     *http.Client
	clock          Clock
	logger         *slog.Logger

	store   CredentialStore
	refresh singleflight.Group
}

// NewAuthSession creates an AuthSession with no credential
func NewAuthSession(cfg AuthConfig) *AuthSession {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = DefaultIdentityURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = DefaultSecureTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthSession{
		apiKey:         cfg.APIKey,
		email:          cfg.Email,
		identityURL:    strings.TrimRight(cfg.IdentityURL, "/"),
		secureTokenURL: strings.TrimRight(cfg.SecureTokenURL, "/"),
		httpClient:     cfg.HTTPClient,
		clock:          cfg.Clock,
		logger:         cfg.Logger.With("component", "ohme.auth"),
	}
}

// Email returns the account email this session signs in with
func (a *AuthSession) Email() string {
	return a.email
}

// Authenticated reports whether a credential is held
func (a *AuthSession) Authenticated() bool {
	return a.store.Present()
}

// Credential returns a copy of the current credential
func (a *AuthSession) Credential() (Credential, bool) {
	return a.store.Get()
}

// SignOut drops the credential; the next call needs a fresh SignIn
func (a *AuthSession) SignOut() {
	a.store.clear()
}

// AuthorizationHeader returns the header value for authenticated API calls
func (a *AuthSession) AuthorizationHeader() (string, error) {
	cred, ok := a.store.Get()
	if !ok {
		return "", ErrInvalidCredentials
	}
	return authScheme + " " + cred.AccessToken, nil
}

// SignIn exchanges the account password for a token pair. The store is only
// written once both exchange steps have succeeded.
func (a *AuthSession) SignIn(ctx context.Context, password string) error {
	if err := a.createAuthURI(ctx); err != nil {
		a.logger.Warn("Sign-in identity lookup failed", "email", a.email, "error", err)
		return err
	}

	cred, err := a.verifyPassword(ctx, password)
	if err != nil {
		a.logger.Warn("Sign-in password verification failed", "email", a.email, "error", err)
		return err
	}

	a.store.set(cred)
	a.logger.Info("Signed in", "email", a.email, "expires_at", cred.ExpiresAt)
	return nil
}

// createAuthURI resolves the identity for the account email
func (a *AuthSession) createAuthURI(ctx context.Context) error {
	reqBody := map[string]interface{}{
		"identifier":  a.email,
		"continueUri": continueURI,
	}

	status, _, err := a.postJSON(ctx, a.identityURL+pathCreateAuthURI, reqBody)
	if err != nil {
		return fmt.Errorf("%w: create auth uri: %v", ErrAuthTimeout, err)
	}
	if !isSuccess(status) {
		return fmt.Errorf("%w: create auth uri returned status %d", ErrAuthTimeout, status)
	}
	return nil
}

// verifyPassword exchanges the password for a credential
func (a *AuthSession) verifyPassword(ctx context.Context, password string) (Credential, error) {
	reqBody := map[string]interface{}{
		"email":             a.email,
		"password":          password,
		"returnSecureToken": true,
	}

	issuedAt := a.clock.Now()
	status, respBody, err := a.postJSON(ctx, a.identityURL+pathVerifyPassword, reqBody)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: verify password: %v", ErrAuthTimeout, err)
	}
	if !isSuccess(status) {
		return Credential{}, fmt.Errorf("%w: verify password returned status %d", ErrInvalidCredentials, status)
	}

	var apiResp struct {
		IDToken      string      `json:"idToken"`
		RefreshToken string      `json:"refreshToken"`
		ExpiresIn    json.Number `json:"expiresIn"` // seconds, sent as a string
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Credential{}, &AuthProtocolError{StatusCode: status, Code: "malformed verifyPassword response"}
	}
	ttl, err := apiResp.ExpiresIn.Int64()
	if err != nil || apiResp.IDToken == "" || apiResp.RefreshToken == "" {
		return Credential{}, &AuthProtocolError{StatusCode: status, Code: "incomplete verifyPassword response"}
	}

	return newCredential(apiResp.IDToken, apiResp.RefreshToken, a.apiKey, issuedAt, ttl), nil
}

// EnsureFresh guarantees the held access token is usable, refreshing it when
// it has reached its expiry. Concurrent callers share one refresh exchange.
func (a *AuthSession) EnsureFresh(ctx context.Context) error {
	if !a.store.Present() {
		return ErrInvalidCredentials
	}
	if a.store.ValidAt(a.clock.Now()) {
		return nil
	}

	// The exchange is detached from the caller's cancellation so that a
	// caller giving up does not fail the others waiting on the same flight.
	flight := context.WithoutCancel(ctx)
	ch := a.refresh.DoChan("refresh", func() (interface{}, error) {
		return nil, a.refreshCredential(flight)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshCredential performs the check-refresh-swap sequence
func (a *AuthSession) refreshCredential(ctx context.Context) error {
	cred, ok := a.store.Get()
	if !ok {
		return ErrInvalidCredentials
	}
	// A flight that completed just before this one may have refreshed already.
	if cred.ValidAt(a.clock.Now()) {
		return nil
	}

	issuedAt := a.clock.Now()
	tok, err := a.tokenSource(ctx, cred).Token()
	if err != nil {
		return a.refreshError(err, cred)
	}

	accessToken := tok.AccessToken
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		accessToken = idToken
	}
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	next := newCredential(accessToken, refreshToken, cred.AccountKey, issuedAt, expiresInSeconds(tok, issuedAt))
	if !a.store.replace(cred, &next) {
		a.logger.Info("Discarding refreshed token, credential replaced by sign-in", "email", a.email)
		return nil
	}

	a.logger.Info("Refreshed access token",
		"email", a.email,
		"expires_at", next.ExpiresAt,
		"rotated_refresh_token", refreshToken != cred.RefreshToken)
	return nil
}

// tokenSource builds a one-shot refresh_token grant against the secure token endpoint
func (a *AuthSession) tokenSource(ctx context.Context, cred Credential) oauth2.TokenSource {
	config := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.secureTokenURL + pathToken + "?key=" + url.QueryEscape(cred.AccountKey),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	return config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
}

// refreshError maps a failed refresh exchange onto the error taxonomy
func (a *AuthSession) refreshError(err error, refreshed Credential) error {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) || rErr.Response == nil {
		return &TransportError{Op: "refresh token", Err: err}
	}

	protoErr := &AuthProtocolError{
		StatusCode: rErr.Response.StatusCode,
		Code:       backendErrorCode(rErr.Body),
	}
	if isPermanentRefreshCode(protoErr.Code) {
		// A sign-in that landed during the exchange holds a new refresh token
		if !a.store.replace(refreshed, nil) {
			a.logger.Warn("Refresh token rejected after a newer sign-in, keeping credential",
				"email", a.email,
				"code", protoErr.Code)
			return protoErr
		}
		protoErr.permanent = true
		a.logger.Error("Refresh token rejected, sign-in required",
			"email", a.email,
			"status", protoErr.StatusCode,
			"code", protoErr.Code)
		return protoErr
	}

	a.logger.Warn("Token refresh failed",
		"email", a.email,
		"status", protoErr.StatusCode,
		"code", protoErr.Code)
	return protoErr
}

// postJSON sends an unauthenticated JSON POST with the API key attached
func (a *AuthSession) postJSON(ctx context.Context, endpoint string, payload interface{}) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(a.apiKey), bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// backendErrorCode extracts the error message from either the identity
// backend's {"error":{"message":...}} shape or the OAuth2 {"error":"..."} shape
func backendErrorCode(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		return code
	}

	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err != nil {
		return ""
	}
	// Messages may carry a suffix, e.g. "INVALID_REFRESH_TOKEN : reason"
	code, _, _ = strings.Cut(detail.Message, " ")
	return code
}

func isPermanentRefreshCode(code string) bool {
	for _, c := range permanentRefreshCodes {
		if code == c {
			return true
		}
	}
	return false
}

// expiresInSeconds reads the server TTL from the raw token response
func expiresInSeconds(tok *oauth2.Token, issuedAt time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(issuedAt).Seconds())
	}
	return 0
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Reauthenticator signs an AuthSession in again with a stored password. The
// daemon uses it to recover once the backend has revoked the refresh token.
type Reauthenticator struct {
	session  *AuthSession
	password string
}

// NewReauthenticator binds a session to the account password
func NewReauthenticator(session *AuthSession, password string) *Reauthenticator {
	return &Reauthenticator{session: session, password: password}
}

// Authenticated reports whether the session still holds a credential
func (r *Reauthenticator) Authenticated() bool {
	return r.session.Authenticated()
}

// SignIn repeats the password sign-in
func (r *Reauthenticator) SignIn(ctx context.Context) error {
	return r.session.SignIn(ctx, r.password)
}
