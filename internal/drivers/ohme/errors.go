package ohme

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials means the backend rejected the email/password or the
	// refresh token, or no sign-in has happened yet. A new SignIn is required.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthTimeout means the identity backend could not be reached or did not
	// answer the first sign-in step successfully.
	ErrAuthTimeout = errors.New("authentication backend unavailable")

	// ErrNoDevice is returned by commands issued before any session was fetched.
	ErrNoDevice = errors.New("no charge device known - fetch the session first")

	// ErrNoChargeSession is returned when the backend lists no charge sessions.
	ErrNoChargeSession = errors.New("backend returned no charge sessions")
)

// AuthProtocolError is an unexpected backend response during authentication.
type AuthProtocolError struct {
	StatusCode int
	Code       string // backend error message, e.g. "TOKEN_EXPIRED"
	permanent  bool
}

func (e *AuthProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth protocol error: status %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("auth protocol error: status %d", e.StatusCode)
}

// Unwrap reports ErrInvalidCredentials when the refresh token itself was
// rejected and the stored credential has been cleared.
func (e *AuthProtocolError) Unwrap() error {
	if e.permanent {
		return ErrInvalidCredentials
	}
	return nil
}

// TransportError covers timeouts, connection failures and non-2xx answers to
// fetch operations. It is safe for the caller to retry.
type TransportError struct {
	Op         string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
