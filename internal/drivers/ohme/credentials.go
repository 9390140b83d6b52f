package ohme

import (
	"sync"
	"time"
)

// expirySafetyMargin is subtracted from the server TTL so the token is
// refreshed strictly before the backend stops accepting it.
const expirySafetyMargin = 60 * time.Second

// Credential is a complete token set minted by the identity backend
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountKey   string // API key the token was minted under
}

// newCredential computes the expiry from the server TTL
func newCredential(accessToken, refreshToken, accountKey string, issuedAt time.Time, ttlSeconds int64) Credential {
	return Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(ttlSeconds)*time.Second - expirySafetyMargin),
		AccountKey:   accountKey,
	}
}

// ValidAt reports whether the access token may still be used at t
func (c Credential) ValidAt(t time.Time) bool {
	return c.ExpiresAt.After(t)
}

func (c Credential) same(other Credential) bool {
	return c.AccessToken == other.AccessToken &&
		c.RefreshToken == other.RefreshToken &&
		c.ExpiresAt.Equal(other.ExpiresAt)
}

// CredentialStore holds at most one Credential. It is either empty or fully
// populated; writers swap the whole value.
type CredentialStore struct {
	mu   sync.RWMutex
	cred *Credential
}

// Get returns a copy of the current credential
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Present reports whether a sign-in has succeeded and not been cleared since
func (s *CredentialStore) Present() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil
}

// ValidAt reports whether a credential exists and is unexpired at t
func (s *CredentialStore) ValidAt(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil && s.cred.ValidAt(t)
}

func (s *CredentialStore) set(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &c
}

// replace swaps in next (nil clears) only while the stored credential is still
// old. It reports false when a sign-in replaced the credential in the meantime.
func (s *CredentialStore) replace(old Credential, next *Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil || !s.cred.same(old) {
		return false
	}
	s.cred = next
	return true
}

func (s *CredentialStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
}
