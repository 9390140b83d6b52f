package ohme

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testAPIKey   = "test-api-key"
	testEmail    = "owner@example.com"
	testPassword = "correct-horse"
	testDeviceID = "dev-1"
)

// fakeBackend serves the identity, secure token and charger endpoints
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu               sync.Mutex
	calls            map[string]int
	createAuthStatus int
	verifyBody       string
	refreshStatus    int
	refreshBody      string
	refreshDelay     time.Duration
	refreshCount     int
	ttlSeconds       int
	sessionStatus    int
	sessions         []map[string]interface{}
	account          map[string]interface{}
	commandStatus    int
	lastAuth         string
	lastQuery        string
	lastCarBody      []byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:                t,
		calls:            make(map[string]int),
		createAuthStatus: http.StatusOK,
		refreshStatus:    http.StatusOK,
		ttlSeconds:       3600,
		sessionStatus:    http.StatusOK,
		commandStatus:    http.StatusOK,
		sessions:         []map[string]interface{}{testSession("SMART_CHARGE", 7680)},
		account: map[string]interface{}{
			"user": map[string]interface{}{"id": "user-1"},
			"cars": []interface{}{testCar(7680)},
			"chargeDevices": []interface{}{
				map[string]interface{}{"id": testDeviceID, "modelTypeDisplayName": "Ohme Home Pro", "firmwareVersionLabel": "v2.65"},
			},
		},
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func testCar(maxDemandW float64) map[string]interface{} {
	return map[string]interface{}{
		"id": "car-1",
		"model": map[string]interface{}{
			"id":          "HYUNDAI 2018 Kona Electric 64 kWh",
			"powerLimits": map[string]interface{}{"maxDemandW": maxDemandW},
		},
	}
}

func testSession(mode string, maxDemandW float64) map[string]interface{} {
	return map[string]interface{}{
		"sessionId": "sess-1",
		"mode":      mode,
		"chargeDevice": map[string]interface{}{
			"id":                   testDeviceID,
			"modelTypeDisplayName": "Ohme Home Pro",
			"firmwareVersionLabel": "v2.65",
		},
		"chargeGraph": map[string]interface{}{
			"points": []interface{}{
				map[string]interface{}{"x": 0, "y": 0},
				map[string]interface{}{"x": 600, "y": 0},
				map[string]interface{}{"x": 1200, "y": 2},
				map[string]interface{}{"x": 1800, "y": 4},
				map[string]interface{}{"x": 2400, "y": 4},
			},
		},
		"startTime": int64(1700000000000),
		"power":     map[string]interface{}{"amp": 15.5, "watt": 3600, "volt": 232},
		"car":       testCar(maxDemandW),
	}
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.Method+" "+r.URL.Path]++
	b.mu.Unlock()

	switch {
	case r.URL.Path == "/identity/createAuthUri":
		b.handleCreateAuthURI(w, r)
	case r.URL.Path == "/identity/verifyPassword":
		b.handleVerifyPassword(w, r)
	case r.URL.Path == "/securetoken/token":
		b.handleToken(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/"):
		b.handleAPI(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) handleCreateAuthURI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != testAPIKey {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	status := b.createAuthStatus
	b.mu.Unlock()
	writeJSON(w, status, map[string]interface{}{"registered": true})
}

func (b *fakeBackend) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Email != testEmail || req.Password != testPassword {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{"code": 400, "message": "INVALID_PASSWORD"},
		})
		return
	}
	b.mu.Lock()
	ttl := b.ttlSeconds
	override := b.verifyBody
	b.mu.Unlock()
	if override != "" {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, override)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"idToken":      "id-0",
		"refreshToken": "refresh-0",
		"expiresIn":    fmt.Sprintf("%d", ttl),
	})
}

func (b *fakeBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("key") != testAPIKey {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	b.mu.Lock()
	delay := b.refreshDelay
	status := b.refreshStatus
	body := b.refreshBody
	ttl := b.ttlSeconds
	b.refreshCount++
	n := b.refreshCount
	b.mu.Unlock()

	time.Sleep(delay)
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  fmt.Sprintf("access-%d", n),
		"id_token":      fmt.Sprintf("id-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"expires_in":    ttl,
		"token_type":    "Bearer",
	})
}

func (b *fakeBackend) handleAPI(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAuth = r.Header.Get("Authorization")
	b.lastQuery = r.URL.RawQuery

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/chargeSessions":
		if b.sessionStatus != http.StatusOK {
			w.WriteHeader(b.sessionStatus)
			return
		}
		writeJSON(w, http.StatusOK, b.sessions)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/users/me/account":
		writeJSON(w, http.StatusOK, b.account)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/cars":
		body, _ := io.ReadAll(r.Body)
		b.lastCarBody = body
		if b.commandStatus != http.StatusOK {
			w.WriteHeader(b.commandStatus)
			return
		}
		// The backend reports the posted vehicle as the session's car from now on.
		var car map[string]interface{}
		json.Unmarshal(body, &car)
		for _, s := range b.sessions {
			s["car"] = car
		}
		writeJSON(w, http.StatusOK, car)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/chargeSessions/"):
		w.WriteHeader(b.commandStatus)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) callCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *fakeBackend) apiCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for key, n := range b.calls {
		if strings.Contains(key, " /v1/") {
			total += n
		}
	}
	return total
}

func (b *fakeBackend) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) newAuth(clock Clock) *AuthSession {
	return NewAuthSession(AuthConfig{
		APIKey:         testAPIKey,
		Email:          testEmail,
		IdentityURL:    b.server.URL + "/identity",
		SecureTokenURL: b.server.URL + "/securetoken",
		Clock:          clock,
		Logger:         testLogger(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClock() *MockClock {
	return &MockClock{CurrentTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}
