package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusUpdate = `{
	"update_id": 7,
	"message": {
		"message_id": 10,
		"from": {"id": 1001, "is_bot": false, "first_name": "Sam", "username": "driver"},
		"chat": {"id": 5005, "type": "private"},
		"date": 1709251200,
		"text": "/status",
		"entities": [{"type": "bot_command", "offset": 0, "length": 7}]
	}
}`

func TestWebhook_Health(t *testing.T) {
	bot, _, _ := setupBot(t)
	router := NewRouter(RouterConfig{Bot: bot, Logger: newTestLogger()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"ohmebridge-bot"`)
}

func TestWebhook_SecretToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantSent   int
	}{
		{"missing token", "", http.StatusUnauthorized, 0},
		{"wrong token", "nope", http.StatusUnauthorized, 0},
		{"valid token", "s3cret", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, sender, _ := setupBot(t)
			router := NewRouter(RouterConfig{Bot: bot, WebhookSecret: "s3cret", Logger: newTestLogger()})

			req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(statusUpdate))
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set(secretTokenHeader, tt.token)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Len(t, sender.sent, tt.wantSent)
		})
	}
}

func TestWebhook_ValidUpdate(t *testing.T) {
	bot, sender, bridge := setupBot(t)
	router := NewRouter(RouterConfig{Bot: bot, Logger: newTestLogger()})

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(statusUpdate))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Contains(t, sender.lastMessage(t).Text, "Driveway")
	assert.Equal(t, []string{"/v1/charger"}, bridge.called())
}

func TestWebhook_InvalidBody(t *testing.T) {
	bot, sender, _ := setupBot(t)
	router := NewRouter(RouterConfig{Bot: bot, Logger: newTestLogger()})

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sender.sent)
}
