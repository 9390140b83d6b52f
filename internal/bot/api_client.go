package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// apiKeyHeader carries the bridge API key
const apiKeyHeader = "X-Ohme-Key"

// codeCommandRejected is returned by the bridge when the charger declines a command
const codeCommandRejected = "COMMAND_REJECTED"

// BridgeAPI is a client for the ohmebridge REST API
type BridgeAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewBridgeAPI creates a new bridge API client
func NewBridgeAPI(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *BridgeAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BridgeAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ChargerState is the charger state reported by the bridge
type ChargerState struct {
	DeviceID        string     `json:"device_id"`
	DisplayName     string     `json:"display_name"`
	Firmware        string     `json:"firmware"`
	Mode            string     `json:"mode"`
	Disconnected    bool       `json:"disconnected"`
	MaxCharging     bool       `json:"max_charging"`
	CurrentAmps     float64    `json:"current_amps"`
	CurrentWatts    float64    `json:"current_watts"`
	CurrentVolts    float64    `json:"current_volts"`
	MaxAmps         int        `json:"max_amps"`
	Scheduled       bool       `json:"scheduled"`
	NextChargeStart *time.Time `json:"next_charge_start"`
	NextChargeEnd   *time.Time `json:"next_charge_end"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// Schedule is the charge window inferred by the bridge
type Schedule struct {
	Scheduled       bool       `json:"scheduled"`
	NextChargeStart *time.Time `json:"next_charge_start"`
	NextChargeEnd   *time.Time `json:"next_charge_end"`
	FinalChargeEnd  *time.Time `json:"final_charge_end"`
}

// CommandResult is the outcome of a charger command
type CommandResult struct {
	Command  string       `json:"command"`
	Accepted bool         `json:"accepted"`
	Warning  string       `json:"warning"`
	State    ChargerState `json:"state"`
}

// APIError represents an API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// GetCharger retrieves the latest charger state
func (a *BridgeAPI) GetCharger(ctx context.Context) (*ChargerState, error) {
	var state ChargerState
	if err := a.doRequest(ctx, http.MethodGet, "/v1/charger", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetSchedule retrieves the inferred charge window
func (a *BridgeAPI) GetSchedule(ctx context.Context) (*Schedule, error) {
	var schedule Schedule
	if err := a.doRequest(ctx, http.MethodGet, "/v1/charger/schedule", nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Refresh asks the bridge to pull fresh state from the backend
func (a *BridgeAPI) Refresh(ctx context.Context) (*ChargerState, error) {
	var state ChargerState
	if err := a.doRequest(ctx, http.MethodPost, "/v1/charger/refresh", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// StartCharge requests an immediate max-rate charge
func (a *BridgeAPI) StartCharge(ctx context.Context) (*CommandResult, error) {
	return a.command(ctx, "start", "/v1/charger/start", nil)
}

// StopCharge stops charging
func (a *BridgeAPI) StopCharge(ctx context.Context) (*CommandResult, error) {
	return a.command(ctx, "stop", "/v1/charger/stop", nil)
}

// ResumeCharge resumes a stopped charge
func (a *BridgeAPI) ResumeCharge(ctx context.Context) (*CommandResult, error) {
	return a.command(ctx, "resume", "/v1/charger/resume", nil)
}

// SetAmps limits the charge current to the nearest tier at or below amps
func (a *BridgeAPI) SetAmps(ctx context.Context, amps int) (*CommandResult, error) {
	req := struct {
		Amps int `json:"amps"`
	}{
		Amps: amps,
	}
	return a.command(ctx, "switch_amperage", "/v1/charger/amps", req)
}

// command posts a charger command. A rejection by the charger is a result,
// not an error.
func (a *BridgeAPI) command(ctx context.Context, name, path string, body interface{}) (*CommandResult, error) {
	var result CommandResult
	err := a.doRequest(ctx, http.MethodPost, path, body, &result)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeCommandRejected {
		return &CommandResult{Command: name, Accepted: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// doRequest performs an HTTP request to the bridge API
func (a *BridgeAPI) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := a.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	a.logger.Debug("API request",
		"method", method,
		"url", url,
	)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
