package ohme

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ohmebridge/internal/core"
)

// DefaultBaseURL is the charger control API
const DefaultBaseURL = "https://api.ohme.io"

// API endpoint paths
const (
	apiPathChargeSessions = "/v1/chargeSessions"
	apiPathAccount        = "/v1/users/me/account"
	apiPathCars           = "/v1/cars"
	apiQueryMaxCharge     = "/rule/?enableMaxPrice=false&preconditionLengthMins=30&maxCharge=true"
	apiSuffixStop         = "/stop"
	apiSuffixResume       = "/resume"
)

// Config contains charger API settings
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Profiles   *ProfileTable // defaults to DefaultProfiles()
	Clock      Clock         // defaults to the auth session's clock
	Logger     *slog.Logger
}

// Charger issues authenticated commands for one charge device and keeps the
// most recently fetched session and account snapshots.
type Charger struct {
	auth       *AuthSession
	baseURL    string
	httpClient *http.Client
	profiles   ProfileTable
	clock      Clock
	logger     *slog.Logger

	mu        sync.RWMutex
	session   DeviceSnapshot
	account   AccountSnapshot
	updatedAt time.Time
}

// NewCharger creates a charger client holding placeholder snapshots
func NewCharger(auth *AuthSession, config Config) *Charger {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	profiles := DefaultProfiles()
	if config.Profiles != nil {
		profiles = *config.Profiles
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
		if auth != nil {
			config.Clock = auth.clock
		}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Charger{
		auth:       auth,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: config.HTTPClient,
		profiles:   profiles,
		clock:      config.Clock,
		logger:     config.Logger.With("component", "ohme.charger"),
		session:    placeholderSnapshot(),
	}
}

// StartCharge requests an immediate max charge with no price cap
func (c *Charger) StartCharge(ctx context.Context) (bool, error) {
	return c.sessionCommand(ctx, "start charge", apiQueryMaxCharge)
}

// StopCharge stops the current charge
func (c *Charger) StopCharge(ctx context.Context) (bool, error) {
	return c.sessionCommand(ctx, "stop charge", apiSuffixStop)
}

// ResumeCharge resumes a stopped charge
func (c *Charger) ResumeCharge(ctx context.Context) (bool, error) {
	return c.sessionCommand(ctx, "resume charge", apiSuffixResume)
}

func (c *Charger) sessionCommand(ctx context.Context, op, suffix string) (bool, error) {
	header, err := c.authorize(ctx)
	if err != nil {
		return false, err
	}

	deviceID := c.DeviceID()
	if deviceID == "" {
		return false, ErrNoDevice
	}

	path := apiPathChargeSessions + "/" + url.PathEscape(deviceID) + suffix
	return c.command(ctx, op, header, http.MethodPut, path, nil)
}

// SwitchAmperage selects the vehicle profile with the greatest rating not
// above requested. It returns false without any network call when no
// profile qualifies.
func (c *Charger) SwitchAmperage(ctx context.Context, requested int) (bool, error) {
	profile, ok := c.profiles.Resolve(requested)
	if !ok {
		c.logger.Info("No charge profile at or below requested current",
			"requested_amps", requested,
			"supported", c.profiles.Ratings())
		return false, nil
	}

	header, err := c.authorize(ctx)
	if err != nil {
		return false, err
	}

	accepted, err := c.command(ctx, "switch amperage", header, http.MethodPost, apiPathCars, profile.Descriptor)
	if err != nil || !accepted {
		return accepted, err
	}

	c.logger.Info("Charge profile switched",
		"requested_amps", requested,
		"profile_amps", profile.Amps)

	// Max amps derives from the active vehicle, so pull it again now.
	if err := c.Refresh(ctx); err != nil {
		return true, fmt.Errorf("profile %dA accepted but state refresh failed: %w", profile.Amps, err)
	}
	return true, nil
}

// command sends a request whose rejection is a routine outcome
func (c *Charger) command(ctx context.Context, op, header, method, path string, body []byte) (bool, error) {
	status, respBody, err := c.send(ctx, op, header, method, path, body)
	if err != nil {
		return false, err
	}
	if !isSuccess(status) {
		c.logger.Warn("Command rejected",
			"op", op,
			"status", status,
			"body", truncate(string(respBody), 256))
		return false, nil
	}
	return true, nil
}

// FetchSession replaces the session snapshot with the backend's active session
func (c *Charger) FetchSession(ctx context.Context) (DeviceSnapshot, error) {
	const op = "fetch session"

	var sessions []sessionJSON
	if err := c.fetch(ctx, op, apiPathChargeSessions, &sessions); err != nil {
		return DeviceSnapshot{}, err
	}
	if len(sessions) == 0 {
		return DeviceSnapshot{}, ErrNoChargeSession
	}
	snapshot, err := sessions[0].snapshot()
	if err != nil {
		return DeviceSnapshot{}, &TransportError{Op: op, Err: err}
	}

	c.mu.Lock()
	c.session = snapshot
	c.updatedAt = c.clock.Now()
	c.mu.Unlock()

	return snapshot.clone(), nil
}

// FetchAccount replaces the account snapshot
func (c *Charger) FetchAccount(ctx context.Context) (AccountSnapshot, error) {
	var account accountJSON
	if err := c.fetch(ctx, "fetch account", apiPathAccount, &account); err != nil {
		return AccountSnapshot{}, err
	}
	snapshot := account.snapshot()

	c.mu.Lock()
	c.account = snapshot
	c.mu.Unlock()

	return snapshot.clone(), nil
}

// Refresh fetches the session, then the account
func (c *Charger) Refresh(ctx context.Context) error {
	session, err := c.FetchSession(ctx)
	if err != nil {
		return err
	}
	if _, err := c.FetchAccount(ctx); err != nil {
		return err
	}

	c.logger.Debug("Charger state refreshed",
		"device_id", session.DeviceID,
		"mode", session.Mode,
		"disconnected", session.Mode == ModeDisconnected)
	return nil
}

// ChargeTimes fetches the session and infers its charge window boundaries
func (c *Charger) ChargeTimes(ctx context.Context) ([]int64, error) {
	session, err := c.FetchSession(ctx)
	if err != nil {
		return nil, err
	}
	return InferWindows(session), nil
}

func (c *Charger) fetch(ctx context.Context, op, path string, out interface{}) error {
	header, err := c.authorize(ctx)
	if err != nil {
		return err
	}

	status, respBody, err := c.send(ctx, op, header, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &TransportError{Op: op, StatusCode: status}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// authorize refreshes the token if needed and returns the Authorization value
func (c *Charger) authorize(ctx context.Context) (string, error) {
	if err := c.auth.EnsureFresh(ctx); err != nil {
		return "", err
	}
	return c.auth.AuthorizationHeader()
}

func (c *Charger) send(ctx context.Context, op, header, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	httpReq.Header.Set("Authorization", header)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return resp.StatusCode, respBody, nil
}

// Session returns a copy of the latest session snapshot
func (c *Charger) Session() DeviceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// Account returns a copy of the latest account snapshot
func (c *Charger) Account() AccountSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account.clone()
}

// DeviceID returns the charge device of the latest session
func (c *Charger) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.DeviceID
}

// ChargeStatus returns the latest session mode
func (c *Charger) ChargeStatus() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Mode
}

// Disconnected reports whether no vehicle is plugged in
func (c *Charger) Disconnected() bool {
	return c.ChargeStatus() == ModeDisconnected
}

// IsMaxCharging reports whether the charger is forced to full rate
func (c *Charger) IsMaxCharging() bool {
	return c.ChargeStatus() == ModeMaxCharge
}

// CurrentAmps is zero when no power reading is present
func (c *Charger) CurrentAmps() float64 {
	return c.power().Amps
}

// CurrentWatts is zero when no power reading is present
func (c *Charger) CurrentWatts() float64 {
	return c.power().Watts
}

// CurrentVolts is zero when no power reading is present
func (c *Charger) CurrentVolts() float64 {
	return c.power().Volts
}

func (c *Charger) power() Power {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.Power == nil {
		return Power{}
	}
	return *c.session.Power
}

// MaxAmps derives the configured current limit from the active vehicle:
// the session's car when present, otherwise the account's first car.
func (c *Charger) MaxAmps() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxAmpsLocked()
}

func (c *Charger) maxAmpsLocked() int {
	if c.session.Car != nil {
		return c.session.Car.MaxAmps()
	}
	if len(c.account.Cars) > 0 {
		return c.account.Cars[0].MaxAmps()
	}
	return 0
}

// Window infers the charge window from the latest session snapshot
func (c *Charger) Window() ChargeWindow {
	return NewChargeWindow(c.Session())
}

// ScheduledCharging reports whether the latest graph contains a charge window
func (c *Charger) ScheduledCharging() bool {
	return c.Window().Scheduled()
}

// Profiles returns the tier table in use
func (c *Charger) Profiles() ProfileTable {
	return c.profiles
}

// State summarizes the latest snapshots for hosts
func (c *Charger) State() core.ChargerState {
	c.mu.RLock()
	session := c.session.clone()
	state := core.ChargerState{
		DeviceID:     session.DeviceID,
		DisplayName:  session.Device.ModelTypeDisplayName,
		Firmware:     session.Device.FirmwareVersionLabel,
		Mode:         string(session.Mode),
		Disconnected: session.Mode == ModeDisconnected,
		MaxCharging:  session.Mode == ModeMaxCharge,
		MaxAmps:      c.maxAmpsLocked(),
		UpdatedAt:    c.updatedAt,
	}
	c.mu.RUnlock()

	if session.Power != nil {
		state.CurrentAmps = session.Power.Amps
		state.CurrentWatts = session.Power.Watts
		state.CurrentVolts = session.Power.Volts
	}

	window := NewChargeWindow(session)
	state.Scheduled = window.Scheduled()
	if t, ok := window.NextStart(); ok {
		state.NextChargeStart = &t
	}
	if t, ok := window.NextEnd(); ok {
		state.NextChargeEnd = &t
	}
	if t, ok := window.FinalEnd(); ok {
		state.FinalChargeEnd = &t
	}
	return state
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure Charger implements core.Controller
var _ core.Controller = (*Charger)(nil)
