package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ohmebridge/internal/api/middleware"
	"ohmebridge/internal/core"
	"ohmebridge/internal/drivers/ohme"
	"ohmebridge/internal/idgen"
)

const timeLayout = time.RFC3339

// CommandLog records issued charger commands
type CommandLog interface {
	SaveCommand(ctx context.Context, record *core.CommandRecord) error
}

// Poller refreshes the charger out of band
type Poller interface {
	Trigger()
}

// ChargerHandler handles charger state and command requests
type ChargerHandler struct {
	charger  core.Controller
	commands CommandLog
	poller   Poller
	logger   *slog.Logger
}

// NewChargerHandler creates a new charger handler. commands and poller may be nil.
func NewChargerHandler(charger core.Controller, commands CommandLog, poller Poller, logger *slog.Logger) *ChargerHandler {
	return &ChargerHandler{
		charger:  charger,
		commands: commands,
		poller:   poller,
		logger:   logger,
	}
}

// GetCharger returns the latest charger state
// GET /charger
func (h *ChargerHandler) GetCharger(c *gin.Context) {
	c.JSON(http.StatusOK, formatStateResponse(h.charger.State()))
}

// GetSchedule returns the charge window inferred from the charge graph
// GET /charger/schedule
func (h *ChargerHandler) GetSchedule(c *gin.Context) {
	state := h.charger.State()
	c.JSON(http.StatusOK, gin.H{
		"scheduled":         state.Scheduled,
		"next_charge_start": formatOptionalTime(state.NextChargeStart),
		"next_charge_end":   formatOptionalTime(state.NextChargeEnd),
		"final_charge_end":  formatOptionalTime(state.FinalChargeEnd),
	})
}

// StartCharge forces an immediate max-rate charge
// POST /charger/start
func (h *ChargerHandler) StartCharge(c *gin.Context) {
	h.runCommand(c, core.CommandStart, 0, h.charger.StartCharge)
}

// StopCharge stops the current charge
// POST /charger/stop
func (h *ChargerHandler) StopCharge(c *gin.Context) {
	h.runCommand(c, core.CommandStop, 0, h.charger.StopCharge)
}

// ResumeCharge resumes a stopped charge
// POST /charger/resume
func (h *ChargerHandler) ResumeCharge(c *gin.Context) {
	h.runCommand(c, core.CommandResume, 0, h.charger.ResumeCharge)
}

// SetAmperage switches to the charge profile for the requested current
// POST /charger/amps
func (h *ChargerHandler) SetAmperage(c *gin.Context) {
	var req struct {
		Amps int `json:"amps" binding:"required,gt=0"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	h.runCommand(c, core.CommandSwitchAmperage, req.Amps, func(ctx context.Context) (bool, error) {
		return h.charger.SwitchAmperage(ctx, req.Amps)
	})
}

// Refresh pulls fresh state from the backend
// POST /charger/refresh
func (h *ChargerHandler) Refresh(c *gin.Context) {
	start := time.Now()
	err := h.charger.Refresh(c.Request.Context())
	h.audit(c, core.CommandRefresh, 0, err == nil, err, start)

	if err != nil {
		h.writeChargerError(c, core.CommandRefresh, err)
		return
	}

	c.JSON(http.StatusOK, formatStateResponse(h.charger.State()))
}

func (h *ChargerHandler) runCommand(c *gin.Context, command core.CommandType, argument int, fn func(context.Context) (bool, error)) {
	start := time.Now()
	accepted, err := fn(c.Request.Context())
	h.audit(c, command, argument, accepted, err, start)

	// A switch that was accepted but failed to refresh still changed the charger
	if accepted && h.poller != nil {
		h.poller.Trigger()
	}

	if err != nil && !accepted {
		h.writeChargerError(c, command, err)
		return
	}

	if !accepted {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Command rejected by charger",
			"code":    "COMMAND_REJECTED",
			"command": string(command),
		})
		return
	}

	response := gin.H{
		"command":  string(command),
		"accepted": true,
		"state":    formatStateResponse(h.charger.State()),
	}
	if err != nil {
		response["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, response)
}

func (h *ChargerHandler) audit(c *gin.Context, command core.CommandType, argument int, accepted bool, err error, start time.Time) {
	if h.commands == nil {
		return
	}

	record := &core.CommandRecord{
		ID:        idgen.NewCommand(),
		RequestID: c.GetString(middleware.RequestIDKey),
		Command:   command,
		Argument:  argument,
		Accepted:  accepted,
		IssuedAt:  start.UTC(),
		Duration:  time.Since(start),
	}
	if err != nil {
		record.Error = err.Error()
	}

	// Audit failures must not change the command outcome
	if saveErr := h.commands.SaveCommand(context.WithoutCancel(c.Request.Context()), record); saveErr != nil {
		h.logger.Error("Failed to record command",
			"component", "api",
			"command", string(command),
			"error", saveErr,
		)
	}
}

// writeChargerError maps charger client errors onto HTTP responses
func (h *ChargerHandler) writeChargerError(c *gin.Context, command core.CommandType, err error) {
	status, code := classifyError(err)

	logArgs := []any{
		"component", "api",
		"command", string(command),
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Charger command failed", logArgs...)
	} else {
		h.logger.Warn("Charger command failed", logArgs...)
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func classifyError(err error) (int, string) {
	var protoErr *ohme.AuthProtocolError
	var transportErr *ohme.TransportError

	switch {
	case errors.Is(err, ohme.ErrInvalidCredentials):
		return http.StatusUnauthorized, "AUTH_REQUIRED"
	case errors.Is(err, ohme.ErrAuthTimeout):
		return http.StatusBadGateway, "AUTH_UNAVAILABLE"
	case errors.As(err, &protoErr):
		return http.StatusBadGateway, "AUTH_PROTOCOL_ERROR"
	case errors.Is(err, ohme.ErrNoDevice), errors.Is(err, ohme.ErrNoChargeSession):
		return http.StatusConflict, "NO_CHARGER"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func formatStateResponse(state core.ChargerState) gin.H {
	response := gin.H{
		"device_id":         state.DeviceID,
		"display_name":      state.DisplayName,
		"firmware":          state.Firmware,
		"mode":              state.Mode,
		"disconnected":      state.Disconnected,
		"max_charging":      state.MaxCharging,
		"current_amps":      state.CurrentAmps,
		"current_watts":     state.CurrentWatts,
		"current_volts":     state.CurrentVolts,
		"max_amps":          state.MaxAmps,
		"scheduled":         state.Scheduled,
		"next_charge_start": formatOptionalTime(state.NextChargeStart),
		"next_charge_end":   formatOptionalTime(state.NextChargeEnd),
	}

	if state.UpdatedAt.IsZero() {
		response["updated_at"] = nil
	} else {
		response["updated_at"] = state.UpdatedAt.UTC().Format(timeLayout)
	}

	return response
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
