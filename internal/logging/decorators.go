package logging

import (
	"context"
	"log/slog"
	"time"

	"ohmebridge/internal/core"
)

// ChargerLogger wraps a Controller and logs all commands
type ChargerLogger struct {
	charger core.Controller
	logger  *slog.Logger
}

// NewChargerLogger creates a new logging decorator for a charger Controller
func NewChargerLogger(charger core.Controller, logger *slog.Logger) core.Controller {
	return &ChargerLogger{
		charger: charger,
		logger:  logger.With("interface", "Controller"),
	}
}

func (l *ChargerLogger) StartCharge(ctx context.Context) (bool, error) {
	return l.command(ctx, "StartCharge", l.charger.StartCharge)
}

func (l *ChargerLogger) StopCharge(ctx context.Context) (bool, error) {
	return l.command(ctx, "StopCharge", l.charger.StopCharge)
}

func (l *ChargerLogger) ResumeCharge(ctx context.Context) (bool, error) {
	return l.command(ctx, "ResumeCharge", l.charger.ResumeCharge)
}

func (l *ChargerLogger) SwitchAmperage(ctx context.Context, amps int) (bool, error) {
	start := time.Now()
	l.logger.Info("SwitchAmperage called",
		"requested_amps", amps)

	accepted, err := l.charger.SwitchAmperage(ctx, amps)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SwitchAmperage failed",
			"requested_amps", amps,
			"accepted", accepted,
			"duration", duration,
			"error", err)
		return accepted, err
	}

	l.logger.Info("SwitchAmperage completed",
		"requested_amps", amps,
		"accepted", accepted,
		"max_amps", l.charger.State().MaxAmps,
		"duration", duration)

	return accepted, nil
}

func (l *ChargerLogger) Refresh(ctx context.Context) error {
	start := time.Now()

	err := l.charger.Refresh(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("Refresh failed",
			"duration", duration,
			"error", err)
		return err
	}

	// Polling runs every minute; keep success at debug.
	state := l.charger.State()
	l.logger.Debug("Refresh completed",
		"device_id", state.DeviceID,
		"mode", state.Mode,
		"duration", duration)

	return nil
}

func (l *ChargerLogger) State() core.ChargerState {
	return l.charger.State()
}

func (l *ChargerLogger) command(ctx context.Context, name string, fn func(context.Context) (bool, error)) (bool, error) {
	start := time.Now()
	l.logger.Info(name + " called")

	accepted, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error(name+" failed",
			"accepted", accepted,
			"duration", duration,
			"error", err)
		return accepted, err
	}

	if !accepted {
		l.logger.Warn(name+" rejected",
			"duration", duration)
		return false, nil
	}

	l.logger.Info(name+" completed",
		"duration", duration)

	return true, nil
}
