package core

import (
	"context"
	"errors"
	"time"
)

// ChargerState is a read-only summary of the latest charger snapshots
type ChargerState struct {
	DeviceID     string
	DisplayName  string
	Firmware     string
	Mode         string
	Disconnected bool
	MaxCharging  bool
	CurrentAmps  float64
	CurrentWatts float64
	CurrentVolts float64
	MaxAmps      int

	Scheduled       bool
	NextChargeStart *time.Time
	NextChargeEnd   *time.Time
	FinalChargeEnd  *time.Time

	UpdatedAt time.Time // zero until the first successful fetch
}

// Controller is the command and state surface of one charger
type Controller interface {
	StartCharge(ctx context.Context) (bool, error)
	StopCharge(ctx context.Context) (bool, error)
	ResumeCharge(ctx context.Context) (bool, error)
	SwitchAmperage(ctx context.Context, amps int) (bool, error)
	Refresh(ctx context.Context) error
	State() ChargerState
}

// CommandType identifies a charger command
type CommandType string

const (
	CommandStart          CommandType = "start"
	CommandStop           CommandType = "stop"
	CommandResume         CommandType = "resume"
	CommandSwitchAmperage CommandType = "switch_amperage"
	CommandRefresh        CommandType = "refresh"
)

// Valid reports whether t is a known command
func (t CommandType) Valid() bool {
	switch t {
	case CommandStart, CommandStop, CommandResume, CommandSwitchAmperage, CommandRefresh:
		return true
	}
	return false
}

// Reading is one recorded poll of the charger
type Reading struct {
	ID              string
	DeviceID        string
	Mode            string
	CurrentAmps     float64
	CurrentWatts    float64
	CurrentVolts    float64
	MaxAmps         int
	NextChargeStart *time.Time
	NextChargeEnd   *time.Time
	RecordedAt      time.Time
}

// NewReading captures a state as a reading
func NewReading(id string, state ChargerState, at time.Time) *Reading {
	return &Reading{
		ID:              id,
		DeviceID:        state.DeviceID,
		Mode:            state.Mode,
		CurrentAmps:     state.CurrentAmps,
		CurrentWatts:    state.CurrentWatts,
		CurrentVolts:    state.CurrentVolts,
		MaxAmps:         state.MaxAmps,
		NextChargeStart: state.NextChargeStart,
		NextChargeEnd:   state.NextChargeEnd,
		RecordedAt:      at,
	}
}

// Validate validates a reading before it is stored
func (r *Reading) Validate() error {
	if r.ID == "" {
		return ErrInvalidReadingID
	}
	if r.Mode == "" {
		return ErrInvalidMode
	}
	if r.RecordedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// CommandRecord is an audit entry for an issued command
type CommandRecord struct {
	ID        string
	RequestID string
	Command   CommandType
	Argument  int // requested amps for switch_amperage
	Accepted  bool
	Error     string
	IssuedAt  time.Time
	Duration  time.Duration
}

// Validate validates a command record before it is stored
func (c *CommandRecord) Validate() error {
	if c.ID == "" {
		return ErrInvalidCommandID
	}
	if !c.Command.Valid() {
		return ErrInvalidCommand
	}
	if c.IssuedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

var (
	ErrInvalidReadingID = errors.New("invalid reading ID")
	ErrInvalidCommandID = errors.New("invalid command ID")
	ErrInvalidCommand   = errors.New("unknown command type")
	ErrInvalidMode      = errors.New("mode cannot be empty")
	ErrInvalidTimestamp = errors.New("timestamp cannot be zero")
	ErrReadingNotFound  = errors.New("reading not found")
)
