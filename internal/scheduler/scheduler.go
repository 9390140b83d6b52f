package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ohmebridge/internal/core"
	"ohmebridge/internal/idgen"
)

// Storage interface for scheduler operations
type Storage interface {
	SaveReading(ctx context.Context, reading *core.Reading) error
}

// Authenticator restores a session whose credential was revoked by the backend
type Authenticator interface {
	Authenticated() bool
	SignIn(ctx context.Context) error
}

// Scheduler polls the charger periodically and records each reading
type Scheduler struct {
	charger  core.Controller
	storage  Storage
	auth     Authenticator
	interval time.Duration
	trigger  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(charger core.Controller, storage Storage, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		charger:  charger,
		storage:  storage,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "scheduler"),
	}
}

// SetAuthenticator lets Poll sign in again, at most once per poll, after the
// credential has been cleared. Call before Start.
func (s *Scheduler) SetAuthenticator(auth Authenticator) {
	s.auth = auth
}

// Start begins the scheduler loop. It blocks until Stop is called.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.trigger:
			s.logger.Debug("Poll triggered")
			s.tick()
			ticker.Reset(s.interval)
		case <-s.stopChan:
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Trigger requests an immediate poll. Requests made while one is pending
// are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// tick performs one cycle of the scheduler
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.Poll(ctx); err != nil {
		s.logger.Error("Poll failed", "error", err)
	}
}

// Poll refreshes the charger and stores the resulting reading. On failure the
// charger keeps its previous snapshot and nothing is recorded.
func (s *Scheduler) Poll(ctx context.Context) error {
	err := s.charger.Refresh(ctx)
	if err != nil && s.auth != nil && !s.auth.Authenticated() {
		s.logger.Warn("Credential revoked, signing in again", "error", err)
		if signInErr := s.auth.SignIn(ctx); signInErr != nil {
			return fmt.Errorf("sign-in after revoked credential: %w", signInErr)
		}
		s.logger.Info("Signed in again")
		err = s.charger.Refresh(ctx)
	}
	if err != nil {
		return err
	}

	state := s.charger.State()
	reading := core.NewReading(idgen.NewReading(), state, time.Now().UTC())

	s.logger.Debug("Charger polled",
		"device_id", state.DeviceID,
		"mode", state.Mode,
		"amps", state.CurrentAmps,
		"max_amps", state.MaxAmps)

	if s.storage == nil {
		return nil
	}
	return s.storage.SaveReading(ctx, reading)
}
