package storage

import (
	"context"
	"time"

	"ohmebridge/internal/core"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Readings
	SaveReading(ctx context.Context, reading *core.Reading) error
	LatestReading(ctx context.Context) (*core.Reading, error)
	ListReadings(ctx context.Context, since time.Time, limit int) ([]*core.Reading, error)

	// Command audit log
	SaveCommand(ctx context.Context, record *core.CommandRecord) error
	ListCommands(ctx context.Context, limit int) ([]*core.CommandRecord, error)

	// Lifecycle
	Close() error
}
