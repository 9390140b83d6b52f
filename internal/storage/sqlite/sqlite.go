package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ohmebridge/internal/core"
	"ohmebridge/internal/storage"
)

const defaultListLimit = 100

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The poller and API handlers write concurrently
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS readings (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			current_amps REAL NOT NULL DEFAULT 0,
			current_watts REAL NOT NULL DEFAULT 0,
			current_volts REAL NOT NULL DEFAULT 0,
			max_amps INTEGER NOT NULL DEFAULT 0,
			next_charge_start DATETIME,
			next_charge_end DATETIME,
			recorded_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS commands (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			command TEXT NOT NULL,
			argument INTEGER NOT NULL DEFAULT 0,
			accepted INTEGER NOT NULL,
			error TEXT,
			issued_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_readings_recorded_at ON readings(recorded_at);
		CREATE INDEX IF NOT EXISTS idx_commands_issued_at ON commands(issued_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReading stores a charger reading
func (s *SQLiteStorage) SaveReading(ctx context.Context, reading *core.Reading) error {
	if err := reading.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (id, device_id, mode, current_amps, current_watts, current_volts,
			max_amps, next_charge_start, next_charge_end, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, reading.ID, reading.DeviceID, reading.Mode, reading.CurrentAmps, reading.CurrentWatts,
		reading.CurrentVolts, reading.MaxAmps, nullTime(reading.NextChargeStart),
		nullTime(reading.NextChargeEnd), reading.RecordedAt.UTC())

	return err
}

// LatestReading returns the most recently recorded reading
func (s *SQLiteStorage) LatestReading(ctx context.Context) (*core.Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, mode, current_amps, current_watts, current_volts,
			max_amps, next_charge_start, next_charge_end, recorded_at
		FROM readings ORDER BY recorded_at DESC LIMIT 1
	`)

	reading, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrReadingNotFound
	}
	if err != nil {
		return nil, err
	}
	return reading, nil
}

// ListReadings returns readings recorded at or after since, newest first
func (s *SQLiteStorage) ListReadings(ctx context.Context, since time.Time, limit int) ([]*core.Reading, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, mode, current_amps, current_watts, current_volts,
			max_amps, next_charge_start, next_charge_end, recorded_at
		FROM readings WHERE recorded_at >= ?
		ORDER BY recorded_at DESC LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]*core.Reading, 0)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}

// SaveCommand appends an entry to the command audit log
func (s *SQLiteStorage) SaveCommand(ctx context.Context, record *core.CommandRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	var errText sql.NullString
	if record.Error != "" {
		errText = sql.NullString{String: record.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (id, request_id, command, argument, accepted, error, issued_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.RequestID, string(record.Command), record.Argument, record.Accepted,
		errText, record.IssuedAt.UTC(), record.Duration.Milliseconds())

	return err
}

// ListCommands returns the most recent commands, newest first
func (s *SQLiteStorage) ListCommands(ctx context.Context, limit int) ([]*core.CommandRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, command, argument, accepted, error, issued_at, duration_ms
		FROM commands ORDER BY issued_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*core.CommandRecord, 0)
	for rows.Next() {
		var record core.CommandRecord
		var requestID, errText sql.NullString
		var command string
		var durationMs int64

		if err := rows.Scan(&record.ID, &requestID, &command, &record.Argument, &record.Accepted,
			&errText, &record.IssuedAt, &durationMs); err != nil {
			return nil, err
		}

		record.RequestID = requestID.String
		record.Command = core.CommandType(command)
		record.Error = errText.String
		record.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row rowScanner) (*core.Reading, error) {
	var reading core.Reading
	var nextStart, nextEnd sql.NullTime

	if err := row.Scan(&reading.ID, &reading.DeviceID, &reading.Mode, &reading.CurrentAmps,
		&reading.CurrentWatts, &reading.CurrentVolts, &reading.MaxAmps, &nextStart, &nextEnd,
		&reading.RecordedAt); err != nil {
		return nil, err
	}

	if nextStart.Valid {
		t := nextStart.Time.UTC()
		reading.NextChargeStart = &t
	}
	if nextEnd.Valid {
		t := nextEnd.Time.UTC()
		reading.NextChargeEnd = &t
	}
	reading.RecordedAt = reading.RecordedAt.UTC()

	return &reading, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Ensure SQLiteStorage implements storage.Storage
var _ storage.Storage = (*SQLiteStorage)(nil)
