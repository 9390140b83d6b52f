package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohmebridge/internal/core"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	storage, err := New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

func TestSQLiteStorage_Readings(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	start := base.Add(11 * time.Hour)
	end := start.Add(2 * time.Hour)

	// Test LatestReading - empty
	_, err := storage.LatestReading(ctx)
	assert.ErrorIs(t, err, core.ErrReadingNotFound)

	// Test SaveReading
	first := &core.Reading{
		ID:              "rdg_1",
		DeviceID:        "dev-1",
		Mode:            "SMART_CHARGE",
		CurrentAmps:     15.5,
		CurrentWatts:    3600,
		CurrentVolts:    232,
		MaxAmps:         32,
		NextChargeStart: &start,
		NextChargeEnd:   &end,
		RecordedAt:      base,
	}
	require.NoError(t, storage.SaveReading(ctx, first))

	second := &core.Reading{
		ID:         "rdg_2",
		DeviceID:   "dev-1",
		Mode:       "DISCONNECTED",
		RecordedAt: base.Add(time.Minute),
	}
	require.NoError(t, storage.SaveReading(ctx, second))

	// Test LatestReading
	latest, err := storage.LatestReading(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rdg_2", latest.ID)
	assert.Equal(t, "DISCONNECTED", latest.Mode)
	assert.Nil(t, latest.NextChargeStart)
	assert.Nil(t, latest.NextChargeEnd)
	assert.True(t, base.Add(time.Minute).Equal(latest.RecordedAt))

	// Test ListReadings
	readings, err := storage.ListReadings(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "rdg_2", readings[0].ID)
	assert.Equal(t, "rdg_1", readings[1].ID)

	got := readings[1]
	assert.Equal(t, 15.5, got.CurrentAmps)
	assert.Equal(t, 3600.0, got.CurrentWatts)
	assert.Equal(t, 32, got.MaxAmps)
	require.NotNil(t, got.NextChargeStart)
	require.NotNil(t, got.NextChargeEnd)
	assert.True(t, start.Equal(*got.NextChargeStart))
	assert.True(t, end.Equal(*got.NextChargeEnd))

	// Test ListReadings - since filter
	readings, err = storage.ListReadings(ctx, base.Add(30*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "rdg_2", readings[0].ID)

	// Test ListReadings - limit
	readings, err = storage.ListReadings(ctx, time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}

func TestSQLiteStorage_SaveReadingValidation(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		reading *core.Reading
		wantErr error
	}{
		{
			name:    "missing id",
			reading: &core.Reading{Mode: "STOPPED", RecordedAt: time.Now()},
			wantErr: core.ErrInvalidReadingID,
		},
		{
			name:    "missing mode",
			reading: &core.Reading{ID: "rdg_x", RecordedAt: time.Now()},
			wantErr: core.ErrInvalidMode,
		},
		{
			name:    "missing timestamp",
			reading: &core.Reading{ID: "rdg_x", Mode: "STOPPED"},
			wantErr: core.ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.SaveReading(ctx, tt.reading)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSQLiteStorage_Commands(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*core.CommandRecord{
		{
			ID:        "cmd_1",
			RequestID: "req_1",
			Command:   core.CommandStart,
			Accepted:  true,
			IssuedAt:  base,
			Duration:  250 * time.Millisecond,
		},
		{
			ID:        "cmd_2",
			RequestID: "req_2",
			Command:   core.CommandSwitchAmperage,
			Argument:  5,
			Accepted:  false,
			IssuedAt:  base.Add(time.Minute),
		},
		{
			ID:       "cmd_3",
			Command:  core.CommandStop,
			Error:    "authentication required",
			IssuedAt: base.Add(2 * time.Minute),
		},
	}
	for _, r := range records {
		require.NoError(t, storage.SaveCommand(ctx, r))
	}

	// Test ListCommands
	listed, err := storage.ListCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "cmd_3", listed[0].ID)
	assert.Equal(t, "authentication required", listed[0].Error)
	assert.Empty(t, listed[0].RequestID)

	assert.Equal(t, core.CommandSwitchAmperage, listed[1].Command)
	assert.Equal(t, 5, listed[1].Argument)
	assert.False(t, listed[1].Accepted)

	assert.Equal(t, "req_1", listed[2].RequestID)
	assert.True(t, listed[2].Accepted)
	assert.Equal(t, 250*time.Millisecond, listed[2].Duration)
	assert.Empty(t, listed[2].Error)

	// Test ListCommands - limit
	listed, err = storage.ListCommands(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	// Test SaveCommand - unknown command
	err = storage.SaveCommand(ctx, &core.CommandRecord{ID: "cmd_4", Command: "reboot", IssuedAt: base})
	assert.ErrorIs(t, err, core.ErrInvalidCommand)
}
