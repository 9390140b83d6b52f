package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ohmebridge/internal/core"
	"ohmebridge/internal/storage"
)

const maxListLimit = 1000

// HistoryHandler serves recorded readings and the command audit log
type HistoryHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(storage storage.Storage, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		storage: storage,
		logger:  logger,
	}
}

// ListReadings returns recorded readings, newest first
// GET /readings?since=&limit=
func (h *HistoryHandler) ListReadings(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	var since time.Time
	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid since format. Use RFC3339",
				"code":  "INVALID_DATE_FORMAT",
			})
			return
		}
		since = parsed
	}

	readings, err := h.storage.ListReadings(c.Request.Context(), since, limit)
	if err != nil {
		h.logger.Error("Failed to list readings",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve readings",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(readings))
	for _, reading := range readings {
		response = append(response, formatReadingResponse(reading))
	}

	c.JSON(http.StatusOK, response)
}

// GetLatestReading returns the most recent reading
// GET /readings/latest
func (h *HistoryHandler) GetLatestReading(c *gin.Context) {
	reading, err := h.storage.LatestReading(c.Request.Context())
	if errors.Is(err, core.ErrReadingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No readings recorded yet",
			"code":  "NOT_FOUND",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get latest reading",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve reading",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, formatReadingResponse(reading))
}

// ListCommands returns the command audit log, newest first
// GET /commands?limit=
func (h *HistoryHandler) ListCommands(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	records, err := h.storage.ListCommands(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list commands",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve commands",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(records))
	for _, record := range records {
		item := gin.H{
			"id":          record.ID,
			"request_id":  record.RequestID,
			"command":     string(record.Command),
			"accepted":    record.Accepted,
			"issued_at":   record.IssuedAt.UTC().Format(timeLayout),
			"duration_ms": record.Duration.Milliseconds(),
		}
		if record.Command == core.CommandSwitchAmperage {
			item["amps"] = record.Argument
		}
		if record.Error != "" {
			item["error"] = record.Error
		}
		response = append(response, item)
	}

	c.JSON(http.StatusOK, response)
}

func parseLimit(c *gin.Context) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be between 1 and 1000",
			"code":  "INVALID_LIMIT",
		})
		return 0, false
	}
	return limit, true
}

func formatReadingResponse(reading *core.Reading) gin.H {
	return gin.H{
		"id":                reading.ID,
		"device_id":         reading.DeviceID,
		"mode":              reading.Mode,
		"current_amps":      reading.CurrentAmps,
		"current_watts":     reading.CurrentWatts,
		"current_volts":     reading.CurrentVolts,
		"max_amps":          reading.MaxAmps,
		"next_charge_start": formatOptionalTime(reading.NextChargeStart),
		"next_charge_end":   formatOptionalTime(reading.NextChargeEnd),
		"recorded_at":       reading.RecordedAt.UTC().Format(timeLayout),
	}
}
