package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ohmebridge/internal/core"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	charger core.Controller
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(charger core.Controller) *HealthHandler {
	return &HealthHandler{charger: charger}
}

// GetHealth returns the health status of the service
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := gin.H{
		"status":  "UP",
		"service": "ohmebridge",
	}

	if h.charger != nil {
		state := h.charger.State()
		response["charger_synced"] = !state.UpdatedAt.IsZero()
		if !state.UpdatedAt.IsZero() {
			response["last_sync"] = state.UpdatedAt.UTC().Format(timeLayout)
		}
	}

	c.JSON(http.StatusOK, response)
}
