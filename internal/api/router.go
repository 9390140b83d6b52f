package api

import (
	"crypto/subtle"
	"log/slog"

	"ohmebridge/internal/api/handlers"
	"ohmebridge/internal/api/middleware"
	"ohmebridge/internal/core"
	"ohmebridge/internal/storage"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the local API key
const APIKeyHeader = "X-Ohme-Key"

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Charger core.Controller
	Storage storage.Storage // optional: history endpoints and command audit
	Poller  handlers.Poller // optional: refreshed after accepted commands
	APIKey  string
	Logger  *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Charger)
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		var commandLog handlers.CommandLog
		if config.Storage != nil {
			commandLog = config.Storage
		}

		chargerHandler := handlers.NewChargerHandler(
			config.Charger,
			commandLog,
			config.Poller,
			config.Logger,
		)
		v1.GET("/charger", chargerHandler.GetCharger)
		v1.GET("/charger/schedule", chargerHandler.GetSchedule)
		v1.POST("/charger/start", chargerHandler.StartCharge)
		v1.POST("/charger/stop", chargerHandler.StopCharge)
		v1.POST("/charger/resume", chargerHandler.ResumeCharge)
		v1.POST("/charger/amps", chargerHandler.SetAmperage)
		v1.POST("/charger/refresh", chargerHandler.Refresh)

		if config.Storage != nil {
			historyHandler := handlers.NewHistoryHandler(config.Storage, config.Logger)
			v1.GET("/readings", historyHandler.ListReadings)
			v1.GET("/readings/latest", historyHandler.GetLatestReading)
			v1.GET("/commands", historyHandler.ListCommands)
		}
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
