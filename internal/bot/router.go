package bot

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds dependencies for the bot router
type RouterConfig struct {
	Bot           *Bot
	WebhookSecret string
	Logger        *slog.Logger
}

// NewRouter creates the Gin router for the bot webhook
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(BotLoggingMiddleware(config.Logger))

	webhookHandler := NewWebhookHandler(
		config.Bot,
		config.WebhookSecret,
		config.Logger,
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"service": "ohmebridge-bot",
		})
	})

	router.POST("/telegram/webhook", webhookHandler.HandleWebhook)

	return router
}
