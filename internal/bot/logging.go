package bot

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// updateSummary holds the parts of a Telegram update worth logging
type updateSummary struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			UserName string `json:"username"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		From *struct {
			UserName string `json:"username"`
		} `json:"from"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// BotLoggingMiddleware logs bot webhook requests
func BotLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var summary updateSummary
		if c.Request.Body != nil && c.Request.ContentLength > 0 {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err == nil {
				// Restore the body for handlers
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				_ = json.Unmarshal(bodyBytes, &summary)
			}
		}

		c.Next()

		logAttrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("duration", time.Since(start).String()),
			slog.String("client_ip", c.ClientIP()),
		}

		switch {
		case summary.Message != nil:
			logAttrs = append(logAttrs,
				slog.String("update_type", "message"),
				slog.Int64("chat_id", summary.Message.Chat.ID),
				slog.String("command_or_callback", summary.Message.Text),
			)
			if summary.Message.From != nil {
				logAttrs = append(logAttrs, slog.String("username", summary.Message.From.UserName))
			}
		case summary.CallbackQuery != nil:
			logAttrs = append(logAttrs,
				slog.String("update_type", "callback_query"),
				slog.String("command_or_callback", summary.CallbackQuery.Data),
			)
			if summary.CallbackQuery.Message != nil {
				logAttrs = append(logAttrs, slog.Int64("chat_id", summary.CallbackQuery.Message.Chat.ID))
			}
			if summary.CallbackQuery.From != nil {
				logAttrs = append(logAttrs, slog.String("username", summary.CallbackQuery.From.UserName))
			}
		}

		if len(c.Errors) > 0 {
			logAttrs = append(logAttrs, slog.String("errors", c.Errors.String()))
			logger.LogAttrs(c.Request.Context(), slog.LevelError, "Bot webhook request", logAttrs...)
			return
		}
		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "Bot webhook request", logAttrs...)
	}
}
