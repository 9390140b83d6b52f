package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ohmebridge/config"
	"ohmebridge/internal/drivers/ohme"
)

// Sender is the subset of the Telegram API the bot calls
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api    Sender
	client *BridgeAPI
	config *config.BotConfig
	logger *slog.Logger
	tiers  []int
}

// NewBot creates a new Telegram bot instance
func NewBot(cfg *config.BotConfig, logger *slog.Logger) (*Bot, error) {
	// Create Telegram bot API client
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bridgeClient := NewBridgeAPI(
		cfg.Bridge.BaseURL,
		cfg.Bridge.APIKey,
		cfg.Bridge.HTTPTimeout(),
		logger,
	)

	return newBot(api, bridgeClient, cfg, logger), nil
}

func newBot(api Sender, client *BridgeAPI, cfg *config.BotConfig, logger *slog.Logger) *Bot {
	return &Bot{
		api:    api,
		client: client,
		config: cfg,
		logger: logger,
		tiers:  ohme.DefaultProfiles().Ratings(),
	}
}

// SetWebhook configures the webhook for the bot
func (b *Bot) SetWebhook() error {
	webhookConfig, err := tgbotapi.NewWebhook(b.config.Telegram.WebhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}

	if _, err := b.api.Request(webhookConfig); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("failed to get webhook info: %w", err)
	}

	b.logger.Info("Webhook configured",
		"url", info.URL,
		"pending_updates", info.PendingUpdateCount,
	)

	return nil
}

// HandleUpdate processes a Telegram update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var userID int64
	switch {
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		userID = update.CallbackQuery.From.ID
	default:
		// Ignore updates without user info
		return nil
	}

	if !b.config.IsUserAllowed(userID) {
		b.logger.Warn("Unauthorized access attempt",
			"user_id", userID,
		)
		return b.sendUnauthorizedMessage(update)
	}

	if update.Message != nil {
		return b.handleMessage(ctx, update.Message)
	}
	return b.handleCallback(ctx, update.CallbackQuery)
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	b.logger.Info("Received message",
		"user_id", message.From.ID,
		"username", message.From.UserName,
		"text", message.Text,
	)

	if !message.IsCommand() {
		return nil
	}

	switch message.Command() {
	case "start", "help":
		return b.handleStart(ctx, message)
	case "status":
		return b.handleStatus(ctx, message)
	case "schedule":
		return b.handleSchedule(ctx, message)
	case "charge":
		return b.handleCharge(ctx, message)
	case "stop":
		return b.handleStop(ctx, message)
	case "resume":
		return b.handleResume(ctx, message)
	case "amps":
		return b.handleAmps(ctx, message)
	case "refresh":
		return b.handleRefresh(ctx, message)
	default:
		return b.sendMessage(message.Chat.ID,
			"Unknown command. Use /start to see available commands.", nil)
	}
}

// handleCallback processes callback queries from inline buttons
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	b.logger.Info("Received callback",
		"user_id", callback.From.ID,
		"data", callback.Data,
	)

	// Answer callback to remove loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := b.api.Request(answer); err != nil {
		b.logger.Error("Failed to answer callback", "error", err)
	}

	if callback.Message == nil {
		return nil
	}

	// Menu buttons carry a plain command
	if len(callback.Data) > 0 && callback.Data[0] == '/' {
		msg := &tgbotapi.Message{
			Chat: callback.Message.Chat,
			From: callback.From,
			Text: callback.Data,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(callback.Data)},
			},
		}
		return b.handleMessage(ctx, msg)
	}

	data, err := UnmarshalCallback(callback.Data)
	if err != nil {
		b.logger.Error("Failed to unmarshal callback data",
			"raw_data", callback.Data,
			"error", err,
		)
		return b.sendMessage(callback.Message.Chat.ID, FormatError(err), nil)
	}

	switch data.Action {
	case ActionCancel:
		return b.handleCancel(ctx, callback.Message)
	case ActionStop:
		return b.handleStopFlow(ctx, callback.Message, data)
	case ActionAmps:
		return b.handleAmpsFlow(ctx, callback.Message, data)
	default:
		return b.sendMessage(callback.Message.Chat.ID,
			"Unknown action.", nil)
	}
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			"chat_id", chatID,
			"error", err,
		)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// editMessage edits an existing message
func (b *Bot) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to edit message",
			"chat_id", chatID,
			"message_id", messageID,
			"error", err,
		)
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// sendUnauthorizedMessage sends an unauthorized access message
func (b *Bot) sendUnauthorizedMessage(update tgbotapi.Update) error {
	var chatID int64
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return nil
	}

	return b.sendMessage(chatID,
		"⛔ You are not authorized to use this bot.", nil)
}

// handleCancel handles the cancel action
func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) error {
	quick := BuildQuickActionsButtons()
	return b.editMessage(message.Chat.ID, message.MessageID,
		"❌ Cancelled.", &quick)
}
