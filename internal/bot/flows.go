package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleStopFlow handles the stop confirmation
func (b *Bot) handleStopFlow(ctx context.Context, message *tgbotapi.Message, data *CallbackData) error {
	b.logger.Info("Stop flow", "step", data.Step)

	switch data.Step {
	case 0:
		keyboard := BuildStopConfirmButtons()
		return b.editMessage(message.Chat.ID, message.MessageID,
			"🛑 *Stop charging?*\n\nThe charger stays stopped until you resume it.", &keyboard)
	case 1:
		return b.editCommandResult(message, func() (*CommandResult, error) {
			return b.client.StopCharge(ctx)
		})
	default:
		return b.editMessage(message.Chat.ID, message.MessageID,
			"❌ Invalid step in stop flow.", nil)
	}
}

// handleAmpsFlow handles the current limit picker
func (b *Bot) handleAmpsFlow(ctx context.Context, message *tgbotapi.Message, data *CallbackData) error {
	b.logger.Info("Amps flow",
		"step", data.Step,
		"amps", data.Amps,
	)

	switch data.Step {
	case 0:
		current := 0
		if state, err := b.client.GetCharger(ctx); err == nil {
			current = state.MaxAmps
		}
		keyboard := BuildAmpsButtons(b.tiers, current)
		return b.editMessage(message.Chat.ID, message.MessageID, "🎚 *Select current limit:*", &keyboard)
	case 1:
		if data.Amps <= 0 {
			return b.editMessage(message.Chat.ID, message.MessageID,
				"❌ No current selected.", nil)
		}
		return b.editCommandResult(message, func() (*CommandResult, error) {
			return b.client.SetAmps(ctx, data.Amps)
		})
	default:
		return b.editMessage(message.Chat.ID, message.MessageID,
			"❌ Invalid step in current limit flow.", nil)
	}
}

// editCommandResult runs a charger command and replaces the prompt with its outcome
func (b *Bot) editCommandResult(message *tgbotapi.Message, run func() (*CommandResult, error)) error {
	quick := BuildQuickActionsButtons()

	result, err := run()
	if err != nil {
		return b.editMessage(message.Chat.ID, message.MessageID, FormatError(err), &quick)
	}

	return b.editMessage(message.Chat.ID, message.MessageID, FormatCommandResult(result), &quick)
}
