package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleStart handles the /start command
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	text := `👋 *Ohme Charger Bot*

I control your Ohme charger through the bridge.

*Available Commands:*

🔌 /status - Current charger state
🗓 /schedule - Next charge window
⚡ /charge - Charge now at full rate
🛑 /stop - Stop charging
▶️ /resume - Resume a stopped charge
🎚 /amps - Change the current limit
🔄 /refresh - Pull fresh state from Ohme

*Quick Actions:*`

	keyboard := BuildMainMenuButtons()
	return b.sendMessage(message.Chat.ID, text, &keyboard)
}

// handleStatus handles the /status command
func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) error {
	quick := BuildQuickActionsButtons()

	state, err := b.client.GetCharger(ctx)
	if err != nil {
		return b.sendMessage(message.Chat.ID, FormatError(err), &quick)
	}

	return b.sendMessage(message.Chat.ID, FormatStatus(state), &quick)
}

// handleSchedule handles the /schedule command
func (b *Bot) handleSchedule(ctx context.Context, message *tgbotapi.Message) error {
	quick := BuildQuickActionsButtons()

	schedule, err := b.client.GetSchedule(ctx)
	if err != nil {
		return b.sendMessage(message.Chat.ID, FormatError(err), &quick)
	}

	return b.sendMessage(message.Chat.ID, FormatSchedule(schedule), &quick)
}

// handleRefresh handles the /refresh command
func (b *Bot) handleRefresh(ctx context.Context, message *tgbotapi.Message) error {
	quick := BuildQuickActionsButtons()

	state, err := b.client.Refresh(ctx)
	if err != nil {
		return b.sendMessage(message.Chat.ID, FormatError(err), &quick)
	}

	return b.sendMessage(message.Chat.ID, FormatStatus(state), &quick)
}

// handleCharge handles the /charge command
func (b *Bot) handleCharge(ctx context.Context, message *tgbotapi.Message) error {
	return b.sendCommandResult(message.Chat.ID, func() (*CommandResult, error) {
		return b.client.StartCharge(ctx)
	})
}

// handleResume handles the /resume command
func (b *Bot) handleResume(ctx context.Context, message *tgbotapi.Message) error {
	return b.sendCommandResult(message.Chat.ID, func() (*CommandResult, error) {
		return b.client.ResumeCharge(ctx)
	})
}

// handleStop handles the /stop command (step 0)
func (b *Bot) handleStop(ctx context.Context, message *tgbotapi.Message) error {
	keyboard := BuildStopConfirmButtons()
	return b.sendMessage(message.Chat.ID,
		"🛑 *Stop charging?*\n\nThe charger stays stopped until you resume it.", &keyboard)
}

// handleAmps handles the /amps command. With an argument it switches
// directly, otherwise it shows the tier picker.
func (b *Bot) handleAmps(ctx context.Context, message *tgbotapi.Message) error {
	arg := strings.TrimSpace(message.CommandArguments())
	if arg != "" {
		amps, err := strconv.Atoi(strings.TrimSuffix(strings.ToUpper(arg), "A"))
		if err != nil || amps <= 0 {
			return b.sendMessage(message.Chat.ID,
				fmt.Sprintf("❌ *Invalid current*\n\n%q is not a whole number of amps.", arg), nil)
		}
		return b.sendCommandResult(message.Chat.ID, func() (*CommandResult, error) {
			return b.client.SetAmps(ctx, amps)
		})
	}

	current := 0
	if state, err := b.client.GetCharger(ctx); err == nil {
		current = state.MaxAmps
	} else {
		b.logger.Warn("Failed to load current limit", "error", err)
	}

	keyboard := BuildAmpsButtons(b.tiers, current)
	return b.sendMessage(message.Chat.ID, "🎚 *Select current limit:*", &keyboard)
}

// sendCommandResult runs a charger command and reports its outcome
func (b *Bot) sendCommandResult(chatID int64, run func() (*CommandResult, error)) error {
	quick := BuildQuickActionsButtons()

	result, err := run()
	if err != nil {
		return b.sendMessage(chatID, FormatError(err), &quick)
	}

	return b.sendMessage(chatID, FormatCommandResult(result), &quick)
}
