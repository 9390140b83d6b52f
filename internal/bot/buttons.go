package bot

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback actions
const (
	ActionCancel = "cancel"
	ActionStop   = "stop"
	ActionAmps   = "amps"
)

// CallbackData represents the data embedded in callback buttons
type CallbackData struct {
	Action string `json:"a"`           // Action type (stop, amps, cancel)
	Step   int    `json:"s,omitempty"` // Current step in flow
	Amps   int    `json:"m,omitempty"` // Selected current tier
}

// MarshalCallback converts CallbackData to JSON string
func MarshalCallback(data CallbackData) string {
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

// UnmarshalCallback parses callback data from JSON string
func UnmarshalCallback(data string) (*CallbackData, error) {
	var cb CallbackData
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal callback: %w", err)
	}
	return &cb, nil
}

// BuildMainMenuButtons creates the main menu shown by /start
func BuildMainMenuButtons() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔌 Status", "/status"),
			tgbotapi.NewInlineKeyboardButtonData("🗓 Schedule", "/schedule"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚡ Charge now", "/charge"),
			tgbotapi.NewInlineKeyboardButtonData("🛑 Stop", "/stop"),
			tgbotapi.NewInlineKeyboardButtonData("▶️ Resume", "/resume"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎚 Current limit", "/amps"),
		),
	)
}

// BuildQuickActionsButtons creates compact action buttons for attaching to responses
func BuildQuickActionsButtons() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔌 Status", "/status"),
			tgbotapi.NewInlineKeyboardButtonData("🗓 Schedule", "/schedule"),
			tgbotapi.NewInlineKeyboardButtonData("🎚 Amps", "/amps"),
		),
	)
}

// BuildStopConfirmButtons asks for confirmation before stopping a charge
func BuildStopConfirmButtons() tgbotapi.InlineKeyboardMarkup {
	confirmBtn := tgbotapi.NewInlineKeyboardButtonData(
		"🛑 Yes, stop",
		MarshalCallback(CallbackData{Action: ActionStop, Step: 1}),
	)
	cancelBtn := tgbotapi.NewInlineKeyboardButtonData(
		"❌ Cancel",
		MarshalCallback(CallbackData{Action: ActionCancel}),
	)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(confirmBtn, cancelBtn),
	)
}

// BuildAmpsButtons creates one button per supported current tier. The
// active limit is marked.
func BuildAmpsButtons(tiers []int, current int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	row := []tgbotapi.InlineKeyboardButton{}
	for _, amps := range tiers {
		label := fmt.Sprintf("%dA", amps)
		if amps == current {
			label = "✅ " + label
		}
		callback := MarshalCallback(CallbackData{
			Action: ActionAmps,
			Step:   1,
			Amps:   amps,
		})
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callback))

		if len(row) == 3 {
			rows = append(rows, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	cancelBtn := tgbotapi.NewInlineKeyboardButtonData(
		"❌ Cancel",
		MarshalCallback(CallbackData{Action: ActionCancel}),
	)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{cancelBtn})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
