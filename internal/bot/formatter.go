package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ohmebridge/internal/drivers/ohme"
)

// timezone is the IANA timezone for formatting times (set during bot initialization)
var timezone *time.Location

// SetTimezone sets the timezone for time formatting
func SetTimezone(tz string) error {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %s: %w", tz, err)
	}
	timezone = loc
	return nil
}

// formatTime formats a time in the configured timezone
func formatTime(t time.Time, layout string) string {
	if timezone != nil {
		t = t.In(timezone)
	}
	return t.Format(layout)
}

// modeLabel returns a human readable charger mode
func modeLabel(state *ChargerState) string {
	if state.Disconnected {
		return "🔌 Unplugged"
	}
	switch ohme.Mode(state.Mode) {
	case ohme.ModeMaxCharge:
		return "⚡ Max charge"
	case ohme.ModeSmartCharge:
		return "🧠 Smart charge"
	case ohme.ModeStopped:
		return "⏸ Stopped"
	case ohme.ModeDisconnected:
		return "🔌 Unplugged"
	default:
		return strings.ToLower(state.Mode)
	}
}

// FormatStatus formats the charger state into a Telegram message
func FormatStatus(state *ChargerState) string {
	var sb strings.Builder

	name := state.DisplayName
	if name == "" {
		name = "Charger"
	}
	sb.WriteString(fmt.Sprintf("🔋 *%s*\n\n", name))
	sb.WriteString(fmt.Sprintf("Mode: %s\n", modeLabel(state)))

	if !state.Disconnected {
		sb.WriteString(fmt.Sprintf("Power: %.1f A · %.0f W · %.0f V\n",
			state.CurrentAmps, state.CurrentWatts, state.CurrentVolts))
	}
	if state.MaxAmps > 0 {
		sb.WriteString(fmt.Sprintf("Limit: %d A\n", state.MaxAmps))
	}

	sb.WriteString("\n")
	sb.WriteString(formatWindow(state.Scheduled, state.NextChargeStart, state.NextChargeEnd))

	if state.UpdatedAt != nil {
		sb.WriteString(fmt.Sprintf("\n_Updated %s_", formatTime(*state.UpdatedAt, "Jan 2 15:04")))
	}

	return sb.String()
}

// FormatSchedule formats the inferred charge window into a Telegram message
func FormatSchedule(schedule *Schedule) string {
	var sb strings.Builder

	sb.WriteString("🗓 *Charge Schedule*\n\n")
	sb.WriteString(formatWindow(schedule.Scheduled, schedule.NextChargeStart, schedule.NextChargeEnd))

	if schedule.FinalChargeEnd != nil {
		sb.WriteString(fmt.Sprintf("Finishes by: %s\n", formatTime(*schedule.FinalChargeEnd, "Jan 2 15:04")))
	}

	return sb.String()
}

func formatWindow(scheduled bool, start, end *time.Time) string {
	if !scheduled || start == nil {
		return "No charge scheduled\n"
	}
	if end == nil {
		return fmt.Sprintf("Next charge: %s → open\n", formatTime(*start, "Jan 2 15:04"))
	}
	return fmt.Sprintf("Next charge: %s → %s\n",
		formatTime(*start, "Jan 2 15:04"), formatTime(*end, "15:04"))
}

// FormatCommandResult formats the outcome of a charger command
func FormatCommandResult(result *CommandResult) string {
	label := commandLabel(result.Command)

	if !result.Accepted {
		return fmt.Sprintf("⚠️ *%s rejected*\n\nThe charger declined the request. Check it is plugged in.", label)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ *%s accepted*\n\n", label))
	sb.WriteString(fmt.Sprintf("Mode: %s\n", modeLabel(&result.State)))
	if result.Command == "switch_amperage" && result.State.MaxAmps > 0 {
		sb.WriteString(fmt.Sprintf("Limit: %d A\n", result.State.MaxAmps))
	}
	if result.Warning != "" {
		sb.WriteString(fmt.Sprintf("\n_State may be stale: %s_\n", result.Warning))
	}

	return sb.String()
}

func commandLabel(command string) string {
	switch command {
	case "start":
		return "Charge now"
	case "stop":
		return "Stop"
	case "resume":
		return "Resume"
	case "switch_amperage":
		return "Current limit"
	default:
		return command
	}
}

// FormatError formats an error message
func FormatError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "AUTH_REQUIRED":
			return "❌ *Error*\n\nThe bridge is signed out of the Ohme account. Check its credentials."
		case "NO_CHARGER":
			return "❌ *Error*\n\nNo charger or charge session found on the account."
		case "UNAUTHORIZED":
			return "❌ *Error*\n\nThe bridge rejected the bot's API key."
		}
	}
	return fmt.Sprintf("❌ *Error*\n\n%s", err.Error())
}
