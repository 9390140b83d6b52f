package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ohmebridge/internal/core"
	"ohmebridge/internal/drivers/ohme"
)

const clockLayout = "Mon 15:04"

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	border lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")),
		label: r.NewStyle().
			Width(12).
			Foreground(lipgloss.Color("243")),
		value: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),
		good: r.NewStyle().Foreground(lipgloss.Color("42")),
		warn: r.NewStyle().Foreground(lipgloss.Color("214")),
		bad:  r.NewStyle().Foreground(lipgloss.Color("196")),
		border: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1),
	}
}

// printer writes command output as JSON, plain text or styled text
type printer struct {
	w        io.Writer
	jsonMode bool
	plain    bool
	styles   styles
}

func newPrinter(w io.Writer, jsonMode, plain bool) *printer {
	return &printer{
		w:        w,
		jsonMode: jsonMode,
		plain:    plain,
		styles:   newStyles(lipgloss.NewRenderer(w)),
	}
}

type stateJSON struct {
	DeviceID        string     `json:"device_id"`
	DisplayName     string     `json:"display_name,omitempty"`
	Firmware        string     `json:"firmware,omitempty"`
	Mode            string     `json:"mode"`
	Disconnected    bool       `json:"disconnected"`
	MaxCharging     bool       `json:"max_charging"`
	CurrentAmps     float64    `json:"current_amps"`
	CurrentWatts    float64    `json:"current_watts"`
	CurrentVolts    float64    `json:"current_volts"`
	MaxAmps         int        `json:"max_amps"`
	Scheduled       bool       `json:"scheduled"`
	NextChargeStart *time.Time `json:"next_charge_start"`
	NextChargeEnd   *time.Time `json:"next_charge_end"`
}

func toStateJSON(state core.ChargerState) stateJSON {
	return stateJSON{
		DeviceID:        state.DeviceID,
		DisplayName:     state.DisplayName,
		Firmware:        state.Firmware,
		Mode:            state.Mode,
		Disconnected:    state.Disconnected,
		MaxCharging:     state.MaxCharging,
		CurrentAmps:     state.CurrentAmps,
		CurrentWatts:    state.CurrentWatts,
		CurrentVolts:    state.CurrentVolts,
		MaxAmps:         state.MaxAmps,
		Scheduled:       state.Scheduled,
		NextChargeStart: state.NextChargeStart,
		NextChargeEnd:   state.NextChargeEnd,
	}
}

func (p *printer) printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(p.w, string(data))
}

func (p *printer) login(email string, expiresAt time.Time) {
	if p.jsonMode {
		p.printJSON(map[string]interface{}{"email": email, "signed_in": true, "expires_at": expiresAt.UTC()})
		return
	}
	line := fmt.Sprintf("Signed in as %s (token valid until %s)", email, expiresAt.Local().Format(clockLayout))
	if p.plain {
		fmt.Fprintln(p.w, line)
		return
	}
	fmt.Fprintln(p.w, p.styles.good.Render("✓ ")+p.styles.value.Render(line))
}

func (p *printer) state(state core.ChargerState, now time.Time) {
	if p.jsonMode {
		p.printJSON(toStateJSON(state))
		return
	}
	if p.plain {
		fmt.Fprint(p.w, plainState(state, now))
		return
	}

	s := p.styles
	title := "Ohme charger"
	if state.DisplayName != "" {
		title = state.DisplayName
	}

	rows := []string{s.title.Render(title)}
	row := func(label, value string) {
		rows = append(rows, s.label.Render(label)+value)
	}

	row("Mode", p.modeStyle(state).Render(modeLabel(state)))
	if !state.Disconnected {
		row("Power", s.value.Render(fmt.Sprintf("%.1f A  %.0f W  %.0f V", state.CurrentAmps, state.CurrentWatts, state.CurrentVolts)))
	}
	if state.MaxAmps > 0 {
		row("Limit", s.value.Render(fmt.Sprintf("%d A", state.MaxAmps)))
	}
	row("Next charge", s.value.Render(windowLabel(state.NextChargeStart, state.NextChargeEnd, now)))
	if state.Firmware != "" {
		row("Firmware", s.muted.Render(state.Firmware))
	}

	fmt.Fprintln(p.w, s.border.Render(strings.Join(rows, "\n")))
}

func (p *printer) modeStyle(state core.ChargerState) lipgloss.Style {
	switch {
	case state.Disconnected:
		return p.styles.muted
	case state.MaxCharging:
		return p.styles.good
	case state.Mode == string(ohme.ModeStopped):
		return p.styles.warn
	default:
		return p.styles.value
	}
}

func plainState(state core.ChargerState, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", modeLabel(state))
	if !state.Disconnected {
		fmt.Fprintf(&b, "power: %.1fA %.0fW %.0fV\n", state.CurrentAmps, state.CurrentWatts, state.CurrentVolts)
	}
	if state.MaxAmps > 0 {
		fmt.Fprintf(&b, "limit: %dA\n", state.MaxAmps)
	}
	fmt.Fprintf(&b, "next charge: %s\n", windowLabel(state.NextChargeStart, state.NextChargeEnd, now))
	return b.String()
}

func (p *printer) schedule(window ohme.ChargeWindow, now time.Time) {
	if p.jsonMode {
		windows := make([]map[string]interface{}, 0)
		for _, w := range pairs(window) {
			item := map[string]interface{}{"start": w[0]}
			if !w[1].IsZero() {
				item["end"] = w[1]
			}
			windows = append(windows, item)
		}
		p.printJSON(map[string]interface{}{"scheduled": window.Scheduled(), "windows": windows})
		return
	}

	text := plainSchedule(window, now)
	if p.plain {
		fmt.Fprint(p.w, text)
		return
	}
	if !window.Scheduled() {
		fmt.Fprintln(p.w, p.styles.muted.Render(strings.TrimSpace(text)))
		return
	}
	fmt.Fprintln(p.w, p.styles.border.Render(p.styles.title.Render("Charge windows")+"\n"+strings.TrimSpace(text)))
}

func plainSchedule(window ohme.ChargeWindow, now time.Time) string {
	if !window.Scheduled() {
		return "no charge scheduled\n"
	}

	var b strings.Builder
	for _, w := range pairs(window) {
		start := w[0].Local().Format(clockLayout)
		if w[1].IsZero() {
			fmt.Fprintf(&b, "%s → open (%s)\n", start, untilLabel(w[0], now))
			continue
		}
		fmt.Fprintf(&b, "%s → %s (%s)\n", start, w[1].Local().Format("15:04"), w[1].Sub(w[0]).Round(time.Minute))
	}
	return b.String()
}

// pairs groups boundaries into start/end windows; an open window has a zero end
func pairs(window ohme.ChargeWindow) [][2]time.Time {
	out := make([][2]time.Time, 0, (len(window.Boundaries)+1)/2)
	for i := 0; i < len(window.Boundaries); i += 2 {
		var w [2]time.Time
		w[0] = time.Unix(window.Boundaries[i], 0).UTC()
		if i+1 < len(window.Boundaries) {
			w[1] = time.Unix(window.Boundaries[i+1], 0).UTC()
		}
		out = append(out, w)
	}
	return out
}

func (p *printer) result(command string, accepted bool, state core.ChargerState) {
	if p.jsonMode {
		p.printJSON(map[string]interface{}{"command": command, "accepted": accepted, "state": toStateJSON(state)})
		return
	}

	line := fmt.Sprintf("%s accepted, mode %s", command, modeLabel(state))
	if command == "amps" && state.MaxAmps > 0 {
		line = fmt.Sprintf("%s accepted, limit now %dA", command, state.MaxAmps)
	}
	if !accepted {
		line = command + " rejected by charger"
	}

	switch {
	case p.plain:
		fmt.Fprintln(p.w, line)
	case accepted:
		fmt.Fprintln(p.w, p.styles.good.Render("✓ ")+p.styles.value.Render(line))
	default:
		fmt.Fprintln(p.w, p.styles.bad.Render("✗ ")+p.styles.value.Render(line))
	}
}

func modeLabel(state core.ChargerState) string {
	switch {
	case state.Disconnected:
		return "disconnected"
	case state.Mode == string(ohme.ModeMaxCharge):
		return "max charge"
	case state.Mode == string(ohme.ModeSmartCharge):
		return "smart charge"
	case state.Mode == string(ohme.ModeStopped):
		return "stopped"
	default:
		return strings.ToLower(state.Mode)
	}
}

func windowLabel(start, end *time.Time, now time.Time) string {
	if start == nil {
		return "none"
	}
	label := start.Local().Format(clockLayout)
	if end != nil {
		label += " → " + end.Local().Format("15:04")
	}
	return label + " (" + untilLabel(*start, now) + ")"
}

func untilLabel(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("in %dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("in %dh%02dm", hours, mins)
	default:
		return fmt.Sprintf("in %dm", mins)
	}
}
