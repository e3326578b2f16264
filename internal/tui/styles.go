// Package tui provides the responder console.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	impactview "github.com/idro/idro/internal/tui/views/impact"
	missionview "github.com/idro/idro/internal/tui/views/missions"
)

// Theme contains all style definitions for the console.
type Theme struct {
	PrimaryColor   lipgloss.Color
	SecondaryColor lipgloss.Color
	AccentColor    lipgloss.Color
	ErrorColor     lipgloss.Color
	WarningColor   lipgloss.Color
	SuccessColor   lipgloss.Color
	MutedColor     lipgloss.Color

	Base    lipgloss.Style
	Primary lipgloss.Style
	Accent  lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style

	Header   lipgloss.Style
	Footer   lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Box      lipgloss.Style
	Warn     lipgloss.Style
	Selected lipgloss.Style

	NoticeInfo lipgloss.Style
	NoticeWarn lipgloss.Style
	NoticeCrit lipgloss.Style

	TableHeader lipgloss.Style
	TableRow    lipgloss.Style
	TableRowAlt lipgloss.Style

	StatusDivider lipgloss.Style
}

// NewTheme builds the console palette: amber on black with red for danger.
func NewTheme() *Theme {
	primary := lipgloss.Color("#FFB000")
	secondary := lipgloss.Color("#B37B00")
	accent := lipgloss.Color("#FFD866")
	muted := lipgloss.Color("#6B5500")
	errorColor := lipgloss.Color("#FF4444")
	warningColor := lipgloss.Color("#FF8C00")
	successColor := lipgloss.Color("#44DD66")

	return &Theme{
		PrimaryColor:   primary,
		SecondaryColor: secondary,
		AccentColor:    accent,
		ErrorColor:     errorColor,
		WarningColor:   warningColor,
		SuccessColor:   successColor,
		MutedColor:     muted,

		Base:    lipgloss.NewStyle().Foreground(primary),
		Primary: lipgloss.NewStyle().Foreground(primary),
		Accent:  lipgloss.NewStyle().Foreground(accent),
		Error:   lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(warningColor),
		Success: lipgloss.NewStyle().Foreground(successColor),
		Muted:   lipgloss.NewStyle().Foreground(muted),

		Header:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		Footer:   lipgloss.NewStyle().Foreground(secondary),
		Title:    lipgloss.NewStyle().Foreground(accent).Bold(true),
		Subtitle: lipgloss.NewStyle().Foreground(secondary).Bold(true),
		Label:    lipgloss.NewStyle().Foreground(secondary),
		Value:    lipgloss.NewStyle().Foreground(primary),
		Box: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(secondary).
			Padding(1, 3),
		Warn: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(errorColor).
			Padding(1, 3),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(primary).Bold(true),

		NoticeInfo: lipgloss.NewStyle().Foreground(accent),
		NoticeWarn: lipgloss.NewStyle().Foreground(warningColor).Bold(true),
		NoticeCrit: lipgloss.NewStyle().Foreground(errorColor).Bold(true).Blink(true),

		TableHeader: lipgloss.NewStyle().Foreground(accent).Bold(true),
		TableRow:    lipgloss.NewStyle().Foreground(primary),
		TableRowAlt: lipgloss.NewStyle().Foreground(secondary),

		StatusDivider: lipgloss.NewStyle().Foreground(muted).SetString(" │ "),
	}
}

// BoardStyles maps the theme onto the mission board.
func (t *Theme) BoardStyles() missionview.Styles {
	return missionview.Styles{
		Title:    t.Title,
		Label:    t.Label,
		Value:    t.Value,
		Muted:    t.Muted,
		TabOn:    t.Selected,
		TabOff:   t.Label,
		Error:    t.Error,
		Warning:  t.Warning,
		Success:  t.Success,
		Critical: t.Error,
	}
}

// SummaryStyles maps the theme onto the impact summary.
func (t *Theme) SummaryStyles() impactview.Styles {
	return impactview.Styles{
		Title:    t.Title,
		Section:  t.Subtitle,
		Label:    t.Label,
		Value:    t.Value,
		Muted:    t.Muted,
		Error:    t.Error,
		Low:      t.Success,
		Medium:   t.Accent,
		High:     t.Warning,
		Critical: t.Error,
		BarColor: string(t.PrimaryColor),
	}
}

// DrawHorizontalLine draws a single rule across width.
func (t *Theme) DrawHorizontalLine(width int) string {
	if width <= 0 {
		return ""
	}
	return t.Muted.Render(strings.Repeat("─", width))
}

// DrawDoubleLine draws a double rule across width.
func (t *Theme) DrawDoubleLine(width int) string {
	if width <= 0 {
		return ""
	}
	return t.Label.Render(strings.Repeat("═", width))
}
