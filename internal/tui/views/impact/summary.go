// Package impact renders the disaster-level resource demand summary.
package impact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/services/demand"
	"github.com/idro/idro/internal/tui/components"
)

// Styles used by the summary view.
type Styles struct {
	Title    lipgloss.Style
	Section  lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Low      lipgloss.Style
	Medium   lipgloss.Style
	High     lipgloss.Style
	Critical lipgloss.Style

	// BarColor fills the saturation bar. Empty keeps the default gradient.
	BarColor string
}

// PlainStyles returns unstyled text for every role.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Section: plain, Label: plain, Value: plain, Muted: plain,
		Error: plain, Low: plain, Medium: plain, High: plain, Critical: plain,
	}
}

// SummaryView shows one ImpactSummary.
type SummaryView struct {
	location string
	summary  *models.ImpactSummary
	loading  bool
	err      error
	table    *components.Table
	styles   Styles
}

// NewSummaryView creates an empty summary view.
func NewSummaryView(styles Styles) *SummaryView {
	columns := []components.Column{
		{Title: "Camp", Width: 12, Weight: 2, Priority: 10},
		{Title: "Pop", Width: 6, Align: lipgloss.Right, Priority: 8},
		{Title: "Risk", Width: 8, Priority: 9},
		{Title: "Urgency", Width: 9, Priority: 7},
		{Title: "Food", Width: 6, Align: lipgloss.Right, Priority: 6},
		{Title: "Water L", Width: 7, Align: lipgloss.Right, Priority: 5},
		{Title: "Beds", Width: 5, Align: lipgloss.Right, Priority: 4},
		{Title: "Kits", Width: 5, Align: lipgloss.Right, Priority: 3},
		{Title: "Source", Width: 8, Priority: 1},
	}
	table := components.NewTable(columns)
	table.SetVisibleRows(10)
	table.Focus(false)

	v := &SummaryView{table: table, styles: styles}
	table.SetCellStyler(v.styleCell)
	return v
}

// SetLoading shows the loading state for a mission location.
func (v *SummaryView) SetLoading(location string) {
	v.location = location
	v.loading = true
	v.err = nil
	v.summary = nil
	v.table.SetRows(nil)
}

// SetError shows a failed build.
func (v *SummaryView) SetError(err error) {
	v.loading = false
	v.err = err
}

// SetSummary shows a finished summary. Camps are listed by risk, highest
// first.
func (v *SummaryView) SetSummary(s models.ImpactSummary) {
	v.loading = false
	v.err = nil
	v.summary = &s

	camps := append([]models.CampAnalysis(nil), s.Camps...)
	sort.SliceStable(camps, func(i, j int) bool {
		return camps[i].RiskScore > camps[j].RiskScore
	})

	rows := make([][]string, len(camps))
	for i, c := range camps {
		rows[i] = []string{
			c.CampName,
			fmt.Sprintf("%d", c.Population),
			string(c.RiskLevel),
			string(c.Urgency),
			fmt.Sprintf("%d", c.FoodPackets),
			fmt.Sprintf("%d", c.WaterLiters),
			fmt.Sprintf("%d", c.Beds),
			fmt.Sprintf("%d", c.MedicalKits),
			string(c.Source),
		}
	}
	v.table.SetRows(rows)
	v.table.GoToTop()
}

// Summary returns the summary on display, if any.
func (v *SummaryView) Summary() (models.ImpactSummary, bool) {
	if v.summary == nil {
		return models.ImpactSummary{}, false
	}
	return *v.summary, true
}

// MoveUp scrolls the camp list up.
func (v *SummaryView) MoveUp() { v.table.MoveUp() }

// MoveDown scrolls the camp list down.
func (v *SummaryView) MoveDown() { v.table.MoveDown() }

func (v *SummaryView) riskStyle(level models.RiskLevel) lipgloss.Style {
	switch level {
	case models.RiskCritical:
		return v.styles.Critical
	case models.RiskHigh:
		return v.styles.High
	case models.RiskMedium:
		return v.styles.Medium
	default:
		return v.styles.Low
	}
}

func (v *SummaryView) styleCell(row, col int, value string) (lipgloss.Style, bool) {
	if col == 2 {
		return v.riskStyle(models.RiskLevel(value)), true
	}
	return lipgloss.NewStyle(), false
}

// Render renders the summary, responsive to the given terminal dimensions.
func (v *SummaryView) Render(width, height int) string {
	var b strings.Builder

	title := "═══ IMPACT ANALYSIS ═══"
	if v.location != "" {
		title = "═══ IMPACT: " + strings.ToUpper(v.location) + " ═══"
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Label.Render("Running demand estimation..."))
		b.WriteString("\n")
		return b.String()
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Impact analysis failed: " + v.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(v.styles.Muted.Render("Esc:Back"))
		return b.String()
	case v.summary == nil:
		b.WriteString(v.styles.Muted.Render("No mission selected."))
		return b.String()
	}

	s := v.summary
	level := demand.RiskLevelFor(s.OverallRiskScore)
	b.WriteString(v.styles.Label.Render("Overall risk: "))
	b.WriteString(v.riskStyle(level).Render(fmt.Sprintf("%.2f %s", s.OverallRiskScore, level)))
	b.WriteString("   ")
	b.WriteString(v.styles.Label.Render("Type: "))
	b.WriteString(v.styles.Value.Render(string(s.DisasterType)))
	b.WriteString("\n\n")

	b.WriteString(v.renderTotals(s.Totals, width))
	b.WriteString("\n")

	if s.FallbackCamps > 0 {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf(
			"%d of %d camps estimated locally (model unavailable)", s.FallbackCamps, s.Totals.Camps)))
		b.WriteString("\n\n")
	}

	b.WriteString(v.styles.Section.Render("RECOMMENDATIONS"))
	b.WriteString("\n")
	for i, r := range s.Recommendations {
		b.WriteString(v.styles.Value.Render(fmt.Sprintf("%d. %s", i+1, r)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(v.styles.Section.Render("CAMPS"))
	b.WriteString("\n")
	if v.table.Empty() {
		b.WriteString(v.styles.Muted.Render("No camps reported for this mission."))
		b.WriteString("\n")
	} else {
		used := strings.Count(b.String(), "\n") + 4
		v.table.SetVisibleRows(max(height-used, 3))
		b.WriteString(v.table.RenderWidth(width))
		b.WriteString("\n")
		b.WriteString(v.renderSaturation(s.Camps, width))
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Esc:Back  Up/Down:Scroll camps"))
	return b.String()
}

func (v *SummaryView) renderTotals(t models.ResourceTotals, width int) string {
	items := []struct {
		label string
		value int
	}{
		{"Camps", t.Camps},
		{"Population", t.Population},
		{"Injured", t.Injured},
		{"Food packets", t.FoodPackets},
		{"Water (L)", t.WaterLiters},
		{"Beds", t.Beds},
		{"Medical kits", t.MedicalKits},
		{"Volunteers", t.Volunteers},
		{"Ambulances", t.Ambulances},
	}

	perLine := 3
	if width < 70 {
		perLine = 1
	}
	label := v.styles.Label.Width(14)

	var b strings.Builder
	for i, it := range items {
		b.WriteString(label.Render(it.label+":"))
		b.WriteString(v.styles.Value.Render(fmt.Sprintf("%-10d", it.value)))
		if (i+1)%perLine == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString("  ")
		}
	}
	if len(items)%perLine != 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// renderSaturation shows the most saturated camp as a bar.
func (v *SummaryView) renderSaturation(camps []models.CampAnalysis, width int) string {
	var top *models.CampAnalysis
	for i := range camps {
		if top == nil || camps[i].SaturationPercentage > top.SaturationPercentage {
			top = &camps[i]
		}
	}
	if top == nil {
		return ""
	}
	barWidth := min(max(width-40, 10), 40)
	return v.styles.Label.Render("Peak saturation: ") +
		saturationBar(top.SaturationPercentage, barWidth, v.styles.BarColor) +
		v.styles.Value.Render(fmt.Sprintf(" %d%% %s", top.SaturationPercentage, top.CampName)) + "\n"
}

func saturationBar(percent, width int, color string) string {
	percent = min(max(percent, 0), 100)
	opts := []progress.Option{progress.WithWidth(width), progress.WithoutPercentage()}
	if color != "" {
		opts = append(opts, progress.WithSolidFill(color))
	}
	bar := progress.New(opts...)
	return "[" + bar.ViewAs(float64(percent)/100) + "]"
}
