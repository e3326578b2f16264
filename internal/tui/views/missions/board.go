// Package missions provides the responder console mission board.
package missions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/poller"
	"github.com/idro/idro/internal/services/missions"
	"github.com/idro/idro/internal/services/triage"
	"github.com/idro/idro/internal/tui/components"
	"github.com/idro/idro/internal/util"
)

// Tab selects which missions the board lists.
type Tab int

const (
	// TabDisasters lists the canonical open disasters, one per location.
	TabDisasters Tab = iota
	// TabAvailable lists every OPEN mission.
	TabAvailable
	// TabMine lists missions held by this responder.
	TabMine
)

var tabNames = []string{"DISASTERS", "AVAILABLE", "MY MISSIONS"}

func (t Tab) String() string {
	if int(t) < len(tabNames) {
		return tabNames[t]
	}
	return "UNKNOWN"
}

// Styles used by the board.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	TabOn    lipgloss.Style
	TabOff   lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	Critical lipgloss.Style
}

// PlainStyles returns unstyled text for every role.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Label: plain, Value: plain, Muted: plain,
		TabOn: plain, TabOff: plain, Error: plain, Warning: plain,
		Success: plain, Critical: plain,
	}
}

// BoardView lists missions from the latest poller snapshot.
type BoardView struct {
	responder string
	tab       Tab
	snapshot  poller.Snapshot
	rows      []models.Disaster
	locations map[string]string
	table     *components.Table
	filter    *components.Filter
	styles    Styles
	now       func() time.Time
}

// NewBoardView creates a board for the given responder team.
func NewBoardView(responder string, styles Styles) *BoardView {
	columns := []components.Column{
		{Title: "Status", Width: 8, Priority: 9},
		{Title: "Type", Width: 10, Priority: 8},
		{Title: "Location", Width: 14, Weight: 3, Priority: 10},
		{Title: "Trust", Width: 5, Align: lipgloss.Right, Priority: 7},
		{Title: "Injured", Width: 7, Align: lipgloss.Right, Priority: 4},
		{Title: "Camps", Width: 5, Align: lipgloss.Right, Priority: 3},
		{Title: "Responder", Width: 10, Weight: 1, Priority: 2},
		{Title: "Reported", Width: 14, Priority: 1},
	}

	table := components.NewTable(columns)
	table.SetVisibleRows(20)
	table.Focus(true)

	v := &BoardView{
		responder: responder,
		locations: make(map[string]string),
		table:     table,
		filter:    components.NewFilter("/"),
		styles:    styles,
		now:       time.Now,
	}
	table.SetCellStyler(v.styleCell)
	return v
}

// SetClock overrides the clock used for relative report times.
func (v *BoardView) SetClock(now func() time.Time) {
	v.now = now
}

// Table exposes the underlying table for styling.
func (v *BoardView) Table() *components.Table {
	return v.table
}

// Filter exposes the search box.
func (v *BoardView) Filter() *components.Filter {
	return v.filter
}

// Tab returns the active tab.
func (v *BoardView) Tab() Tab {
	return v.tab
}

// NextTab cycles to the next tab.
func (v *BoardView) NextTab() {
	v.tab = (v.tab + 1) % Tab(len(tabNames))
	v.table.GoToTop()
	v.refresh()
}

// SetTab switches to a tab.
func (v *BoardView) SetTab(t Tab) {
	if t == v.tab {
		return
	}
	v.tab = t
	v.table.GoToTop()
	v.refresh()
}

// SetSnapshot replaces the data shown. The selected mission is kept by id
// when it is still listed.
func (v *BoardView) SetSnapshot(s poller.Snapshot) {
	v.snapshot = s
	v.refresh()
}

// SetLocation records the display name for a mission location.
func (v *BoardView) SetLocation(id, display string) {
	v.locations[id] = display
	v.refresh()
}

// ApplyFilter re-filters the rows after the search query changed.
func (v *BoardView) ApplyFilter() {
	v.table.GoToTop()
	v.refresh()
}

// Location returns the display location of a mission.
func (v *BoardView) Location(d models.Disaster) string {
	if loc, ok := v.locations[d.ID]; ok && loc != "" {
		return loc
	}
	return d.Location
}

// Rows returns the missions currently listed, in display order.
func (v *BoardView) Rows() []models.Disaster {
	return v.rows
}

// Selected returns the highlighted mission.
func (v *BoardView) Selected() (models.Disaster, bool) {
	idx := v.table.Selected()
	if idx >= 0 && idx < len(v.rows) {
		return v.rows[idx], true
	}
	return models.Disaster{}, false
}

// MoveUp moves the selection up.
func (v *BoardView) MoveUp() { v.table.MoveUp() }

// MoveDown moves the selection down.
func (v *BoardView) MoveDown() { v.table.MoveDown() }

// PageUp moves the selection up one page.
func (v *BoardView) PageUp() { v.table.PageUp() }

// PageDown moves the selection down one page.
func (v *BoardView) PageDown() { v.table.PageDown() }

func (v *BoardView) listed() []models.Disaster {
	switch v.tab {
	case TabAvailable:
		return missions.Available(v.snapshot.Alerts)
	case TabMine:
		return missions.Mine(v.snapshot.Alerts, v.responder)
	default:
		return triage.ActiveDisasters(v.snapshot.Alerts)
	}
}

func (v *BoardView) refresh() {
	var keepID string
	if d, ok := v.Selected(); ok {
		keepID = d.ID
	}

	v.rows = make([]models.Disaster, 0, len(v.snapshot.Alerts))
	for _, d := range v.listed() {
		if v.filter.Matches(v.Location(d), string(d.Type), d.ResponderName, d.Details) {
			v.rows = append(v.rows, d)
		}
	}

	campCounts := make(map[string]int)
	for _, c := range v.snapshot.Camps {
		campCounts[c.AlertID]++
	}

	rows := make([][]string, len(v.rows))
	for i, d := range v.rows {
		responder := d.ResponderName
		if responder == "" {
			responder = "-"
		}
		rows[i] = []string{
			string(d.MissionStatus),
			string(d.Type),
			v.Location(d),
			strconv.Itoa(d.EffectiveTrustScore()),
			strconv.Itoa(d.Injured()),
			strconv.Itoa(campCounts[d.ID]),
			responder,
			v.reported(d.CreatedAt),
		}
	}
	v.table.SetRows(rows)

	for i, d := range v.rows {
		if d.ID == keepID {
			v.table.Select(i)
			break
		}
	}
}

func (v *BoardView) reported(createdAt string) string {
	if createdAt == "" {
		return "-"
	}
	t, err := util.ParseISO8601(createdAt)
	if err != nil {
		return createdAt
	}
	return util.RelativeTimeString(t, v.now())
}

// styleCell colors the status and trust columns.
func (v *BoardView) styleCell(row, col int, value string) (lipgloss.Style, bool) {
	switch col {
	case 0:
		switch models.MissionStatus(value) {
		case models.MissionStatusOpen:
			return v.styles.Warning, true
		case models.MissionStatusAssigned:
			return v.styles.Success, true
		case models.MissionStatusResolved:
			return v.styles.Muted, true
		}
	case 3:
		if n, err := strconv.Atoi(value); err == nil && n < missions.ConfirmationThreshold {
			return v.styles.Critical, true
		}
	}
	return lipgloss.NewStyle(), false
}

func (v *BoardView) renderTabs() string {
	var parts []string
	for i, name := range tabNames {
		label := fmt.Sprintf(" %s ", name)
		if Tab(i) == v.tab {
			parts = append(parts, v.styles.TabOn.Render("["+label+"]"))
		} else {
			parts = append(parts, v.styles.TabOff.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

// Render renders the board, responsive to the given terminal dimensions.
func (v *BoardView) Render(width, height int) string {
	var b strings.Builder

	b.WriteString(v.renderTabs())
	b.WriteString("\n\n")

	if line := v.filter.Render(); line != "" {
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	if err := v.snapshot.Err(); err != nil {
		b.WriteString(v.styles.Error.Render("Sync error: " + err.Error()))
		b.WriteString("\n\n")
	}

	rowsAvail := height - 8
	if rowsAvail < 3 {
		rowsAvail = 3
	}
	v.table.SetVisibleRows(rowsAvail)

	switch {
	case v.snapshot.AlertsSyncedAt.IsZero() && len(v.snapshot.Alerts) == 0:
		b.WriteString(v.styles.Label.Render("Waiting for first sync..."))
		b.WriteString("\n")
	case v.table.Empty():
		b.WriteString(v.styles.Label.Render(v.emptyMessage()))
		b.WriteString("\n")
	default:
		b.WriteString(v.table.RenderWidth(width))
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(v.helpLine(width)))
	return b.String()
}

func (v *BoardView) emptyMessage() string {
	if v.filter.Query() != "" {
		return fmt.Sprintf("No missions match %q.", v.filter.Query())
	}
	switch v.tab {
	case TabMine:
		return "No missions assigned to " + v.responder + "."
	case TabAvailable:
		return "No open missions."
	default:
		return "No active disasters."
	}
}

func (v *BoardView) helpLine(width int) string {
	if width < 70 {
		switch v.tab {
		case TabMine:
			return "↑↓:Nav  Tab:View  Enter:Impact  r:Resolve  /:Find"
		default:
			return "↑↓:Nav  Tab:View  Enter:Impact  a:Accept  /:Find"
		}
	}
	switch v.tab {
	case TabMine:
		return "Up/Down:Select  Tab:Switch view  Enter:Impact  d:Details  r:Resolve  /:Search  Ctrl+R:Sync"
	default:
		return "Up/Down:Select  Tab:Switch view  Enter:Impact  d:Details  a:Accept mission  /:Search  Ctrl+R:Sync"
	}
}

// RenderDetail renders one mission with its camps.
func (v *BoardView) RenderDetail(d models.Disaster, width int) string {
	labelWidth := 16
	if width < 60 {
		labelWidth = 12
	}
	label := v.styles.Label.Width(labelWidth)
	line := func(name, value string) string {
		return label.Render(name+":") + " " + v.styles.Value.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("═══ MISSION " + strings.ToUpper(string(d.Type)) + " ═══"))
	b.WriteString("\n\n")

	b.WriteString(line("Location", v.Location(d)))
	b.WriteString(line("Coordinates", fmt.Sprintf("%.4f, %.4f", d.Latitude, d.Longitude)))
	b.WriteString(line("Status", string(d.MissionStatus)))
	if d.ResponderName != "" {
		b.WriteString(line("Responder", d.ResponderName))
	}

	trust := fmt.Sprintf("%d%%", d.EffectiveTrustScore())
	if d.TrustScore == nil {
		trust += " (unscored)"
	}
	if missions.EvaluateTrust(d.TrustScore) == missions.RequireConfirmation {
		b.WriteString(label.Render("Trust:") + " " + v.styles.Critical.Render(trust+" LOW") + "\n")
	} else {
		b.WriteString(line("Trust", trust))
	}

	if d.Magnitude != "" {
		b.WriteString(line("Severity", d.Magnitude))
	}
	if d.AffectedCount != nil {
		b.WriteString(line("Affected", strconv.Itoa(*d.AffectedCount)))
	}
	b.WriteString(line("Injured", strconv.Itoa(d.Injured())))
	if d.SourceType != "" {
		b.WriteString(line("Source", string(d.SourceType)))
	}
	b.WriteString(line("Reported", v.reported(d.CreatedAt)))
	if d.Details != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(d.Details))
		b.WriteString("\n")
	}

	camps := v.snapshot.CampsFor(d.ID)
	b.WriteString("\n")
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("CAMPS (%d)", len(camps))))
	b.WriteString("\n")
	if len(camps) == 0 {
		b.WriteString(v.styles.Muted.Render("No relief camps reported."))
		b.WriteString("\n")
	}
	for _, c := range camps {
		b.WriteString(v.styles.Value.Render(fmt.Sprintf("%s  pop %d", c.Name, c.Population)))
		if critical := c.Stock.Count(models.StockCritical); critical > 0 {
			b.WriteString("  " + v.styles.Critical.Render(fmt.Sprintf("%d critical", critical)))
		}
		b.WriteString("\n")
		if levels := renderStock(c.Stock); levels != "" {
			b.WriteString("  " + v.styles.Muted.Render(levels) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Esc:Back  Enter:Impact"))
	return b.String()
}

func renderStock(s models.Stock) string {
	var parts []string
	for _, r := range s.Resources() {
		parts = append(parts, r+"="+s[r])
	}
	return strings.Join(parts, " ")
}
