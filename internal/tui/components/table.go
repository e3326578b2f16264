// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column. Width is the minimum width; Weight shares
// out the remaining space. Columns with the lowest Priority are dropped
// first when the terminal is too narrow.
type Column struct {
	Title    string
	Width    int
	Weight   float64
	Priority int
	Align    lipgloss.Position
}

// CellStyler overrides the style of one cell, for example to color a
// status. Returning false keeps the row style.
type CellStyler func(row, col int, value string) (lipgloss.Style, bool)

// Table is a scrolling table with a single selected row.
type Table struct {
	columns     []Column
	rows        [][]string
	selected    int
	offset      int
	visibleRows int
	focused     bool
	styler      CellStyler

	headerStyle   lipgloss.Style
	rowStyle      lipgloss.Style
	rowAltStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	borderStyle   lipgloss.Style
}

const columnGap = 3 // " | "

// NewTable creates a new table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{
		columns:       columns,
		rows:          [][]string{},
		visibleRows:   10,
		headerStyle:   lipgloss.NewStyle().Bold(true),
		rowStyle:      lipgloss.NewStyle(),
		rowAltStyle:   lipgloss.NewStyle().Faint(true),
		selectedStyle: lipgloss.NewStyle().Reverse(true),
		borderStyle:   lipgloss.NewStyle().Faint(true),
	}
}

// SetRows replaces the table data, keeping the selection in range.
func (t *Table) SetRows(rows [][]string) {
	t.rows = rows
	t.clamp()
}

// SetVisibleRows sets the number of visible rows.
func (t *Table) SetVisibleRows(n int) {
	if n < 1 {
		n = 1
	}
	t.visibleRows = n
	t.clamp()
}

// SetStyles sets the table styles.
func (t *Table) SetStyles(header, row, rowAlt, selected, border lipgloss.Style) {
	t.headerStyle = header
	t.rowStyle = row
	t.rowAltStyle = rowAlt
	t.selectedStyle = selected
	t.borderStyle = border
}

// SetCellStyler installs a per-cell style override.
func (t *Table) SetCellStyler(s CellStyler) {
	t.styler = s
}

// Focus sets the table focus state.
func (t *Table) Focus(focused bool) {
	t.focused = focused
}

// Selected returns the currently selected row index.
func (t *Table) Selected() int {
	return t.selected
}

// Select moves the selection to row i when it exists.
func (t *Table) Select(i int) {
	if i < 0 || i >= len(t.rows) {
		return
	}
	t.selected = i
	t.clamp()
}

// SelectedRow returns the currently selected row data.
func (t *Table) SelectedRow() []string {
	if t.selected >= 0 && t.selected < len(t.rows) {
		return t.rows[t.selected]
	}
	return nil
}

// MoveUp moves the selection up.
func (t *Table) MoveUp() {
	if t.selected > 0 {
		t.selected--
		t.clamp()
	}
}

// MoveDown moves the selection down.
func (t *Table) MoveDown() {
	if t.selected < len(t.rows)-1 {
		t.selected++
		t.clamp()
	}
}

// PageUp moves up one page.
func (t *Table) PageUp() {
	t.selected = max(t.selected-t.visibleRows, 0)
	t.clamp()
}

// PageDown moves down one page.
func (t *Table) PageDown() {
	t.selected = max(min(t.selected+t.visibleRows, len(t.rows)-1), 0)
	t.clamp()
}

// GoToTop goes to the first row.
func (t *Table) GoToTop() {
	t.selected = 0
	t.offset = 0
}

// GoToBottom goes to the last row.
func (t *Table) GoToBottom() {
	t.selected = max(len(t.rows)-1, 0)
	t.clamp()
}

// clamp keeps selected within the rows and inside the visible window.
func (t *Table) clamp() {
	if t.selected >= len(t.rows) {
		t.selected = len(t.rows) - 1
	}
	if t.selected < 0 {
		t.selected = 0
	}
	if t.selected < t.offset {
		t.offset = t.selected
	}
	if t.selected >= t.offset+t.visibleRows {
		t.offset = t.selected - t.visibleRows + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// Empty returns true if the table has no rows.
func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// computeWidths fits the columns into width. Dropped columns get 0.
func (t *Table) computeWidths(width int) []int {
	widths := make([]int, len(t.columns))
	visible := make([]bool, len(t.columns))
	for i := range visible {
		visible[i] = true
	}

	need := func() int {
		n, count := 2, 0
		for i, c := range t.columns {
			if visible[i] {
				n += c.Width
				count++
			}
		}
		if count > 1 {
			n += (count - 1) * columnGap
		}
		return n
	}

	for need() > width {
		drop := -1
		count := 0
		for i, c := range t.columns {
			if !visible[i] {
				continue
			}
			count++
			if drop == -1 || c.Priority < t.columns[drop].Priority {
				drop = i
			}
		}
		if count <= 1 {
			break
		}
		visible[drop] = false
	}

	spare := max(width-need(), 0)
	totalWeight := 0.0
	for i, c := range t.columns {
		if visible[i] {
			totalWeight += c.Weight
		}
	}
	for i, c := range t.columns {
		if !visible[i] {
			continue
		}
		widths[i] = c.Width
		if totalWeight > 0 && c.Weight > 0 {
			widths[i] += int(float64(spare) * c.Weight / totalWeight)
		}
	}
	return widths
}

// Render renders the table at the column minimum widths.
func (t *Table) Render() string {
	width := 2
	for _, c := range t.columns {
		width += c.Width + columnGap
	}
	return t.RenderWidth(width)
}

// RenderWidth renders the table fitted to width.
func (t *Table) RenderWidth(width int) string {
	widths := t.computeWidths(width)
	total := 2
	for _, w := range widths {
		if w > 0 {
			total += w + columnGap
		}
	}
	total = max(total-columnGap, 0)

	var b strings.Builder
	b.WriteString(t.renderRow(-1, t.headers(), widths, t.headerStyle))
	b.WriteString("\n")
	b.WriteString(t.borderStyle.Render(strings.Repeat("─", total)))
	b.WriteString("\n")

	end := min(t.offset+t.visibleRows, len(t.rows))
	for i := t.offset; i < end; i++ {
		style := t.rowStyle
		switch {
		case i == t.selected && t.focused:
			style = t.selectedStyle
		case (i-t.offset)%2 == 1:
			style = t.rowAltStyle
		}
		b.WriteString(t.renderRow(i, t.rows[i], widths, style))
		b.WriteString("\n")
	}

	if len(t.rows) > t.visibleRows {
		b.WriteString(t.borderStyle.Render(fmt.Sprintf("%d-%d of %d", t.offset+1, end, len(t.rows))))
	}
	return b.String()
}

func (t *Table) headers() []string {
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = col.Title
	}
	return headers
}

func (t *Table) renderRow(row int, cells []string, widths []int, style lipgloss.Style) string {
	var parts []string
	for i, col := range t.columns {
		w := widths[i]
		if w == 0 {
			continue
		}
		value := ""
		if i < len(cells) {
			value = cells[i]
		}
		cell := fit(value, w, col.Align)

		cellStyle := style
		if t.styler != nil && row >= 0 && !(row == t.selected && t.focused) {
			if s, ok := t.styler(row, i, value); ok {
				cellStyle = s
			}
		}
		parts = append(parts, cellStyle.Render(cell))
	}
	return " " + strings.Join(parts, " | ") + " "
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int, align lipgloss.Position) string {
	runes := []rune(s)
	if len(runes) > w {
		if w <= 1 {
			return string(runes[:w])
		}
		return string(runes[:w-1]) + "…"
	}
	pad := w - len(runes)
	switch align {
	case lipgloss.Right:
		return strings.Repeat(" ", pad) + s
	case lipgloss.Center:
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}
