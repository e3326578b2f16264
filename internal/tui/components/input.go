package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FilterResult reports what a key press did to a Filter.
type FilterResult int

const (
	// FilterEditing means the query may have changed and editing continues.
	FilterEditing FilterResult = iota
	// FilterApplied means the user confirmed the query with enter.
	FilterApplied
	// FilterCleared means the user cancelled with esc; the query is empty.
	FilterCleared
)

// Filter is a one-line search box that matches rows case-insensitively.
type Filter struct {
	prompt    string
	query     []rune
	cursor    int
	active    bool
	maxLength int

	promptStyle lipgloss.Style
	textStyle   lipgloss.Style
	hintStyle   lipgloss.Style
}

// NewFilter creates a filter box with the given prompt, e.g. "/".
func NewFilter(prompt string) *Filter {
	return &Filter{
		prompt:      prompt,
		maxLength:   64,
		promptStyle: lipgloss.NewStyle().Bold(true),
		textStyle:   lipgloss.NewStyle(),
		hintStyle:   lipgloss.NewStyle().Faint(true),
	}
}

// SetStyles sets the prompt, text and hint styles.
func (f *Filter) SetStyles(prompt, text, hint lipgloss.Style) {
	f.promptStyle = prompt
	f.textStyle = text
	f.hintStyle = hint
}

// Open starts editing, keeping any existing query.
func (f *Filter) Open() {
	f.active = true
	f.cursor = len(f.query)
}

// Active reports whether the filter is capturing keys.
func (f *Filter) Active() bool {
	return f.active
}

// Query returns the current query text.
func (f *Filter) Query() string {
	return string(f.query)
}

// Clear empties the query and stops editing.
func (f *Filter) Clear() {
	f.query = nil
	f.cursor = 0
	f.active = false
}

// HandleKey applies a key press while the filter is active.
func (f *Filter) HandleKey(key string) FilterResult {
	if !f.active {
		return FilterEditing
	}

	switch key {
	case "enter":
		f.active = false
		return FilterApplied
	case "esc":
		f.Clear()
		return FilterCleared
	case "backspace":
		if f.cursor > 0 {
			f.query = append(f.query[:f.cursor-1], f.query[f.cursor:]...)
			f.cursor--
		}
	case "left":
		if f.cursor > 0 {
			f.cursor--
		}
	case "right":
		if f.cursor < len(f.query) {
			f.cursor++
		}
	case "home", "ctrl+a":
		f.cursor = 0
	case "end", "ctrl+e":
		f.cursor = len(f.query)
	case "space":
		f.insert(' ')
	default:
		r := []rune(key)
		if len(r) == 1 {
			f.insert(r[0])
		}
	}
	return FilterEditing
}

func (f *Filter) insert(r rune) {
	if len(f.query) >= f.maxLength {
		return
	}
	f.query = append(f.query[:f.cursor], append([]rune{r}, f.query[f.cursor:]...)...)
	f.cursor++
}

// Matches reports whether any of the fields contains the query.
// An empty query matches everything.
func (f *Filter) Matches(fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(string(f.query)))
	if q == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Render renders the filter line. An inactive empty filter renders nothing.
func (f *Filter) Render() string {
	if !f.active && len(f.query) == 0 {
		return ""
	}

	text := string(f.query)
	if f.active {
		before := string(f.query[:f.cursor])
		after := string(f.query[f.cursor:])
		text = before + "█" + after
	}

	line := f.promptStyle.Render(f.prompt) + " " + f.textStyle.Render(text)
	if f.active {
		line += "  " + f.hintStyle.Render("enter apply · esc clear")
	}
	return line
}
