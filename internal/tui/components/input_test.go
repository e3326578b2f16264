package components

import (
	"strings"
	"testing"
)

func typeInto(f *Filter, s string) {
	for _, r := range s {
		key := string(r)
		if r == ' ' {
			key = "space"
		}
		f.HandleKey(key)
	}
}

func TestFilter_Typing(t *testing.T) {
	f := NewFilter("/")
	typeInto(f, "kochi")
	if f.Query() != "" {
		t.Errorf("inactive filter took input: %q", f.Query())
	}

	f.Open()
	typeInto(f, "west bengal")
	if f.Query() != "west bengal" {
		t.Errorf("Query() = %q", f.Query())
	}

	f.HandleKey("backspace")
	if f.Query() != "west benga" {
		t.Errorf("after backspace Query() = %q", f.Query())
	}
}

func TestFilter_CursorEditing(t *testing.T) {
	f := NewFilter("/")
	f.Open()
	typeInto(f, "flod")
	f.HandleKey("left")
	f.HandleKey("o")
	if f.Query() != "flood" {
		t.Errorf("Query() = %q, want flood", f.Query())
	}

	f.HandleKey("home")
	f.HandleKey("backspace")
	if f.Query() != "flood" {
		t.Errorf("backspace at start changed query to %q", f.Query())
	}
	f.HandleKey("end")
	f.HandleKey("s")
	if f.Query() != "floods" {
		t.Errorf("Query() = %q, want floods", f.Query())
	}
}

func TestFilter_ApplyAndClear(t *testing.T) {
	f := NewFilter("/")
	f.Open()
	typeInto(f, "odisha")

	if got := f.HandleKey("enter"); got != FilterApplied {
		t.Errorf("enter = %v, want FilterApplied", got)
	}
	if f.Active() {
		t.Error("filter still active after enter")
	}
	if f.Query() != "odisha" {
		t.Errorf("applied query lost: %q", f.Query())
	}

	f.Open()
	if got := f.HandleKey("esc"); got != FilterCleared {
		t.Errorf("esc = %v, want FilterCleared", got)
	}
	if f.Active() || f.Query() != "" {
		t.Errorf("esc left active=%v query=%q", f.Active(), f.Query())
	}
}

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		fields []string
		want   bool
	}{
		{"empty query", "", []string{"anything"}, true},
		{"case insensitive", "KOCHI", []string{"Flood", "Kochi, Kerala"}, true},
		{"second field", "cyclone", []string{"Puri", "Cyclone"}, true},
		{"no match", "quake", []string{"Flood", "Kochi"}, false},
		{"whitespace trimmed", "  flood ", []string{"Flood"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter("/")
			f.Open()
			typeInto(f, tt.query)
			if got := f.Matches(tt.fields...); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.fields, got, tt.want)
			}
		})
	}
}

func TestFilter_MaxLength(t *testing.T) {
	f := NewFilter("/")
	f.Open()
	typeInto(f, strings.Repeat("x", 100))
	if n := len(f.Query()); n != 64 {
		t.Errorf("len(Query()) = %d, want 64", n)
	}
}

func TestFilter_Render(t *testing.T) {
	f := NewFilter("/")
	if f.Render() != "" {
		t.Errorf("idle filter rendered %q", f.Render())
	}

	f.Open()
	typeInto(f, "puri")
	out := f.Render()
	if !strings.Contains(out, "puri█") {
		t.Errorf("active render missing cursor: %q", out)
	}
	if !strings.Contains(out, "esc clear") {
		t.Errorf("active render missing hint: %q", out)
	}

	f.HandleKey("enter")
	out = f.Render()
	if !strings.Contains(out, "puri") || strings.Contains(out, "█") {
		t.Errorf("applied render = %q", out)
	}
}
