package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/play-deck/internal/examples"
)

// ExamplePicker lets the user fuzzy-search the bundled example programs.
type ExamplePicker struct {
	visible bool
	width   int
	height  int

	filter  textinput.Model
	matches []examples.Example
	cursor  int
}

// NewExamplePicker creates a hidden picker.
func NewExamplePicker() *ExamplePicker {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search examples"
	return &ExamplePicker{filter: ti, matches: examples.All()}
}

// Show opens the picker with an empty filter.
func (d *ExamplePicker) Show() tea.Cmd {
	d.visible = true
	d.filter.Reset()
	d.matches = examples.All()
	d.cursor = 0
	return d.filter.Focus()
}

// Hide hides the picker
func (d *ExamplePicker) Hide() {
	d.visible = false
	d.filter.Blur()
}

// IsVisible returns whether the picker is visible
func (d *ExamplePicker) IsVisible() bool {
	return d.visible
}

// SetSize updates the picker dimensions
func (d *ExamplePicker) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.filter.Width = max(width-4, 1)
}

// Selected returns the highlighted example.
func (d *ExamplePicker) Selected() (examples.Example, bool) {
	if d.cursor < 0 || d.cursor >= len(d.matches) {
		return examples.Example{}, false
	}
	return d.matches[d.cursor], true
}

// Update handles navigation and filtering. Enter and esc are left to the
// caller.
func (d *ExamplePicker) Update(msg tea.Msg) (*ExamplePicker, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "up", "ctrl+p":
			if d.cursor > 0 {
				d.cursor--
			}
			return d, nil
		case "down", "ctrl+n":
			if d.cursor < len(d.matches)-1 {
				d.cursor++
			}
			return d, nil
		}
	}

	before := d.filter.Value()
	var cmd tea.Cmd
	d.filter, cmd = d.filter.Update(msg)
	if d.filter.Value() != before {
		d.matches = examples.Find(d.filter.Value())
		d.cursor = 0
	}
	return d, cmd
}

// View renders the picker as a bordered list.
func (d *ExamplePicker) View(st Styles) string {
	if !d.visible {
		return ""
	}

	inner := max(d.width-4, 10)
	nameWidth := 0
	for _, ex := range d.matches {
		nameWidth = max(nameWidth, runewidth.StringWidth(ex.Name))
	}

	var b strings.Builder
	b.WriteString(st.PaneTitle.Render("Examples"))
	b.WriteString("\n")
	b.WriteString(d.filter.View())
	b.WriteString("\n\n")

	if len(d.matches) == 0 {
		b.WriteString(st.Muted.Render("no matches"))
	}
	rows := len(d.matches)
	if d.height > 6 {
		rows = min(rows, d.height-6)
	}
	start := max(d.cursor-rows+1, 0)
	for i := start; i < start+rows; i++ {
		ex := d.matches[i]
		tags := ""
		if ex.Interactive {
			tags += " [input]"
		}
		if ex.Animated {
			tags += " [animated]"
		}
		row := runewidth.FillRight(ex.Name, nameWidth) + "  " + ex.Title + tags
		row = runewidth.Truncate(row, inner-2, "…")
		if i == d.cursor {
			b.WriteString(st.Selected.Render("> " + row))
		} else {
			b.WriteString("  " + row)
		}
		if i < start+rows-1 {
			b.WriteString("\n")
		}
	}

	if ex, ok := d.Selected(); ok && ex.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(st.Muted.Render(runewidth.Truncate(ex.Description, inner, "…")))
	}

	return st.FocusedPane.Width(inner).Padding(0, 1).Render(b.String())
}
