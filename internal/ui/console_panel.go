package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ConsolePanel is the line input shown while a program waits for input.
type ConsolePanel struct {
	visible bool
	input   textinput.Model
	width   int

	history []string
	histPos int // len(history) when not browsing
}

// NewConsolePanel creates a hidden console panel.
func NewConsolePanel() *ConsolePanel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "type input and press enter"
	ti.CharLimit = 0
	return &ConsolePanel{input: ti}
}

// Show makes the panel visible and focuses it.
func (p *ConsolePanel) Show() tea.Cmd {
	p.visible = true
	return p.input.Focus()
}

// Hide hides the panel. Typed text is kept for the next prompt.
func (p *ConsolePanel) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible returns whether the panel is visible
func (p *ConsolePanel) IsVisible() bool {
	return p.visible
}

// Focus gives the panel keyboard focus if it is visible.
func (p *ConsolePanel) Focus() tea.Cmd {
	if !p.visible {
		return nil
	}
	return p.input.Focus()
}

func (p *ConsolePanel) Blur() {
	p.input.Blur()
}

func (p *ConsolePanel) Focused() bool {
	return p.visible && p.input.Focused()
}

// SetWidth sets the panel width in cells.
func (p *ConsolePanel) SetWidth(width int) {
	p.width = width
	p.input.Width = max(width-len(p.input.Prompt)-1, 1)
}

// Update handles a message while the panel has focus. On enter it returns the
// typed line with submitted set, and clears the input.
func (p *ConsolePanel) Update(msg tea.Msg) (cmd tea.Cmd, line string, submitted bool) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			line = p.input.Value()
			p.input.Reset()
			if line != "" {
				p.history = append(p.history, line)
			}
			p.histPos = len(p.history)
			return nil, line, true
		case "up":
			if p.histPos > 0 {
				p.histPos--
				p.input.SetValue(p.history[p.histPos])
				p.input.CursorEnd()
			}
			return nil, "", false
		case "down":
			if p.histPos < len(p.history) {
				p.histPos++
				if p.histPos == len(p.history) {
					p.input.Reset()
				} else {
					p.input.SetValue(p.history[p.histPos])
					p.input.CursorEnd()
				}
			}
			return nil, "", false
		}
	}

	p.input, cmd = p.input.Update(msg)
	return cmd, "", false
}

// View renders the input line, or nothing when hidden.
func (p *ConsolePanel) View() string {
	if !p.visible {
		return ""
	}
	return p.input.View()
}
