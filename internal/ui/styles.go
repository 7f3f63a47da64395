package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/play-deck/internal/session"
)

var (
	colorText    = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#696969"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#555555"}
	colorFocus   = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#FECA57"}
	colorError   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#FF8787"}
	colorInput   = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"}
)

// ApplyTheme selects the light or dark variant of every adaptive color.
// Unknown names leave terminal detection in charge.
func ApplyTheme(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}

// Styles groups the lipgloss styles used by Home.
type Styles struct {
	Title        lipgloss.Style
	Pane         lipgloss.Style
	FocusedPane  lipgloss.Style
	PaneTitle    lipgloss.Style
	Muted        lipgloss.Style
	StatusBar    lipgloss.Style
	Prompt       lipgloss.Style
	Selected     lipgloss.Style
	Output       lipgloss.Style
	Input        lipgloss.Style
	Notice       lipgloss.Style
	Error        lipgloss.Style
	Invalid      lipgloss.Style
	Success      lipgloss.Style
	StatusColors map[session.Status]lipgloss.Style
}

// DefaultStyles returns the standard style set.
func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder)

	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(colorFocus),
		Pane:        pane,
		FocusedPane: pane.BorderForeground(colorFocus),
		PaneTitle:   lipgloss.NewStyle().Bold(true).Foreground(colorText),
		Muted:       lipgloss.NewStyle().Foreground(colorMuted),
		StatusBar:   lipgloss.NewStyle().Foreground(colorText),
		Prompt:      lipgloss.NewStyle().Bold(true).Foreground(colorInput),
		Selected:    lipgloss.NewStyle().Bold(true).Foreground(colorFocus),
		Output:      lipgloss.NewStyle().Foreground(colorText),
		Input:       lipgloss.NewStyle().Foreground(colorInput),
		Notice:      lipgloss.NewStyle().Italic(true).Foreground(colorMuted),
		Error:       lipgloss.NewStyle().Foreground(colorError),
		Invalid:     lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		Success:     lipgloss.NewStyle().Foreground(colorSuccess),
		StatusColors: map[session.Status]lipgloss.Style{
			session.StatusRunning:         lipgloss.NewStyle().Foreground(colorFocus),
			session.StatusWaitingForInput: lipgloss.NewStyle().Bold(true).Foreground(colorInput),
			session.StatusCompleted:       lipgloss.NewStyle().Foreground(colorSuccess),
			session.StatusErrored:         lipgloss.NewStyle().Foreground(colorError),
			session.StatusCancelled:       lipgloss.NewStyle().Foreground(colorWarning),
		},
	}
}

// lineStyle picks the style for an output line.
func (s Styles) lineStyle(l session.Line) lipgloss.Style {
	switch l.Class {
	case session.ClassInvalid:
		return s.Invalid
	case session.ClassError:
		return s.Error
	case session.ClassSuccess:
		return s.Success
	}
	switch l.Kind {
	case session.LineInput:
		return s.Input
	case session.LineNotice:
		return s.Notice
	default:
		return s.Output
	}
}

// classStyle picks the style for a status-bar message.
func (s Styles) classStyle(c session.Class) lipgloss.Style {
	switch c {
	case session.ClassInvalid:
		return s.Invalid
	case session.ClassError:
		return s.Error
	case session.ClassSuccess:
		return s.Success
	default:
		return s.StatusBar
	}
}
