package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/play-deck/internal/examples"
	"github.com/asheshgoplani/play-deck/internal/remap"
	"github.com/asheshgoplani/play-deck/internal/session"
)

// handleKey routes a key press. Global bindings win over the focused widget,
// except while the example picker is open.
func (h *Home) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if h.picker.IsVisible() {
		return h.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, h.keys.Quit):
		return h.quit()

	case key.Matches(msg, h.keys.Run):
		return h, h.startRun()

	case key.Matches(msg, h.keys.Cancel):
		if !h.running() {
			h.setFlash("nothing to cancel", session.ClassNone)
			return h, nil
		}
		return h, h.cancelCmd()

	case key.Matches(msg, h.keys.Format):
		if h.formatter == nil {
			return h, nil
		}
		return h, h.formatCmd(h.editorBuffer(), false)

	case key.Matches(msg, h.keys.Examples):
		return h, h.picker.Show()

	case key.Matches(msg, h.keys.SwitchPane):
		h.cycleFocus()
		return h, nil

	case key.Matches(msg, h.keys.ClearOut):
		h.clearOutput()
		return h, nil

	case key.Matches(msg, h.keys.Transcript):
		return h, h.saveTranscriptCmd()

	case key.Matches(msg, h.keys.AutoRun):
		if h.watchPath == "" {
			h.setFlash("not watching a file", session.ClassNone)
			return h, nil
		}
		h.autoRun = !h.autoRun
		if h.autoRun {
			h.setFlash("auto-run on", session.ClassNone)
		} else {
			h.setFlash("auto-run off", session.ClassNone)
		}
		return h, nil

	case key.Matches(msg, h.keys.ScrollUp, h.keys.ScrollDown):
		var cmd tea.Cmd
		h.output, cmd = h.output.Update(msg)
		if h.output.AtBottom() {
			h.hasNewOutput = false
		}
		return h, cmd

	case key.Matches(msg, h.keys.Help):
		h.help.ShowAll = !h.help.ShowAll
		h.layout()
		return h, nil
	}

	switch h.focus {
	case focusConsole:
		return h, h.handleConsoleKey(msg)
	case focusOutput:
		if msg.String() == "esc" {
			h.setFocus(focusEditor)
			return h, nil
		}
	}
	return h, h.updateFocused(msg)
}

// handleConsoleKey handles keys while the console line has focus.
func (h *Home) handleConsoleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "esc" {
		h.setFocus(focusEditor)
		return nil
	}
	cmd, line, submitted := h.console.Update(msg)
	if submitted && line != "" {
		return tea.Batch(cmd, h.submitCmd(line))
	}
	return cmd
}

// handlePickerKey handles keys while the example picker is open.
func (h *Home) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		ex, ok := h.picker.Selected()
		h.picker.Hide()
		if ok {
			h.loadExample(ex)
		}
		return h, nil
	case "esc":
		h.picker.Hide()
		return h, nil
	case "ctrl+c":
		return h.quit()
	}

	var cmd tea.Cmd
	h.picker, cmd = h.picker.Update(msg)
	return h, cmd
}

// loadExample puts ex in the editor, sized to the output pane.
func (h *Home) loadExample(ex examples.Example) {
	src, err := ex.Source(h.output.Width, h.output.Height)
	if err != nil {
		h.setFlash(err.Error(), session.ClassError)
		return
	}
	h.setEditorText(src, remap.Position{})
	h.title = ex.Title
	h.setFocus(focusEditor)
	h.setFlash("loaded "+ex.Name, session.ClassNone)
}

func (h *Home) quit() (tea.Model, tea.Cmd) {
	h.Shutdown()
	return h, tea.Quit
}
