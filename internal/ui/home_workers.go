package ui

import (
	"context"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/play-deck/internal/remap"
	"github.com/asheshgoplani/play-deck/internal/session"
	"github.com/asheshgoplani/play-deck/internal/watch"
)

type fileChangedMsg struct{ change watch.Change }

// watchStoppedMsg ends the watch loop. It is sent when Home shuts down.
type watchStoppedMsg struct{}

// waitForChange blocks until the watcher reports the next version of the
// file. Home issues it again after each change.
func waitForChange(ctx context.Context, changes <-chan watch.Change) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return watchStoppedMsg{}
		case c, ok := <-changes:
			if !ok {
				return watchStoppedMsg{}
			}
			return fileChangedMsg{change: c}
		}
	}
}

// handleFileChange loads an edited file into the editor, keeping the caret on
// the same text, and re-runs it when auto-run is on.
func (h *Home) handleFileChange(c watch.Change) tea.Cmd {
	defer func() {
		if r := recover(); r != nil {
			uiLog.Error("file_change_panic", slog.Any("panic", r))
		}
	}()

	cmds := []tea.Cmd{waitForChange(h.ctx, h.changes)}

	old := h.editor.Value()
	if c.Source != old {
		pos := remap.Remap(old, c.Source, h.editorCursor())
		h.setEditorText(c.Source, pos)
		h.setFlash("reloaded "+filepath.Base(c.Path), session.ClassNone)
	}
	uiLog.Debug("file_changed",
		slog.String("path", c.Path),
		slog.Bool("auto_run", h.autoRun))

	if h.autoRun {
		cmds = append(cmds, h.runCmd(c.Source))
	}
	return tea.Batch(cmds...)
}
