package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/play-deck/internal/fsutil"
	"github.com/asheshgoplani/play-deck/internal/reformat"
	"github.com/asheshgoplani/play-deck/internal/session"
)

// RunManager holds what Home needs to talk to the playground service. Every
// call that can block, or that takes a session lock the sink may be waiting
// on, runs inside a tea.Cmd and reports back with a message.
//
// Embedded in Home for field access (same pattern as OutputManager).
type RunManager struct {
	manager        *session.Manager
	formatter      *reformat.Coordinator
	transcript     *session.Transcript
	transcriptPath string
}

type (
	runStartedMsg struct {
		id  string
		err error
	}

	cancelDoneMsg struct{ err error }

	inputSentMsg struct{ err error }

	formattedMsg struct {
		original string
		buf      reformat.Buffer
		err      error
		thenRun  bool
	}

	fileSavedMsg struct {
		path string
		err  error
	}

	transcriptSavedMsg struct {
		path string
		err  error
	}
)

// runCmd starts source as the new current run.
func (h *Home) runCmd(source string) tea.Cmd {
	if h.manager == nil {
		return nil
	}
	ctx := h.ctx
	return func() tea.Msg {
		id, err := h.manager.StartRun(ctx, source)
		return runStartedMsg{id: id, err: err}
	}
}

// cancelCmd cancels the current run.
func (h *Home) cancelCmd() tea.Cmd {
	if h.manager == nil {
		return nil
	}
	return func() tea.Msg {
		return cancelDoneMsg{err: h.manager.Cancel()}
	}
}

// submitCmd relays a console line to the waiting program.
func (h *Home) submitCmd(line string) tea.Cmd {
	if h.manager == nil {
		return nil
	}
	ctx := h.ctx
	return func() tea.Msg {
		return inputSentMsg{err: h.manager.Input().Submit(ctx, line)}
	}
}

// formatCmd formats buf. With thenRun the result is run once applied.
func (h *Home) formatCmd(buf reformat.Buffer, thenRun bool) tea.Cmd {
	if h.formatter == nil {
		return nil
	}
	ctx := h.ctx
	return func() tea.Msg {
		out, err := h.formatter.Reformat(ctx, buf)
		return formattedMsg{original: buf.Text, buf: out, err: err, thenRun: thenRun}
	}
}

// saveFileCmd writes the editor buffer back to the watched file.
func (h *Home) saveFileCmd(path, text string) tea.Cmd {
	return func() tea.Msg {
		return fileSavedMsg{path: path, err: fsutil.WriteFileAtomic(path, []byte(text), 0644)}
	}
}

// saveTranscriptCmd writes the output of the current run to disk.
func (h *Home) saveTranscriptCmd() tea.Cmd {
	if h.transcript == nil {
		return nil
	}
	path := h.transcriptPath
	if path == "" {
		path = fmt.Sprintf("play-deck-%s.txt", h.now().Format("20060102-150405"))
	}
	return func() tea.Msg {
		return transcriptSavedMsg{path: path, err: h.transcript.Save(path)}
	}
}

// tickMsg refreshes the elapsed time while a run is live.
type tickMsg time.Time

const tickInterval = 250 * time.Millisecond

func (h *Home) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
