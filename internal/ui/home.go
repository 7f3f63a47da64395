// Package ui is the terminal front end: an editor pane, an output pane fed by
// the session manager, a console line for program input and an example
// picker.
package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/play-deck/internal/reformat"
	"github.com/asheshgoplani/play-deck/internal/remap"
	"github.com/asheshgoplani/play-deck/internal/session"
	"github.com/asheshgoplani/play-deck/internal/watch"
)

type focusArea int

const (
	focusEditor focusArea = iota
	focusOutput
	focusConsole
)

// Config wires Home to the rest of the client. Every field is optional.
type Config struct {
	Context context.Context

	Manager        *session.Manager
	Formatter      *reformat.Coordinator
	Transcript     *session.Transcript
	TranscriptPath string

	// Source is loaded into the editor, Title names it in the title bar.
	Source string
	Title  string

	// WatchPath and Changes come from a running watch.Watcher.
	WatchPath string
	Changes   <-chan watch.Change
	AutoRun   bool

	FormatOnRun bool
	RunOnStart  bool
	HideHelp    bool
	Styles      *Styles
	Now         func() time.Time
}

// Home is the main bubbletea model.
type Home struct {
	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	keys   keyMap
	help   help.Model
	styles Styles

	editor  textarea.Model
	focus   focusArea
	console *ConsolePanel
	picker  *ExamplePicker

	title       string
	watchPath   string
	changes     <-chan watch.Change
	autoRun     bool
	formatOnRun bool
	runOnStart  bool
	showHelp    bool
	ticking     bool

	RunManager
	OutputManager
	StatusManager
}

// NewHome creates the model.
func NewHome(cfg Config) *Home {
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	styles := DefaultStyles()
	if cfg.Styles != nil {
		styles = *cfg.Styles
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ta := textarea.New()
	ta.ShowLineNumbers = true
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.Placeholder = "package main"
	ta.Focus()

	h := &Home{
		ctx:         ctx,
		cancel:      cancel,
		now:         now,
		keys:        defaultKeyMap(),
		help:        help.New(),
		styles:      styles,
		editor:      ta,
		console:     NewConsolePanel(),
		picker:      NewExamplePicker(),
		title:       cfg.Title,
		watchPath:   cfg.WatchPath,
		changes:     cfg.Changes,
		autoRun:     cfg.AutoRun,
		formatOnRun: cfg.FormatOnRun,
		runOnStart:  cfg.RunOnStart,
		showHelp:    !cfg.HideHelp,
		RunManager: RunManager{
			manager:        cfg.Manager,
			formatter:      cfg.Formatter,
			transcript:     cfg.Transcript,
			transcriptPath: cfg.TranscriptPath,
		},
		OutputManager: newOutputManager(),
	}
	h.console.input.PromptStyle = styles.Prompt
	if cfg.Source != "" {
		h.setEditorText(cfg.Source, remap.Position{})
	}
	return h
}

// Init implements tea.Model.
func (h *Home) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, waitForChange(h.ctx, h.changes)}
	if h.runOnStart {
		cmds = append(cmds, h.startRun())
	}
	return tea.Batch(cmds...)
}

// Shutdown stops pending commands. The caller closes the manager.
func (h *Home) Shutdown() {
	h.cancel()
}

// Update implements tea.Model.
func (h *Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		h.layout()
		return h, nil

	case tea.KeyMsg:
		return h.handleKey(msg)

	case outputLineMsg:
		h.appendOutput(msg.line)
		return h, nil

	case outputClearMsg:
		h.clearOutput()
		return h, nil

	case inputReserveMsg:
		cmd := h.console.Show()
		h.setFocus(focusConsole)
		h.layout()
		return h, cmd

	case inputReleaseMsg:
		h.console.Hide()
		if h.focus == focusConsole {
			h.setFocus(focusEditor)
		}
		h.layout()
		return h, nil

	case statusChangedMsg:
		h.setStatus(msg.id, msg.status)
		if h.running() && !h.ticking {
			h.ticking = true
			return h, h.tick()
		}
		return h, nil

	case tickMsg:
		if h.running() {
			return h, h.tick()
		}
		h.ticking = false
		return h, nil

	case runStartedMsg:
		if msg.err != nil {
			// The error line is already in the output pane.
			uiLog.Info("run_failed", slog.String("error", msg.err.Error()))
			h.setFlash("run rejected", session.Classify(msg.err.Error()))
		}
		return h, nil

	case cancelDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, session.ErrNoSession) {
			h.setFlash("cancel failed: "+msg.err.Error(), session.ClassError)
		}
		return h, nil

	case inputSentMsg:
		if msg.err != nil {
			h.setFlash("input not delivered", session.ClassError)
		}
		return h, nil

	case formattedMsg:
		return h, h.handleFormatted(msg)

	case fileSavedMsg:
		if msg.err != nil {
			h.setFlash("save failed: "+msg.err.Error(), session.ClassError)
		}
		return h, nil

	case transcriptSavedMsg:
		if msg.err != nil {
			h.setFlash("transcript not saved: "+msg.err.Error(), session.ClassError)
		} else {
			h.setFlash("transcript saved to "+msg.path, session.ClassSuccess)
		}
		return h, nil

	case fileChangedMsg:
		return h, h.handleFileChange(msg.change)

	case watchStoppedMsg:
		h.changes = nil
		return h, nil
	}

	return h, h.updateFocused(msg)
}

// handleFormatted applies a finished reformat and chains the run it was
// requested for.
func (h *Home) handleFormatted(msg formattedMsg) tea.Cmd {
	if msg.err != nil {
		h.setFlash("format failed: "+msg.err.Error(), session.ClassError)
		if msg.thenRun {
			return h.runCmd(h.editor.Value())
		}
		return nil
	}

	if !h.applyBuffer(msg.original, msg.buf) {
		h.setFlash("buffer changed, format discarded", session.ClassNone)
		if msg.thenRun {
			return h.runCmd(h.editor.Value())
		}
		return nil
	}

	var cmds []tea.Cmd
	if h.watchPath != "" {
		cmds = append(cmds, h.saveFileCmd(h.watchPath, msg.buf.Text))
	}
	if msg.thenRun {
		cmds = append(cmds, h.runCmd(msg.buf.Text))
	}
	return tea.Batch(cmds...)
}

// startRun runs the editor buffer, formatting it first when configured to.
func (h *Home) startRun() tea.Cmd {
	if h.formatOnRun && h.formatter != nil {
		return h.formatCmd(h.editorBuffer(), true)
	}
	return h.runCmd(h.editor.Value())
}

func (h *Home) setFocus(f focusArea) {
	if f == focusConsole && !h.console.IsVisible() {
		f = focusEditor
	}
	h.focus = f
	if f == focusEditor {
		h.editor.Focus()
	} else {
		h.editor.Blur()
	}
	if f == focusConsole {
		_ = h.console.Focus()
	} else {
		h.console.Blur()
	}
}

// cycleFocus moves focus editor, output, console (when shown), editor.
func (h *Home) cycleFocus() {
	switch h.focus {
	case focusEditor:
		h.setFocus(focusOutput)
	case focusOutput:
		if h.console.IsVisible() {
			h.setFocus(focusConsole)
		} else {
			h.setFocus(focusEditor)
		}
	default:
		h.setFocus(focusEditor)
	}
}

// updateFocused passes msg to the widget with focus.
func (h *Home) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch h.focus {
	case focusConsole:
		cmd, _, _ = h.console.Update(msg)
	case focusOutput:
		h.output, cmd = h.output.Update(msg)
		if h.output.AtBottom() {
			h.hasNewOutput = false
		}
	default:
		h.editor, cmd = h.editor.Update(msg)
	}
	return cmd
}

// layout sizes the panes to the window.
func (h *Home) layout() {
	if h.width <= 0 || h.height <= 0 {
		return
	}
	h.help.Width = h.width
	h.console.SetWidth(h.width)
	h.picker.SetSize(min(h.width-4, 72), min(h.height-2, 20))

	fixed := 2 // title and status bar
	if h.showHelp {
		fixed += lipgloss.Height(h.help.View(h.keys))
	}
	if h.console.IsVisible() {
		fixed++
	}
	avail := max(h.height-fixed, 6)
	editorH := avail / 2
	outputH := avail - editorH

	inner := max(h.width-2, 1)
	h.editor.SetWidth(inner)
	h.editor.SetHeight(max(editorH-2, 1))
	h.output.Width = inner
	h.output.Height = max(outputH-2, 1)
	h.refreshOutput()
}

// View implements tea.Model.
func (h *Home) View() string {
	if h.width == 0 {
		return "loading..."
	}
	if h.picker.IsVisible() {
		return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, h.picker.View(h.styles))
	}

	inner := max(h.width-2, 1)
	paneStyle := func(f focusArea) lipgloss.Style {
		if h.focus == f {
			return h.styles.FocusedPane.Width(inner)
		}
		return h.styles.Pane.Width(inner)
	}

	parts := []string{
		h.renderTitle(),
		paneStyle(focusEditor).Render(h.editor.View()),
		paneStyle(focusOutput).Render(h.output.View()),
	}
	if h.console.IsVisible() {
		parts = append(parts, h.console.View())
	}
	parts = append(parts, h.renderStatusBar())
	if h.showHelp {
		parts = append(parts, h.help.View(h.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (h *Home) renderTitle() string {
	var b strings.Builder
	b.WriteString(h.styles.Title.Render("play-deck"))
	if h.title != "" {
		b.WriteString(" ")
		b.WriteString(h.styles.Muted.Render(h.title))
	}
	if h.hasNewOutput {
		b.WriteString(" ")
		b.WriteString(h.styles.Invalid.Render("↓ new output"))
	}
	return b.String()
}
