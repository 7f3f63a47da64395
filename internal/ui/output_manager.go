package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/play-deck/internal/session"
)

// maxOutputLines bounds the output pane history (FIFO).
const maxOutputLines = session.DefaultTranscriptLines

// OutputManager holds the output pane: the lines of the current run and the
// viewport showing them. Content is rendered when it changes, never in View.
//
// Embedded in Home for field access (same pattern as RunManager).
type OutputManager struct {
	outputLines   []session.Line
	outputDropped int
	output        viewport.Model
	hasNewOutput  bool // output arrived while scrolled up
}

func newOutputManager() OutputManager {
	return OutputManager{output: viewport.New(0, 0)}
}

// appendOutput adds a line and keeps the view pinned to the tail unless the
// user scrolled away from it.
func (h *Home) appendOutput(line session.Line) {
	if len(h.outputLines) >= maxOutputLines {
		h.outputLines = h.outputLines[1:]
		h.outputDropped++
	}
	h.outputLines = append(h.outputLines, line)
	h.refreshOutput()
}

// clearOutput erases the pane. Used by the clear marker and by new runs.
func (h *Home) clearOutput() {
	h.outputLines = h.outputLines[:0]
	h.outputDropped = 0
	h.hasNewOutput = false
	h.refreshOutput()
}

// refreshOutput re-renders the pane content.
func (h *Home) refreshOutput() {
	follow := h.output.AtBottom()
	h.output.SetContent(renderOutput(h.outputLines, h.styles, h.output.Width))
	if follow {
		h.output.GotoBottom()
		h.hasNewOutput = false
	} else {
		h.hasNewOutput = true
	}
}

// outputText is the pane content without styling.
func (h *Home) outputText() string {
	return session.Render(h.outputLines)
}

// renderOutput lays lines out like session.Render, styling each line by its
// kind and class, and wraps the result to width.
func renderOutput(lines []session.Line, st Styles, width int) string {
	var b strings.Builder
	atLineStart := true
	for _, l := range lines {
		text := l.String()
		if l.Kind != session.LineOutput {
			if !atLineStart {
				b.WriteByte('\n')
			}
			text += "\n"
		}
		if text == "" {
			continue
		}
		writeStyled(&b, st.lineStyle(l), text)
		atLineStart = strings.HasSuffix(text, "\n")
	}

	content := b.String()
	if width > 0 {
		content = lipgloss.NewStyle().Width(width).Render(content)
	}
	return content
}

// writeStyled styles each line of text separately so styles never span a
// line break.
func writeStyled(b *strings.Builder, style lipgloss.Style, text string) {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('\n')
		}
		if part != "" {
			b.WriteString(style.Render(part))
		}
	}
}
