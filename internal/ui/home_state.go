package ui

import (
	"strings"

	"github.com/asheshgoplani/play-deck/internal/reformat"
	"github.com/asheshgoplani/play-deck/internal/remap"
)

// editorCursor returns the caret as a logical row and rune column. The
// textarea reports soft-wrapped rows separately, so they are added back up.
func (h *Home) editorCursor() remap.Position {
	info := h.editor.LineInfo()
	return remap.Position{
		Row:    h.editor.Line(),
		Column: info.StartColumn + info.ColumnOffset,
	}
}

// editorBuffer snapshots the editor for a reformat. The textarea has no
// selection, so none is sent.
func (h *Home) editorBuffer() reformat.Buffer {
	return reformat.Buffer{
		Text:   h.editor.Value(),
		Cursor: h.editorCursor(),
	}
}

// editorTabWidth matches the textarea, which stores each tab as spaces.
const editorTabWidth = 4

// setEditorText replaces the editor content and puts the caret at pos,
// clamped to the text. pos refers to text before tab expansion.
func (h *Home) setEditorText(text string, pos remap.Position) {
	if lines := strings.Split(text, "\n"); pos.Row < len(lines) {
		pos.Column = expandedColumn(lines[pos.Row], pos.Column)
	}
	expanded := expandTabs(text)
	h.editor.SetValue(expanded)

	// SetValue leaves the caret at the end; walk it up to the target row.
	// Each step moves at least one visual line, so the bound is the text size.
	for i := 0; h.editor.Line() > pos.Row && i <= len(expanded); i++ {
		h.editor.CursorUp()
	}
	h.editor.SetCursor(pos.Column)
}

// applyBuffer installs a reformatted buffer unless the user edited the text
// while the format was in flight.
func (h *Home) applyBuffer(original string, buf reformat.Buffer) bool {
	if h.editor.Value() != original {
		return false
	}
	if buf.Text != original {
		h.setEditorText(buf.Text, buf.Cursor)
	}
	return true
}

func expandTabs(text string) string {
	return strings.ReplaceAll(text, "\t", strings.Repeat(" ", editorTabWidth))
}

// expandedColumn converts a rune column in line to the column after tab
// expansion.
func expandedColumn(line string, col int) int {
	runes := []rune(line)
	n := min(col, len(runes))
	tabs := 0
	for _, r := range runes[:max(n, 0)] {
		if r == '\t' {
			tabs++
		}
	}
	return col + tabs*(editorTabWidth-1)
}
