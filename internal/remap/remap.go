// Package remap keeps the caret pointing at the same logical character after
// a whole-buffer rewrite such as gofmt. There is no structural diff involved:
// the mapping matches the Nth occurrence of the character under the caret in
// the old line to the Nth occurrence in the new line, and falls back to the
// end of the line when that is not possible.
package remap

import "strings"

// Position is a zero-based caret location. Column counts runes, not bytes.
type Position struct {
	Row    int
	Column int
}

// Range is a selection between two positions.
type Range struct {
	Start Position
	End   Position
}

// Column maps originalColumn in originalLine to its best-effort equivalent in
// formattedLine.
//
// An empty line counts as absent and maps to column 0.
func Column(originalLine, formattedLine string, originalColumn int) int {
	if originalLine == "" || formattedLine == "" {
		return 0
	}

	orig := []rune(originalLine)
	formatted := []rune(formattedLine)

	if originalColumn < 0 || originalColumn >= len(orig) {
		return len(formatted)
	}
	target := orig[originalColumn]

	// Rank of the target among its occurrences at or before the caret.
	occurrence := -1
	for i := 0; i <= originalColumn; i++ {
		if orig[i] == target {
			occurrence++
		}
	}

	seen := 0
	for i, r := range formatted {
		if r != target {
			continue
		}
		if seen == occurrence {
			return i
		}
		seen++
	}

	return len(formatted)
}

// Remap moves a caret from originalText to formattedText. Rows past the
// end of the formatted text clamp to the end of its last line.
func Remap(originalText, formattedText string, pos Position) Position {
	origLines := strings.Split(originalText, "\n")
	fmtLines := strings.Split(formattedText, "\n")

	if pos.Row < 0 {
		pos.Row = 0
	}
	if pos.Row >= len(fmtLines) {
		last := len(fmtLines) - 1
		return Position{Row: last, Column: len([]rune(fmtLines[last]))}
	}

	var origLine string
	if pos.Row < len(origLines) {
		origLine = origLines[pos.Row]
	}

	return Position{
		Row:    pos.Row,
		Column: Column(origLine, fmtLines[pos.Row], pos.Column),
	}
}

// RemapRange remaps both endpoints of a selection with Remap.
func RemapRange(originalText, formattedText string, r Range) Range {
	return Range{
		Start: Remap(originalText, formattedText, r.Start),
		End:   Remap(originalText, formattedText, r.End),
	}
}
