package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/asheshgoplani/play-deck/internal/fsutil"
)

// DefaultTranscriptLines is the number of lines a Transcript retains (FIFO).
const DefaultTranscriptLines = 5000

// Transcript records what an OutputSink shows and forwards every call to the
// wrapped sink. It mirrors the visible output: Clear empties it too.
type Transcript struct {
	next  OutputSink
	limit int

	mu      sync.Mutex
	lines   []Line
	dropped int
}

// NewTranscript wraps next. A limit <= 0 uses DefaultTranscriptLines; a nil
// next discards.
func NewTranscript(next OutputSink, limit int) *Transcript {
	if next == nil {
		next = Discard
	}
	if limit <= 0 {
		limit = DefaultTranscriptLines
	}
	return &Transcript{next: next, limit: limit}
}

func (t *Transcript) Append(line Line) {
	t.mu.Lock()
	if len(t.lines) >= t.limit {
		// Evict oldest
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:len(t.lines)-1]
		t.dropped++
	}
	t.lines = append(t.lines, line)
	t.mu.Unlock()

	t.next.Append(line)
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	t.lines = t.lines[:0]
	t.dropped = 0
	t.mu.Unlock()

	t.next.Clear()
}

func (t *Transcript) ReserveInput() { t.next.ReserveInput() }
func (t *Transcript) ReleaseInput() { t.next.ReleaseInput() }

// Lines returns a copy of the retained lines.
func (t *Transcript) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Line, len(t.lines))
	copy(result, t.lines)
	return result
}

// Dropped returns how many lines were evicted since the last Clear.
func (t *Transcript) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// String renders the retained lines as plain text.
func (t *Transcript) String() string {
	return Render(t.Lines())
}

// Save writes the transcript to path as plain text, replacing the file
// atomically.
func (t *Transcript) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(t.String()), 0600); err != nil {
		return err
	}
	sessionLog.Debug("transcript_saved", slog.String("path", path))
	return nil
}

// Render lays lines out as a terminal would show them. Output fragments are
// written as-is; every other line starts on a line of its own.
func Render(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		if l.Kind == LineOutput {
			b.WriteString(l.Text)
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}
