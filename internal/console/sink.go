// Package console runs programs without the TUI: output goes to a writer as
// plain text and lines read from an input stream are relayed to the program
// whenever it waits for input.
package console

import (
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/asheshgoplani/play-deck/internal/session"
)

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithInputEcho writes submitted input lines to the output. Leave it off when
// the input comes from a terminal, which already echoed the line.
func WithInputEcho(enabled bool) SinkOption {
	return func(s *Sink) {
		s.echoInput = enabled
	}
}

// WithClearScreen makes Clear erase the terminal. Without it Clear only ends
// the current line.
func WithClearScreen(enabled bool) SinkOption {
	return func(s *Sink) {
		s.clearScreen = enabled
	}
}

// Sink is a session.OutputSink writing plain text.
type Sink struct {
	out         *termenv.Output
	echoInput   bool
	clearScreen bool

	mu          sync.Mutex
	atLineStart bool
	ready       chan struct{}
}

var _ session.OutputSink = (*Sink)(nil)

// NewSink creates a sink writing to w.
func NewSink(w io.Writer, opts ...SinkOption) *Sink {
	s := &Sink{
		out:         termenv.NewOutput(w),
		atLineStart: true,
		ready:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is signalled each time a program starts waiting for input.
func (s *Sink) Ready() <-chan struct{} {
	return s.ready
}

func (s *Sink) Append(line session.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line.Kind == session.LineOutput {
		s.write(line.Text)
		return
	}
	if line.Kind == session.LineInput && !s.echoInput {
		// The terminal printed the line and its newline.
		s.atLineStart = true
		return
	}
	if !s.atLineStart {
		s.write("\n")
	}
	s.write(line.String() + "\n")
}

func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clearScreen {
		s.out.ClearScreen()
		s.atLineStart = true
		return
	}
	if !s.atLineStart {
		s.write("\n")
	}
}

func (s *Sink) ReserveInput() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Sink) ReleaseInput() {}

func (s *Sink) write(text string) {
	if text == "" {
		return
	}
	_, _ = io.WriteString(s.out, text)
	s.atLineStart = strings.HasSuffix(text, "\n")
}
