package ui

import (
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/play-deck/internal/logging"
	"github.com/asheshgoplani/play-deck/internal/session"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Messages produced by ProgramSink. They arrive in the order the manager
// produced them.
type (
	outputLineMsg   struct{ line session.Line }
	outputClearMsg  struct{}
	inputReserveMsg struct{}
	inputReleaseMsg struct{}

	statusChangedMsg struct {
		id     string
		status session.Status
	}
)

// ProgramSink turns sink calls into messages for a running tea.Program.
// Send blocks until the program's event loop takes the message, which keeps
// the manager's ordering intact.
type ProgramSink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

var _ session.OutputSink = (*ProgramSink)(nil)

// NewProgramSink creates a sink that drops everything until Attach.
func NewProgramSink() *ProgramSink {
	return &ProgramSink{}
}

// Attach routes messages to p.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.AttachFunc(p.Send)
}

// AttachFunc routes messages to send.
func (s *ProgramSink) AttachFunc(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

// StatusFunc returns a session.StatusFunc that reports through the program.
func (s *ProgramSink) StatusFunc() session.StatusFunc {
	return func(id string, status session.Status) {
		s.emit(statusChangedMsg{id: id, status: status})
	}
}

func (s *ProgramSink) Append(line session.Line) { s.emit(outputLineMsg{line: line}) }
func (s *ProgramSink) Clear()                   { s.emit(outputClearMsg{}) }
func (s *ProgramSink) ReserveInput()            { s.emit(inputReserveMsg{}) }
func (s *ProgramSink) ReleaseInput()            { s.emit(inputReleaseMsg{}) }

func (s *ProgramSink) emit(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send == nil {
		uiLog.Debug("sink_detached_drop", slog.String("msg", msgName(msg)))
		return
	}
	send(msg)
}

func msgName(msg tea.Msg) string {
	switch msg.(type) {
	case outputLineMsg:
		return "output_line"
	case outputClearMsg:
		return "output_clear"
	case inputReserveMsg:
		return "input_reserve"
	case inputReleaseMsg:
		return "input_release"
	case statusChangedMsg:
		return "status_changed"
	default:
		return "unknown"
	}
}
