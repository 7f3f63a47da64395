package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

var inputLog = logging.ForComponent(logging.CompInput)

// InputBridge owns the single input listener. It is bound to a session when
// the session starts waiting for input and detached at teardown.
type InputBridge struct {
	m *Manager

	mu    sync.Mutex
	bound *Session
}

// Bind attaches the listener to s, detaching it from any other session first.
func (b *InputBridge) Bind(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound == s {
		return
	}
	if b.bound != nil {
		b.bound.listening.Store(false)
		inputLog.Debug("listener_detached", slog.String("session", b.bound.id))
	}
	b.bound = s
	s.listening.Store(true)
	inputLog.Debug("listener_bound", slog.String("session", s.id))
}

// Detach removes the listener. Detaching with nothing bound is a no-op.
func (b *InputBridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
}

// DetachFrom removes the listener only if it is bound to s.
func (b *InputBridge) DetachFrom(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == s {
		b.detachLocked()
	}
}

func (b *InputBridge) detachLocked() {
	if b.bound == nil {
		return
	}
	b.bound.listening.Store(false)
	inputLog.Debug("listener_detached", slog.String("session", b.bound.id))
	b.bound = nil
}

// Bound returns the id of the session the listener is bound to, or "".
func (b *InputBridge) Bound() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return ""
	}
	return b.bound.id
}

// Submit relays line to the bound session. It does nothing when line is empty,
// nothing is bound or the bound session is not waiting for input. The line is
// echoed to the sink before it is sent. A send failure ends the session with
// an error and is returned.
func (b *InputBridge) Submit(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}

	b.mu.Lock()
	s := b.bound
	b.mu.Unlock()
	if s == nil {
		return nil
	}

	s.gate.Lock()
	if s.superseded || s.Status() != StatusWaitingForInput {
		s.gate.Unlock()
		return nil
	}
	b.m.sink.Append(Line{Kind: LineInput, Text: line})
	s.gate.Unlock()

	err := b.m.backend.SendInput(ctx, s.id, line)
	if err == nil {
		inputLog.Debug("input_sent",
			slog.String("session", s.id),
			slog.Int("bytes", len(line)))
		return nil
	}

	inputLog.Warn("input_failed",
		slog.String("session", s.id),
		slog.String("error", err.Error()))

	s.gate.Lock()
	defer s.gate.Unlock()
	if s.superseded || s.Status().Terminal() {
		return err
	}
	b.m.finish(s, StatusErrored)
	b.m.sink.Append(errorLine(err.Error()))
	return err
}
