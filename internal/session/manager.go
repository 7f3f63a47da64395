package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asheshgoplani/play-deck/internal/logging"
	"github.com/asheshgoplani/play-deck/internal/transport"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// StatusFunc observes status changes. It is called with the session gate held,
// so it must not call back into the Manager.
type StatusFunc func(id string, status Status)

// Manager owns the current session. At most one session is current; starting a
// run tears the previous one down first.
//
// Lock order: lifecycle, then a session's gate, then the input bridge.
type Manager struct {
	backend  Backend
	sink     OutputSink
	input    *InputBridge
	onStatus StatusFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lifecycle sync.Mutex // serializes StartRun, Cancel and Close

	mu      sync.Mutex
	current *Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStatusFunc registers an observer for status changes.
func WithStatusFunc(fn StatusFunc) ManagerOption {
	return func(m *Manager) {
		m.onStatus = fn
	}
}

// WithContext sets the parent context of every session. Cancelling it tears
// down running sessions' streams.
func WithContext(ctx context.Context) ManagerOption {
	return func(m *Manager) {
		m.ctx = ctx
	}
}

// NewManager creates a manager that runs programs on backend and renders them
// to sink. A nil sink discards output.
func NewManager(backend Backend, sink OutputSink, opts ...ManagerOption) *Manager {
	if sink == nil {
		sink = Discard
	}
	m := &Manager{
		backend: backend,
		sink:    sink,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(m.ctx)
	m.input = &InputBridge{m: m}
	return m
}

// Input returns the manager's input bridge.
func (m *Manager) Input() *InputBridge {
	return m.input
}

// Current returns the current session, or nil before the first successful run.
// After a session ends it stays current until the next run replaces it.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// StartRun supersedes the current session and starts source on the service.
// On rejection the error (a *transport.RequestError for non-2xx answers) is
// reported to the sink and returned, and no session is installed.
func (m *Manager) StartRun(ctx context.Context, source string) (string, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.ctx.Err() != nil {
		return "", fmt.Errorf("manager closed: %w", m.ctx.Err())
	}

	previousID := ""
	if prev := m.Current(); prev != nil {
		previousID = prev.id
		m.supersede(prev)
	}
	m.sink.Clear()

	id, err := m.backend.Run(ctx, source, previousID)
	if err != nil {
		sessionLog.Warn("run_rejected",
			slog.String("previous", previousID),
			slog.String("error", err.Error()))
		m.sink.Append(errorLine(err.Error()))
		return "", err
	}

	s := newSession(m.ctx, id)
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	sessionLog.Info("run_started",
		slog.String("session", id),
		slog.String("previous", previousID))
	m.notify(s, StatusRunning)

	m.wg.Add(1)
	go m.consume(s)
	return id, nil
}

// Cancel stops the current session on user request.
func (m *Manager) Cancel() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	s := m.Current()
	if s == nil {
		return ErrNoSession
	}

	s.gate.Lock()
	defer s.gate.Unlock()
	if s.superseded || s.Status().Terminal() {
		return nil
	}
	m.finish(s, StatusCancelled)
	m.sink.Append(Line{Kind: LineNotice, Text: NoticeCancelled})
	sessionLog.Info("run_cancelled", slog.String("session", s.id))
	return nil
}

// Close tears down the current session without notices and waits for its
// consumer to stop. The manager cannot start runs afterwards.
func (m *Manager) Close() {
	m.lifecycle.Lock()
	if s := m.Current(); s != nil {
		m.supersede(s)
	}
	m.cancel()
	m.lifecycle.Unlock()

	m.wg.Wait()
}

// Teardown ends s: a session that has not finished yet becomes Cancelled,
// without a notice. Its stream is closed and its input listener detached. It
// is safe to call any number of times from any goroutine.
func (m *Manager) Teardown(s *Session) {
	s.gate.Lock()
	defer s.gate.Unlock()
	if !s.Status().Terminal() {
		m.finish(s, StatusCancelled)
	}
	m.teardown(s)
}

// teardown releases s's stream and listener exactly once.
func (m *Manager) teardown(s *Session) {
	s.teardownOnce.Do(func() {
		s.closeStream()
		m.input.DetachFrom(s)
		sessionLog.Debug("session_torn_down",
			slog.String("session", s.id),
			slog.String("status", s.Status().String()))
	})
}

// supersede stops s from writing to the sink and tears it down.
func (m *Manager) supersede(s *Session) {
	s.gate.Lock()
	defer s.gate.Unlock()
	s.superseded = true
	if !s.Status().Terminal() {
		m.finish(s, StatusCancelled)
	}
	m.teardown(s)
}

// finish moves s to a terminal status, hides a reserved input area and tears s
// down. Called with s.gate held.
func (m *Manager) finish(s *Session, st Status) {
	s.setStatus(st)
	m.notify(s, st)
	m.releaseInput(s)
	m.teardown(s)
}

func (m *Manager) releaseInput(s *Session) {
	if s.inputReserved {
		s.inputReserved = false
		m.sink.ReleaseInput()
	}
}

func (m *Manager) notify(s *Session, st Status) {
	if m.onStatus != nil {
		m.onStatus(s.id, st)
	}
}

// consume reads s's stream until a terminal event, a transport failure or
// teardown.
func (m *Manager) consume(s *Session) {
	defer m.wg.Done()
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			sessionLog.Error("consumer_panic",
				slog.String("session", s.id),
				slog.Any("panic", r))
			m.Teardown(s)
		}
	}()

	stream, err := m.backend.OpenStream(s.ctx, s.id)
	if err != nil {
		m.connectionLost(s, err)
		return
	}
	if !s.attach(stream) {
		_ = stream.Close()
		return
	}

	for {
		events, err := stream.Next()
		if err != nil {
			m.connectionLost(s, err)
			return
		}
		if m.apply(s, events) {
			return
		}
	}
}

// apply handles the events of one stream message. It reports whether the
// consumer should stop.
func (m *Manager) apply(s *Session, events []transport.Event) bool {
	s.gate.Lock()
	defer s.gate.Unlock()

	for _, ev := range events {
		if s.superseded || s.Status().Terminal() {
			return true
		}

		switch ev.Kind {
		case transport.EventOutput:
			if s.Status() == StatusWaitingForInput {
				s.setStatus(StatusRunning)
				m.notify(s, StatusRunning)
			}
			m.releaseInput(s)
			cleared, text := splitClear(ev.Text)
			if cleared {
				m.sink.Clear()
			}
			if text != "" {
				m.sink.Append(Line{Kind: LineOutput, Text: text})
			}

		case transport.EventWaitingForInput:
			if s.Status() != StatusWaitingForInput {
				s.waits.Add(1)
				s.setStatus(StatusWaitingForInput)
				m.notify(s, StatusWaitingForInput)
			}
			if !s.inputReserved {
				s.inputReserved = true
				m.sink.ReserveInput()
			}
			m.input.Bind(s)

		case transport.EventError:
			sessionLog.Info("run_failed",
				slog.String("session", s.id),
				slog.String("error", ev.Text))
			m.finish(s, StatusErrored)
			m.sink.Append(errorLine(ev.Text))
			return true

		case transport.EventDone:
			sessionLog.Info("run_completed", slog.String("session", s.id))
			m.finish(s, StatusCompleted)
			m.sink.Append(Line{Kind: LineExit, Text: NoticeExited, Class: ClassSuccess})
			return true
		}
	}
	return false
}

// connectionLost ends s after its stream failed. Nothing is reported when the
// session was already torn down on purpose.
func (m *Manager) connectionLost(s *Session, err error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	if s.superseded || s.Status().Terminal() || s.ctx.Err() != nil ||
		errors.Is(err, transport.ErrStreamClosed) {
		m.teardown(s)
		return
	}

	sessionLog.Warn("stream_lost",
		slog.String("session", s.id),
		slog.String("error", err.Error()))
	m.finish(s, StatusCancelled)
	m.sink.Append(Line{Kind: LineNotice, Text: NoticeConnectionError})
}
