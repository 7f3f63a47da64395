package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/asheshgoplani/play-deck/internal/transport"
)

// Session is one remote run. It is created by Manager.StartRun and ends in
// Completed, Errored or Cancelled, at which point it is torn down exactly once.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
	stream *transport.Stream

	// gate serializes every sink write made on behalf of this session.
	// Fields below are guarded by it.
	gate          sync.Mutex
	superseded    bool
	inputReserved bool

	listening    atomic.Bool
	waits        atomic.Uint64
	teardownOnce sync.Once
}

func newSession(parent context.Context, id string) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusRunning,
	}
}

// ID returns the id assigned by the service.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed once the session has ended and nothing more will be written
// to the sink on its behalf.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// InputRequests counts how many times s has started waiting for input. A
// repeated waiting event without output in between is the same request.
func (s *Session) InputRequests() uint64 {
	return s.waits.Load()
}

// InputListenerActive reports whether the input bridge is bound to s.
func (s *Session) InputListenerActive() bool {
	return s.listening.Load()
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// attach hands the open stream to the session. It returns false when the
// session was torn down while the stream was being opened.
func (s *Session) attach(stream *transport.Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.stream = stream
	return true
}

// closeStream cancels the session context and closes the stream, if any.
func (s *Session) closeStream() {
	s.cancel()
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
}
