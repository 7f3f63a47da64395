package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/play-deck/internal/transport"
	"github.com/asheshgoplani/play-deck/internal/transport/transporttest"
)

const waitTimeout = 5 * time.Second

// recordingSink logs every sink call as a short string.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSink) Append(l Line) { r.add(l.Kind.String() + ":" + l.Text) }
func (r *recordingSink) Clear()        { r.add("clear") }
func (r *recordingSink) ReserveInput() { r.add("reserve") }
func (r *recordingSink) ReleaseInput() { r.add("release") }

func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingSink) Count(ev string) int {
	n := 0
	for _, e := range r.Events() {
		if e == ev {
			n++
		}
	}
	return n
}

type fixture struct {
	srv  *transporttest.Server
	sink *recordingSink
	tr   *Transcript
	m    *Manager
}

func newFixture(t *testing.T, opts ...ManagerOption) *fixture {
	t.Helper()
	srv := transporttest.NewServer(t)
	client, err := transport.NewClient(srv.URL, transport.WithTimeout(waitTimeout))
	require.NoError(t, err)

	sink := &recordingSink{}
	tr := NewTranscript(sink, 0)
	m := NewManager(client, tr, opts...)
	t.Cleanup(m.Close)
	return &fixture{srv: srv, sink: sink, tr: tr, m: m}
}

func (f *fixture) start(t *testing.T, source string) *Session {
	t.Helper()
	id, err := f.m.StartRun(context.Background(), source)
	require.NoError(t, err)
	s := f.m.Current()
	require.NotNil(t, s)
	require.Equal(t, id, s.ID())
	return s
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitStatus(t *testing.T, s *Session, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Status() == want },
		waitTimeout, 5*time.Millisecond, "session %s never reached %s", s.ID(), want)
}

// waitListening waits until s is waiting for input and the bridge is bound
// to it.
func waitListening(t *testing.T, f *fixture, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool { return f.m.Input().Bound() == s.ID() },
		waitTimeout, 5*time.Millisecond, "listener never bound to %s", s.ID())
	require.Equal(t, StatusWaitingForInput, s.Status())
}

func TestManager_OutputOrdering(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.Emit(s.ID(), transport.Output("a"), transport.Output("b"), transport.Done())
	waitClosed(t, s.Done(), "session end")

	assert.Equal(t, []string{
		"clear",
		"output:a",
		"output:b",
		"exit:" + NoticeExited,
	}, f.sink.Events())
	assert.Equal(t, StatusCompleted, s.Status())

	lines := f.tr.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, ClassSuccess, lines[2].Class)
}

func TestManager_CombinedMessage(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.EmitMessage(s.ID(), transport.Message{Output: "last words", Done: true})
	waitClosed(t, s.Done(), "session end")

	assert.Equal(t, []string{"clear", "output:last words", "exit:" + NoticeExited}, f.sink.Events())
}

func TestManager_ClearMarker(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.Emit(s.ID(),
		transport.Output("x"),
		transport.Output("\fY"),
		transport.Output("frame\f\fZ"),
		transport.Output("\f"),
		transport.Output("W"),
	)
	f.srv.Drop(s.ID())
	waitClosed(t, s.Done(), "session end")

	lines := f.tr.Lines()
	require.NotEmpty(t, lines)
	assert.Equal(t, Line{Kind: LineOutput, Text: "W"}, lines[0])
	assert.NotContains(t, f.sink.Events(), "output:xY")
	assert.Equal(t, 4, f.sink.Count("clear")) // run start + three markers
}

func TestManager_SupersedeTearsDownPrevious(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, "first")
	waitClosed(t, f.srv.Connected(first.ID()), "first stream")

	f.srv.Emit(first.ID(), transport.WaitingForInput())
	waitListening(t, f, first)
	require.True(t, first.InputListenerActive())

	second := f.start(t, "second")

	// The old run is gone before the new one is attached.
	waitClosed(t, first.Done(), "first session end")
	waitClosed(t, f.srv.Disconnected(first.ID()), "first stream close")
	assert.Equal(t, StatusCancelled, first.Status())
	assert.False(t, first.InputListenerActive())
	assert.Same(t, second, f.m.Current())

	runs := f.srv.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "", runs[0].PreviousSession)
	assert.Equal(t, first.ID(), runs[1].PreviousSession)

	// No notices for a superseded run.
	assert.Zero(t, f.sink.Count("notice:"+NoticeConnectionError))
	assert.Zero(t, f.sink.Count("notice:"+NoticeCancelled))

	f.srv.Emit(second.ID(), transport.Output("fresh"), transport.Done())
	waitClosed(t, second.Done(), "second session end")
	assert.Equal(t, []Line{
		{Kind: LineOutput, Text: "fresh"},
		{Kind: LineExit, Text: NoticeExited, Class: ClassSuccess},
	}, f.tr.Lines())
}

func TestManager_SingleLiveSession(t *testing.T) {
	f := newFixture(t)

	var sessions []*Session
	for i := 0; i < 5; i++ {
		s := f.start(t, fmt.Sprintf("run %d", i))
		// Every earlier run is torn down and no longer listening.
		for _, prev := range sessions {
			waitClosed(t, prev.Done(), "superseded session "+prev.ID())
			assert.False(t, prev.InputListenerActive())
		}
		sessions = append(sessions, s)
	}

	for _, s := range sessions[:4] {
		assert.Equal(t, StatusCancelled, s.Status())
	}
	assert.Equal(t, StatusRunning, sessions[4].Status())
}

func TestManager_TeardownIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.Emit(s.ID(), transport.Done())
	waitClosed(t, s.Done(), "session end")

	f.m.Teardown(s)
	f.m.Teardown(s)
	require.NoError(t, f.m.Cancel())
	require.NoError(t, f.m.Cancel())

	assert.Equal(t, 1, f.sink.Count("exit:"+NoticeExited))
	assert.Zero(t, f.sink.Count("notice:"+NoticeCancelled))
	assert.Zero(t, f.sink.Count("notice:"+NoticeConnectionError))
	assert.Equal(t, StatusCompleted, s.Status())
}

func TestManager_ConcurrentTeardown(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")
	waitClosed(t, f.srv.Connected(s.ID()), "stream")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.m.Teardown(s)
		}()
	}
	wg.Wait()
	// Too late: the session is already over.
	f.srv.Emit(s.ID(), transport.Done())

	waitClosed(t, s.Done(), "session end")
	assert.Equal(t, StatusCancelled, s.Status())
	assert.Equal(t, []string{"clear"}, f.sink.Events())
}

func TestManager_TeardownLiveSession(t *testing.T) {
	var (
		mu       sync.Mutex
		statuses []Status
	)
	f := newFixture(t, WithStatusFunc(func(_ string, st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	}))
	s := f.start(t, "package main")
	f.srv.Emit(s.ID(), transport.Output("Name? "), transport.WaitingForInput())
	waitListening(t, f, s)

	f.m.Teardown(s)
	waitClosed(t, s.Done(), "session end")

	assert.True(t, s.Status().Terminal())
	assert.Equal(t, StatusCancelled, s.Status())
	assert.False(t, s.InputListenerActive())
	assert.Empty(t, f.m.Input().Bound())
	assert.Equal(t, 1, f.sink.Count("release"))
	assert.Zero(t, f.sink.Count("notice:"+NoticeCancelled))

	mu.Lock()
	assert.Equal(t, []Status{StatusRunning, StatusWaitingForInput, StatusCancelled}, statuses)
	mu.Unlock()

	// A terminal session ignores later input and cancels.
	require.NoError(t, f.m.Input().Submit(context.Background(), "Bob"))
	require.NoError(t, f.m.Cancel())
	assert.Empty(t, f.srv.Inputs())
	assert.Equal(t, StatusCancelled, s.Status())
}

func TestSession_InputRequests(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")
	assert.Zero(t, s.InputRequests())

	f.srv.Emit(s.ID(), transport.Output("Name? "), transport.WaitingForInput(), transport.WaitingForInput())
	waitListening(t, f, s)
	require.Eventually(t, func() bool { return f.sink.Count("reserve") == 1 },
		waitTimeout, 5*time.Millisecond)
	assert.Equal(t, uint64(1), s.InputRequests(), "a repeated waiting event is the same request")

	f.srv.Emit(s.ID(), transport.Output("Color? "), transport.WaitingForInput())
	require.Eventually(t, func() bool { return f.sink.Count("reserve") == 2 },
		waitTimeout, 5*time.Millisecond)
	assert.Equal(t, uint64(2), s.InputRequests())
}

func TestManager_RunRejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		class Class
	}{
		{"invalid code", "invalid or potentially unsafe Go code: import \"os/exec\"", ClassInvalid},
		{"generic", "compile error: undefined: x", ClassError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.srv.RejectRuns(http.StatusBadRequest, tt.body)

			_, err := f.m.StartRun(context.Background(), "package main")
			var reqErr *transport.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.body, reqErr.Body)
			assert.Nil(t, f.m.Current())

			assert.Equal(t, []Line{{Kind: LineError, Text: tt.body, Class: tt.class}}, f.tr.Lines())
		})
	}
}

func TestManager_RunRejectedKeepsPreviousID(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, "first")

	f.srv.RejectRuns(http.StatusInternalServerError, "busy")
	_, err := f.m.StartRun(context.Background(), "second")
	require.Error(t, err)

	waitClosed(t, first.Done(), "first session end")
	assert.Same(t, first, f.m.Current())
	assert.Equal(t, StatusCancelled, first.Status())

	runs := f.srv.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID(), runs[1].PreviousSession)
}

func TestManager_StreamError(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.Emit(s.ID(), transport.Output("partial\n"), transport.Failure("panic: runtime error"))
	waitClosed(t, s.Done(), "session end")

	assert.Equal(t, StatusErrored, s.Status())
	assert.Equal(t, []Line{
		{Kind: LineOutput, Text: "partial\n"},
		{Kind: LineError, Text: "panic: runtime error", Class: ClassError},
	}, f.tr.Lines())
}

func TestManager_ConnectionDrop(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "package main")

	f.srv.Emit(s.ID(), transport.Output("tick\n"), transport.WaitingForInput())
	waitStatus(t, s, StatusWaitingForInput)
	f.srv.Drop(s.ID())
	waitClosed(t, s.Done(), "session end")

	assert.Equal(t, StatusCancelled, s.Status())
	assert.False(t, s.InputListenerActive())
	assert.Equal(t, []string{
		"clear",
		"output:tick\n",
		"reserve",
		"release",
		"notice:" + NoticeConnectionError,
	}, f.sink.Events())
}

func TestManager_Cancel(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.m.Cancel(), ErrNoSession)

	s := f.start(t, "for {}")
	waitClosed(t, f.srv.Connected(s.ID()), "stream")

	require.NoError(t, f.m.Cancel())
	waitClosed(t, s.Done(), "session end")
	waitClosed(t, f.srv.Disconnected(s.ID()), "stream close")

	assert.Equal(t, StatusCancelled, s.Status())
	assert.Equal(t, 1, f.sink.Count("notice:"+NoticeCancelled))
	assert.Zero(t, f.sink.Count("notice:"+NoticeConnectionError))
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "for {}")
	waitClosed(t, f.srv.Connected(s.ID()), "stream")

	f.m.Close()

	assert.Equal(t, StatusCancelled, s.Status())
	waitClosed(t, s.Done(), "session end")
	assert.Equal(t, []string{"clear"}, f.sink.Events())

	_, err := f.m.StartRun(context.Background(), "again")
	require.ErrorIs(t, err, context.Canceled)
}

func TestManager_StatusFunc(t *testing.T) {
	var mu sync.Mutex
	var got []string
	f := newFixture(t, WithStatusFunc(func(id string, st Status) {
		mu.Lock()
		got = append(got, id+":"+st.String())
		mu.Unlock()
	}))

	s := f.start(t, "package main")
	f.srv.Emit(s.ID(), transport.WaitingForInput(), transport.Output("x"), transport.Done())
	waitClosed(t, s.Done(), "session end")

	mu.Lock()
	defer mu.Unlock()
	id := s.ID()
	assert.Equal(t, []string{
		id + ":running",
		id + ":waiting",
		id + ":running",
		id + ":completed",
	}, got)
}

// blockingBackend never answers OpenStream until its context ends.
type blockingBackend struct {
	opened chan struct{}
}

func (b *blockingBackend) Run(ctx context.Context, code, previousID string) (string, error) {
	return "blocked", nil
}

func (b *blockingBackend) OpenStream(ctx context.Context, id string) (*transport.Stream, error) {
	close(b.opened)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingBackend) SendInput(ctx context.Context, id, input string) error {
	return errors.New("not connected")
}

func TestManager_SupersedeWhileOpening(t *testing.T) {
	backend := &blockingBackend{opened: make(chan struct{})}
	sink := &recordingSink{}
	m := NewManager(backend, sink)
	defer m.Close()

	_, err := m.StartRun(context.Background(), "x")
	require.NoError(t, err)
	s := m.Current()
	waitClosed(t, backend.opened, "open")

	m.Teardown(s)
	waitClosed(t, s.Done(), "session end")
	assert.Equal(t, []string{"clear"}, sink.Events())
	assert.Equal(t, StatusCancelled, s.Status())
}
