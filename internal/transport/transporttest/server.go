// Package transporttest provides an in-process playground service for tests.
// It speaks the same wire protocol as the real service but runs nothing:
// tests script each session's output with Emit.
package transporttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/asheshgoplani/play-deck/internal/transport"
)

// RunRequest records one POST /run.
type RunRequest struct {
	Code            string
	PreviousSession string
	RequestID       string
}

// InputRequest records one POST /send-input.
type InputRequest struct {
	SessionID string
	Input     string
}

type rejection struct {
	status int
	body   string
}

type fakeSession struct {
	id           string
	msgs         chan transport.Message
	drop         chan struct{}
	dropOnce     sync.Once
	connected    chan struct{}
	connectOnce  sync.Once
	disconnected chan struct{}
	discOnce     sync.Once
}

// Server is a scripted playground service.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    uint64
	sessions  map[string]*fakeSession
	runs      []RunRequest
	inputs    []InputRequest
	formats   []string
	runReject *rejection
	inReject  *rejection
	fmtReject *rejection
	unhealthy int

	// OnRun is called after a run is accepted, with the new session id.
	OnRun func(id, code string)
	// OnInput is called after an input line is accepted.
	OnInput func(id, input string)
	// FormatFunc produces /save responses. Defaults to returning code unchanged.
	FormatFunc func(code string) string
}

// NewServer starts a fake service. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{sessions: make(map[string]*fakeSession)}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/program-output", s.handleOutput)
	mux.HandleFunc("/send-input", s.handleInput)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/health", s.handleHealth)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Close drops every open stream and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, fs := range s.sessions {
		fs.dropOnce.Do(func() { close(fs.drop) })
	}
	s.mu.Unlock()
	s.Server.Close()
}

// Emit queues events on a session's stream, one message per event.
func (s *Server) Emit(id string, events ...transport.Event) {
	fs := s.session(id)
	for _, ev := range events {
		fs.msgs <- transport.MessageFor(ev)
	}
}

// EmitMessage queues a raw message, which may combine several fields.
func (s *Server) EmitMessage(id string, msg transport.Message) {
	s.session(id).msgs <- msg
}

// Drop ends a session's stream without a terminal event, like a lost
// connection. Messages emitted before Drop are still delivered.
func (s *Server) Drop(id string) {
	fs := s.session(id)
	fs.dropOnce.Do(func() { close(fs.drop) })
}

// Connected is closed once a client has opened the session's stream.
func (s *Server) Connected(id string) <-chan struct{} {
	return s.session(id).connected
}

// Disconnected is closed when the session's stream handler returns.
func (s *Server) Disconnected(id string) <-chan struct{} {
	return s.session(id).disconnected
}

// RejectRuns makes subsequent /run calls fail.
func (s *Server) RejectRuns(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runReject = &rejection{status: status, body: body}
}

// RejectInput makes subsequent /send-input calls fail.
func (s *Server) RejectInput(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inReject = &rejection{status: status, body: body}
}

// RejectFormat makes subsequent /save calls fail with body as-is.
func (s *Server) RejectFormat(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fmtReject = &rejection{status: status, body: body}
}

// FailHealth makes the next n health checks fail.
func (s *Server) FailHealth(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unhealthy = n
}

// Runs returns the recorded /run requests.
func (s *Server) Runs() []RunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRequest(nil), s.runs...)
}

// Inputs returns the recorded /send-input requests.
func (s *Server) Inputs() []InputRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InputRequest(nil), s.inputs...)
}

// Formats returns the code bodies received by /save.
func (s *Server) Formats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.formats...)
}

func (s *Server) session(id string) *fakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.sessions[id]
	if !ok {
		fs = &fakeSession{
			id:           id,
			msgs:         make(chan transport.Message, 256),
			drop:         make(chan struct{}),
			connected:    make(chan struct{}),
			disconnected: make(chan struct{}),
		}
		s.sessions[id] = fs
	}
	return fs
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Error decoding JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.runs = append(s.runs, RunRequest{
		Code:            body.Code,
		PreviousSession: r.Header.Get(transport.HeaderPreviousSession),
		RequestID:       r.Header.Get(transport.HeaderRequestID),
	})
	if rej := s.runReject; rej != nil {
		s.mu.Unlock()
		http.Error(w, rej.body, rej.status)
		return
	}
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	sid := strconv.FormatUint(id, 10)
	s.session(sid)
	if s.OnRun != nil {
		s.OnRun(sid, body.Code)
	}

	// Numeric ids, like the reference service.
	_ = json.NewEncoder(w).Encode(map[string]uint64{"sessionId": id})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	s.mu.Lock()
	fs, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	fs.connectOnce.Do(func() { close(fs.connected) })
	defer fs.discOnce.Do(func() { close(fs.disconnected) })

	for {
		select {
		case msg := <-fs.msgs:
			data, _ := json.Marshal(msg)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if msg.Done || msg.Error != "" {
				return
			}
		case <-fs.drop:
			// Deliver what was queued before the drop.
			for {
				select {
				case msg := <-fs.msgs:
					data, _ := json.Marshal(msg)
					fmt.Fprintf(w, "data: %s\n\n", data)
					flusher.Flush()
				default:
					return
				}
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	var body struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Error decoding JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if rej := s.inReject; rej != nil {
		s.mu.Unlock()
		http.Error(w, rej.body, rej.status)
		return
	}
	_, ok := s.sessions[id]
	if ok {
		s.inputs = append(s.inputs, InputRequest{SessionID: id, Input: body.Input})
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if s.OnInput != nil {
		s.OnInput(id, body.Input)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Error decoding JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.formats = append(s.formats, body.Code)
	rej := s.fmtReject
	s.mu.Unlock()

	if rej != nil {
		w.WriteHeader(rej.status)
		_, _ = w.Write([]byte(rej.body))
		return
	}

	formatted := body.Code
	if s.FormatFunc != nil {
		formatted = s.FormatFunc(body.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"code": formatted})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.unhealthy > 0
	if fail {
		s.unhealthy--
	}
	s.mu.Unlock()

	if fail {
		http.Error(w, "Container not healthy", http.StatusServiceUnavailable)
		return
	}
	_, _ = fmt.Fprintln(w, "OK")
}
