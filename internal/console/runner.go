package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/play-deck/internal/logging"
	"github.com/asheshgoplani/play-deck/internal/session"
)

var consoleLog = logging.ForComponent(logging.CompCLI)

// DefaultPollInterval is how often queued input is retried while the program
// is not waiting for it.
const DefaultPollInterval = 50 * time.Millisecond

// Result is the outcome of one run.
type Result struct {
	ID     string
	Status session.Status
}

// ExitCode maps the final status to a process exit code.
func (r Result) ExitCode() int {
	if r.Status == session.StatusCompleted {
		return 0
	}
	return 1
}

// Runner drives one run at a time from start to a terminal status.
type Runner struct {
	manager *session.Manager
	ready   <-chan struct{}
	poll    time.Duration
}

// NewRunner creates a runner for m. sink, when non-nil, must be the sink m
// writes to; its Ready signal makes queued input go out without waiting for
// the next poll.
func NewRunner(m *session.Manager, sink *Sink) *Runner {
	r := &Runner{manager: m, poll: DefaultPollInterval}
	if sink != nil {
		r.ready = sink.Ready()
	}
	return r
}

// Run starts source and blocks until the run ends. Lines read from in are
// submitted in order each time the program waits for input; in may be nil.
// Cancelling ctx cancels the run and returns ctx's error.
func (r *Runner) Run(ctx context.Context, source string, in io.Reader) (Result, error) {
	id, err := r.manager.StartRun(ctx, source)
	if err != nil {
		return Result{Status: session.StatusErrored}, err
	}
	s := r.manager.Current()
	consoleLog.Info("console_run", slog.String("session", id))

	stop := make(chan struct{})
	defer close(stop)
	lines := readLines(in, stop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pump(gctx, s, lines)
	})
	g.Go(func() error {
		select {
		case <-s.Done():
			return nil
		case <-ctx.Done():
			if err := r.manager.Cancel(); err != nil && !errors.Is(err, session.ErrNoSession) {
				consoleLog.Warn("console_cancel_failed", slog.String("error", err.Error()))
			}
			<-s.Done()
			return ctx.Err()
		}
	})

	err = g.Wait()
	return Result{ID: id, Status: s.Status()}, err
}

// pump relays queued lines to s, one per input request: after a line is
// sent, the next one waits until the program asks again.
func (r *Runner) pump(ctx context.Context, s *session.Session, lines <-chan string) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	var (
		queue    []string
		answered uint64
	)
	for {
		select {
		case <-s.Done():
			return nil
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			queue = append(queue, line)
		case <-r.ready:
		case <-ticker.C:
		}

		for len(queue) > 0 && queue[0] == "" {
			queue = queue[1:]
		}
		if len(queue) == 0 {
			continue
		}
		request := s.InputRequests()
		if request <= answered || s.Status() != session.StatusWaitingForInput || !s.InputListenerActive() {
			continue
		}

		line := queue[0]
		queue = queue[1:]
		answered = request
		if err := r.manager.Input().Submit(ctx, line); err != nil {
			// The session ended with the error; the sink already shows it.
			consoleLog.Warn("console_input_failed",
				slog.String("session", s.ID()),
				slog.String("error", err.Error()))
			return nil
		}
	}
}

// readLines scans in on its own goroutine. A blocked read cannot be
// interrupted, so the goroutine is left behind when stop closes first.
func readLines(in io.Reader, stop <-chan struct{}) <-chan string {
	if in == nil {
		return nil
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-stop:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			consoleLog.Debug("console_read_failed", slog.String("error", err.Error()))
		}
	}()
	return lines
}
