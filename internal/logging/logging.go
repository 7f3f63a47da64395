// Package logging provides component-scoped structured loggers.
//
// Loggers are handed out with ForComponent at package init time, before the
// log destination is known. They resolve the active handler on every call, so
// Init can be invoked later (once flags and config are parsed) and every
// existing logger starts writing to the new destination.
//
// Log lines are key=value text, one event per line, with snake_case event
// names:
//
//	time=... level=INFO component=session msg=run_started session=42
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Component names a subsystem. It is attached to every record as "component".
type Component string

const (
	CompSession   Component = "session"
	CompInput     Component = "input"
	CompTransport Component = "transport"
	CompReformat  Component = "reformat"
	CompWatch     Component = "watch"
	CompConfig    Component = "config"
	CompUI        Component = "ui"
	CompCLI       Component = "cli"
	CompFS        Component = "fs"
)

type handlerBox struct{ h slog.Handler }

var (
	active  atomic.Value // handlerBox
	fileMu  sync.Mutex
	logFile *os.File
)

func init() {
	active.Store(handlerBox{h: slog.DiscardHandler})
}

// ForComponent returns a logger tagged with the component name.
func ForComponent(c Component) *slog.Logger {
	return slog.New(&dynamicHandler{}).With(slog.String("component", string(c)))
}

// Init routes all component loggers to w at the given minimum level.
func Init(w io.Writer, level slog.Level) {
	active.Store(handlerBox{h: slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})})
}

// InitFile opens path for appending and routes all logging to it, including
// the standard library logger (via tea.LogToFile, so bubbletea's own debug
// output lands in the same file). When debug is false logging stays disabled
// and no file is created. The returned cleanup closes the file.
func InitFile(path string, debug bool) (func(), error) {
	if !debug {
		Disable()
		return func() {}, nil
	}

	f, err := tea.LogToFile(path, "")
	if err != nil {
		return nil, err
	}

	fileMu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	fileMu.Unlock()

	Init(f, slog.LevelDebug)

	return func() {
		Disable()
		fileMu.Lock()
		defer fileMu.Unlock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
	}, nil
}

// Disable drops all log records.
func Disable() {
	active.Store(handlerBox{h: slog.DiscardHandler})
}

func current() slog.Handler {
	return active.Load().(handlerBox).h
}

// dynamicHandler replays WithAttrs/WithGroup calls onto whichever handler is
// active when a record is emitted.
type dynamicHandler struct {
	ops []func(slog.Handler) slog.Handler
}

func (d *dynamicHandler) resolve() slog.Handler {
	h := current()
	for _, op := range d.ops {
		h = op(h)
	}
	return h
}

func (d *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return current().Enabled(ctx, level)
}

func (d *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	return d.resolve().Handle(ctx, r)
}

func (d *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return d.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (d *dynamicHandler) WithGroup(name string) slog.Handler {
	return d.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (d *dynamicHandler) with(op func(slog.Handler) slog.Handler) *dynamicHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(d.ops), len(d.ops)+1)
	copy(ops, d.ops)
	return &dynamicHandler{ops: append(ops, op)}
}
