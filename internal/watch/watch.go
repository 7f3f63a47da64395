// Package watch reports edits to a source file so it can be re-run on save.
// Bursts of file events are debounced, writes that leave the content unchanged
// are ignored, and deliveries are rate limited.
package watch

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// Change is a new version of the watched file.
type Change struct {
	Path   string
	Source string
	At     time.Time
}

// Config holds watcher options.
type Config struct {
	Path string
	// Debounce is how long the file must stay quiet before it is read.
	Debounce time.Duration
	// MinInterval is the minimum time between two deliveries. Zero disables
	// rate limiting.
	MinInterval time.Duration
}

// Watcher delivers Changes for one file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	limiter  *rate.Limiter

	changes  chan Change
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	lastSum [sha256.Size]byte
	hasSum  bool
}

// New creates a watcher for cfg.Path. The file's current content is the
// baseline: only later edits are reported.
func New(cfg Config) (*Watcher, error) {
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	w := &Watcher{
		fsw:      fsw,
		path:     path,
		debounce: cfg.Debounce,
		limiter:  rate.NewLimiter(limit, 1),
		changes:  make(chan Change, 1),
		stopCh:   make(chan struct{}),
	}
	if data, err := os.ReadFile(path); err == nil {
		w.lastSum = sha256.Sum256(data)
		w.hasSum = true
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The returned channel holds at most one pending
// Change; a newer version replaces an unread one.
func (w *Watcher) Start() (<-chan Change, error) {
	// Watch the directory: editors often save by renaming a temp file over
	// the original, which drops a watch on the file itself.
	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()

	watchLog.Info("watch_started", slog.String("path", w.path))
	return w.changes, nil
}

// Stop terminates the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fsw.Close()
		w.wg.Wait()
		watchLog.Info("watch_stopped", slog.String("path", w.path))
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			watchLog.Error("watch_loop_panic", slog.Any("panic", r))
		}
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	pending := false

	reset := func(d time.Duration) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			pending = true
			reset(w.debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			r := w.limiter.Reserve()
			if d := r.Delay(); d > 0 {
				r.Cancel()
				reset(d)
				continue
			}
			pending = false
			if !w.emit() {
				// Nothing new was delivered, so the token is not spent.
				r.Cancel()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("error", err.Error()))

		case <-w.stopCh:
			return
		}
	}
}

// emit reads the file and delivers it if the content changed.
func (w *Watcher) emit() bool {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Mid-save or deleted; a later event will bring it back.
		watchLog.Debug("watch_read_failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return false
	}

	sum := sha256.Sum256(data)
	if w.hasSum && sum == w.lastSum {
		return false
	}
	w.lastSum = sum
	w.hasSum = true

	change := Change{Path: w.path, Source: string(data), At: time.Now()}
	// Replace an unread change with the newer one.
	select {
	case <-w.changes:
	default:
	}
	w.changes <- change

	watchLog.Debug("watch_change", slog.String("path", w.path), slog.Int("bytes", len(data)))
	return true
}

// isRelevantEvent reports whether event touches the watched file.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.path)
}
