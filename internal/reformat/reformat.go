// Package reformat formats the editor buffer through the playground service
// and keeps the caret and selection on the same logical characters.
package reformat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/play-deck/internal/logging"
	"github.com/asheshgoplani/play-deck/internal/remap"
	"github.com/asheshgoplani/play-deck/internal/transport"
)

var reformatLog = logging.ForComponent(logging.CompReformat)

const (
	DefaultExpiration      = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute

	// CallTimeout bounds a shared format call. The call outlives the caller
	// that started it, so it cannot use that caller's deadline.
	CallTimeout = 30 * time.Second
)

// Formatter formats source text.
type Formatter interface {
	Format(ctx context.Context, code string) (string, error)
}

var _ Formatter = (*transport.Client)(nil)

// Buffer is a snapshot of the editor.
type Buffer struct {
	Text      string
	Cursor    remap.Position
	Selection *remap.Range // nil when nothing is selected
}

// Coordinator runs format round trips. Identical concurrent requests share
// one call, and results are remembered by content for a while.
type Coordinator struct {
	formatter Formatter
	group     singleflight.Group
	memo      *gocache.Cache
}

// NewCoordinator creates a coordinator with results cached for DefaultExpiration.
func NewCoordinator(f Formatter) *Coordinator {
	return NewCoordinatorWithExpiration(f, DefaultExpiration)
}

// NewCoordinatorWithExpiration creates a coordinator whose cached results
// expire after ttl. A ttl < 0 disables caching.
func NewCoordinatorWithExpiration(f Formatter, ttl time.Duration) *Coordinator {
	c := &Coordinator{formatter: f}
	if ttl >= 0 {
		c.memo = gocache.New(ttl, DefaultCleanupInterval)
	}
	return c
}

// Reformat formats buf.Text and remaps the caret and selection into the new
// text. On failure buf is returned unchanged along with the error.
func (c *Coordinator) Reformat(ctx context.Context, buf Buffer) (Buffer, error) {
	formatted, err := c.Format(ctx, buf.Text)
	if err != nil {
		return buf, err
	}

	out := Buffer{
		Text:   formatted,
		Cursor: remap.Remap(buf.Text, formatted, buf.Cursor),
	}
	if buf.Selection != nil {
		sel := remap.RemapRange(buf.Text, formatted, *buf.Selection)
		out.Selection = &sel
	}
	return out, nil
}

// Format returns the formatted form of code. Callers waiting on the same
// code share one call; cancelling ctx abandons only this caller's wait.
func (c *Coordinator) Format(ctx context.Context, code string) (string, error) {
	key := contentKey(code)
	if formatted, ok := c.cached(key); ok {
		reformatLog.Debug("format_cache_hit", slog.String("key", key[:12]))
		return formatted, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(shared, CallTimeout)
		defer cancel()
		start := time.Now()
		formatted, err := c.formatter.Format(callCtx, code)
		if err != nil {
			return "", err
		}
		c.remember(key, formatted)
		// Formatting is idempotent, so the output maps to itself.
		c.remember(contentKey(formatted), formatted)
		reformatLog.Debug("format_done",
			slog.String("key", key[:12]),
			slog.Int("bytes", len(formatted)),
			slog.Duration("elapsed", time.Since(start)))
		return formatted, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("format: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			reformatLog.Info("format_failed", slog.String("error", res.Err.Error()))
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Forget drops all cached results.
func (c *Coordinator) Forget() {
	if c.memo != nil {
		c.memo.Flush()
	}
}

func (c *Coordinator) cached(key string) (string, bool) {
	if c.memo == nil {
		return "", false
	}
	v, found := c.memo.Get(key)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		reformatLog.Error("format_cache_bad_type", slog.String("key", key[:12]))
		return "", false
	}
	return s, true
}

func (c *Coordinator) remember(key, formatted string) {
	if c.memo != nil {
		c.memo.SetDefault(key, formatted)
	}
}

func contentKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
