package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/play-deck/internal/session"
)

// flashTTL is how long a status-bar message stays up.
const flashTTL = 5 * time.Second

// StatusManager tracks what the status bar shows: the current session and its
// status, and a transient message.
//
// Embedded in Home for field access (same pattern as OutputManager).
type StatusManager struct {
	sessionID  string
	status     session.Status
	hasSession bool
	startedAt  time.Time
	endedAt    time.Time

	flash      string
	flashClass session.Class
	flashAt    time.Time
}

// setStatus records a status change reported by the manager.
func (h *Home) setStatus(id string, st session.Status) {
	if !h.hasSession || id != h.sessionID {
		h.sessionID = id
		h.hasSession = true
		h.startedAt = h.now()
		h.endedAt = time.Time{}
	}
	h.status = st
	if st.Terminal() && h.endedAt.IsZero() {
		h.endedAt = h.now()
	}
}

// running reports whether the current session can still produce output.
func (h *Home) running() bool {
	return h.hasSession && !h.status.Terminal()
}

func (h *Home) setFlash(text string, class session.Class) {
	h.flash = text
	h.flashClass = class
	h.flashAt = h.now()
}

func (h *Home) flashActive() bool {
	return h.flash != "" && h.now().Sub(h.flashAt) < flashTTL
}

// statusText is the plain status-bar text, truncated to width cells.
func (h *Home) statusText(width int) string {
	var parts []string
	if h.hasSession {
		end := h.endedAt
		if end.IsZero() {
			end = h.now()
		}
		elapsed := end.Sub(h.startedAt).Truncate(100 * time.Millisecond)
		parts = append(parts, fmt.Sprintf("#%s %s %s", h.sessionID, h.status, elapsed))
	} else {
		parts = append(parts, "idle")
	}
	if h.watchPath != "" {
		mode := "watch"
		if h.autoRun {
			mode = "watch+run"
		}
		parts = append(parts, mode+" "+h.watchPath)
	}
	if h.flashActive() {
		parts = append(parts, h.flash)
	}

	text := strings.Join(parts, " · ")
	if width > 0 && runewidth.StringWidth(text) > width {
		text = runewidth.Truncate(text, width, "…")
	}
	return text
}

// renderStatusBar styles statusText. The flash takes its class color and the
// session part its status color.
func (h *Home) renderStatusBar() string {
	text := h.statusText(h.width)
	style := h.styles.StatusBar
	if h.flashActive() && h.flashClass != session.ClassNone {
		style = h.styles.classStyle(h.flashClass)
	} else if h.hasSession {
		if st, ok := h.styles.StatusColors[h.status]; ok {
			style = st
		}
	}
	return style.Render(text)
}
