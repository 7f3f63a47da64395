package ui

import (
	"log/slog"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

func TestMain(m *testing.M) {
	// Plain text so views can be compared as strings.
	lipgloss.SetColorProfile(termenv.Ascii)

	if os.Getenv("PLAYDECK_TEST_LOGS") != "" {
		logging.Init(os.Stderr, slog.LevelDebug)
	}
	os.Exit(m.Run())
}
