package transport

import (
	"log/slog"
	"os"
	"testing"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

func TestMain(m *testing.M) {
	if os.Getenv("PLAYDECK_TEST_LOGS") != "" {
		logging.Init(os.Stderr, slog.LevelDebug)
	}
	os.Exit(m.Run())
}
