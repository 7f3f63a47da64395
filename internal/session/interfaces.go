package session

import (
	"context"

	"github.com/asheshgoplani/play-deck/internal/transport"
)

// Backend defines the playground operations a Manager needs.
// This enables testing against a scripted service without a real one.
type Backend interface {
	// Run starts code, superseding previousID (may be empty), and returns the
	// new session id.
	Run(ctx context.Context, code, previousID string) (string, error)

	// OpenStream opens the output stream of a session. Cancelling ctx must
	// close it.
	OpenStream(ctx context.Context, sessionID string) (*transport.Stream, error)

	// SendInput relays one input line.
	SendInput(ctx context.Context, sessionID, input string) error
}

// Verify that the HTTP client implements Backend at compile time.
var _ Backend = (*transport.Client)(nil)

// Verify the bundled sinks at compile time.
var (
	_ OutputSink = (*Transcript)(nil)
	_ OutputSink = Discard
)
