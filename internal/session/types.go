// Package session runs programs on the playground service and tracks the one
// run that is current. A Manager owns the current Session, consumes its output
// stream and forwards everything to an OutputSink. An InputBridge relays lines
// typed by the user into a session that is waiting for input.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSession is returned by operations that need a current session.
var ErrNoSession = errors.New("no current session")

// ClearMarker in an output fragment erases everything rendered so far.
const ClearMarker = '\f'

// InvalidCodePhrase marks service errors about rejected source.
const InvalidCodePhrase = "invalid or potentially unsafe Go code"

// Notices appended by the manager.
const (
	NoticeExited          = "Program exited."
	NoticeCancelled       = "Program cancelled."
	NoticeConnectionError = "Connection error"
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusRunning Status = iota
	StatusWaitingForInput
	StatusCompleted
	StatusErrored
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWaitingForInput:
		return "waiting"
	case StatusCompleted:
		return "completed"
	case StatusErrored:
		return "errored"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrored || s == StatusCancelled
}

// LineKind says where a line came from.
type LineKind int

const (
	LineOutput LineKind = iota // program output fragment
	LineInput                  // echo of a submitted input line
	LineError                  // run rejection, runtime error or send failure
	LineExit                   // program finished
	LineNotice                 // cancellation and connection notices
)

func (k LineKind) String() string {
	switch k {
	case LineOutput:
		return "output"
	case LineInput:
		return "input"
	case LineError:
		return "error"
	case LineExit:
		return "exit"
	case LineNotice:
		return "notice"
	default:
		return fmt.Sprintf("line(%d)", int(k))
	}
}

// Class drives display styling of a line.
type Class int

const (
	ClassNone Class = iota
	ClassError
	ClassInvalid
	ClassSuccess
)

func (c Class) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassInvalid:
		return "invalid"
	case ClassSuccess:
		return "success"
	default:
		return "none"
	}
}

// Line is one entry handed to an OutputSink.
type Line struct {
	Kind  LineKind
	Text  string
	Class Class
}

// String renders the line the way it is shown to the user.
func (l Line) String() string {
	if l.Kind == LineError {
		return "Error: " + l.Text
	}
	return l.Text
}

// Classify maps an error message to its display class.
func Classify(message string) Class {
	if strings.Contains(message, InvalidCodePhrase) {
		return ClassInvalid
	}
	return ClassError
}

func errorLine(message string) Line {
	return Line{Kind: LineError, Text: message, Class: Classify(message)}
}

// OutputSink renders session output. Calls for one session never overlap and
// arrive in order. Implementations must not call back into the Manager.
type OutputSink interface {
	// Append adds a line to the output.
	Append(line Line)
	// Clear erases all output.
	Clear()
	// ReserveInput shows the input area for a waiting program.
	ReserveInput()
	// ReleaseInput hides the input area.
	ReleaseInput()
}

// splitClear applies the clear marker to an output fragment. It reports
// whether the output must be cleared and returns the text left to append.
func splitClear(text string) (bool, string) {
	i := strings.LastIndexByte(text, ClearMarker)
	if i < 0 {
		return false, text
	}
	return true, text[i+1:]
}
