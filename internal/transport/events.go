package transport

import (
	"encoding/json"
	"fmt"
)

// EventKind tags one unit pushed over a program-output stream.
type EventKind int

const (
	EventOutput EventKind = iota
	EventWaitingForInput
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventWaitingForInput:
		return "waiting_for_input"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one decoded stream event. Text carries the output fragment for
// EventOutput and the message for EventError.
type Event struct {
	Kind EventKind
	Text string
}

// Output, WaitingForInput, Failure and Done build events; handy in tests and
// fakes.
func Output(text string) Event { return Event{Kind: EventOutput, Text: text} }
func WaitingForInput() Event { return Event{Kind: EventWaitingForInput} }
func Failure(message string) Event { return Event{Kind: EventError, Text: message} }
func Done() Event { return Event{Kind: EventDone} }

// Message is the JSON payload of one stream message. The server may combine
// fields in a single message.
type Message struct {
	Output          string `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	WaitingForInput bool   `json:"waitingForInput,omitempty"`
	Done            bool   `json:"done,omitempty"`
}

// Events expands m into events in the order they must be applied:
// error, output, waiting-for-input, done.
func (m Message) Events() []Event {
	events := make([]Event, 0, 2)
	if m.Error != "" {
		events = append(events, Failure(m.Error))
	}
	if m.Output != "" {
		events = append(events, Output(m.Output))
	}
	if m.WaitingForInput {
		events = append(events, WaitingForInput())
	}
	if m.Done {
		events = append(events, Done())
	}
	return events
}

// MessageFor is the inverse of Events for a single event.
func MessageFor(ev Event) Message {
	switch ev.Kind {
	case EventOutput:
		return Message{Output: ev.Text}
	case EventWaitingForInput:
		return Message{WaitingForInput: true}
	case EventError:
		return Message{Error: ev.Text}
	default:
		return Message{Done: true}
	}
}

// decodeMessage parses one data payload.
func decodeMessage(data []byte) ([]Event, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode stream message: %w", err)
	}
	return m.Events(), nil
}
