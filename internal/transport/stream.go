package transport

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// Stream reads program-output events for one session. It is not safe for
// concurrent Next calls; Close may be called from any goroutine, any number of
// times.
type Stream struct {
	body    io.ReadCloser
	decoder *eventStreamDecoder

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStream wraps an event-stream body. The stream owns body and closes it.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:    body,
		decoder: newEventStreamDecoder(body),
		closed:  make(chan struct{}),
	}
}

// Next blocks until the next message arrives and returns its events in
// application order. Messages with an empty payload are skipped. Next returns
// io.EOF when the server ends the stream and ErrStreamClosed after Close.
func (s *Stream) Next() ([]Event, error) {
	for {
		_, data, err := s.decoder.Next()
		if err != nil {
			if s.isClosed() {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		events, err := decodeMessage(data)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			continue
		}
		return events, nil
	}
}

// Close releases the underlying connection. It unblocks a pending Next.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.body.Close()
	})
	return err
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// eventStreamDecoder splits a text/event-stream body into events.
type eventStreamDecoder struct {
	r *bufio.Reader
}

func newEventStreamDecoder(r io.Reader) *eventStreamDecoder {
	return &eventStreamDecoder{r: bufio.NewReader(r)}
}

// Next returns the event name (if any) and the joined data lines of one event.
// Comment lines and id/retry fields are ignored.
func (d *eventStreamDecoder) Next() (string, []byte, error) {
	var (
		event   string
		data    []byte
		hasData bool
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" && !hasData {
				return "", nil, io.EOF
			}
			if !errors.Is(err, io.EOF) {
				return "", nil, err
			}
			// Unterminated trailing event: the connection dropped mid-event.
			return "", nil, io.ErrUnexpectedEOF
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData || event != "" {
				return event, data, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			if hasData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			hasData = true
		}
	}
}
