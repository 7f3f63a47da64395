package transport

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamOf(body string) *Stream {
	return NewStream(io.NopCloser(strings.NewReader(body)))
}

func drain(t *testing.T, s *Stream) ([]Event, error) {
	t.Helper()
	var all []Event
	for {
		events, err := s.Next()
		if err != nil {
			return all, err
		}
		all = append(all, events...)
	}
}

func TestStream_DecodesMessages(t *testing.T) {
	s := streamOf("data: {\"output\":\"Hello\\n\"}\n\n" +
		": keep-alive\n\n" +
		"data: {\"waitingForInput\":true}\n\n" +
		"data: {\"done\":true}\n\n")

	got, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []Event{Output("Hello\n"), WaitingForInput(), Done()}, got)
}

func TestStream_CombinedMessageOrder(t *testing.T) {
	s := streamOf(`data: {"done":true,"waitingForInput":true,"output":"x","error":"boom"}` + "\n\n")

	events, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []Event{Failure("boom"), Output("x"), WaitingForInput(), Done()}, events)
}

func TestStream_SkipsEmptyPayloads(t *testing.T) {
	s := streamOf("event: ping\n\n" +
		"data: {}\n\n" +
		"data: {\"output\":\"a\"}\n\n")

	events, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []Event{Output("a")}, events)
}

func TestStream_MultiLineDataAndCRLF(t *testing.T) {
	s := streamOf("data: {\"output\":\r\n" +
		"data: \"a\"}\r\n" +
		"\r\n")

	events, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []Event{Output("a")}, events)
}

func TestStream_ClearMarkerPassesThrough(t *testing.T) {
	s := streamOf("data: {\"output\":\"\\fframe 2\"}\n\n")

	events, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []Event{Output("\fframe 2")}, events)
}

func TestStream_DroppedMidEvent(t *testing.T) {
	s := streamOf("data: {\"output\":\"a\"}\n\ndata: {\"outp")

	events, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []Event{Output("a")}, events)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStream_MalformedJSON(t *testing.T) {
	s := streamOf("data: not json\n\n")

	_, err := s.Next()
	require.ErrorContains(t, err, "decode stream message")
}

func TestStream_CloseUnblocksNext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewStream(pr)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next()
		errCh <- err
	}()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrStreamClosed), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}
