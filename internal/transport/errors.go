package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStreamClosed is returned by Stream.Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// maxErrorBody bounds how much of a rejected response is read back.
const maxErrorBody = 64 * 1024

// RequestError is a non-2xx answer from the playground service. Error returns
// the server's message verbatim so it can be shown to the user as-is.
type RequestError struct {
	Op         string // "run", "send-input", "save", "program-output", "health"
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.StatusCode))
	}
	return e.Body
}

// IsStatus reports whether err is a RequestError with the given status code.
func IsStatus(err error, code int) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == code
}

// newRequestError drains resp.Body into a RequestError. A JSON body of the
// form {"error": "..."} is unwrapped to its message.
func newRequestError(op string, resp *http.Response) *RequestError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimRight(string(data), "\r\n")

	var payload struct {
		Error string `json:"error"`
	}
	if strings.HasPrefix(strings.TrimSpace(body), "{") && json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		body = payload.Error
	}

	return &RequestError{Op: op, StatusCode: resp.StatusCode, Body: body}
}
