package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// errorEnvelope is the error body shape the search backend returns.
type errorEnvelope struct {
	Error string `json:"error"`
}

// HTTPError is a non-2xx backend response. Message is the backend's own error
// text when the body carried one, "HTTP <code>" otherwise.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "backend http error"
	}
	return e.Message
}

func newHTTPError(op string, code int, status string, body []byte) *HTTPError {
	h := &HTTPError{
		Op:         op,
		StatusCode: code,
		Status:     status,
		Message:    fmt.Sprintf("HTTP %d", code),
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		if msg := strings.TrimSpace(env.Error); msg != "" {
			h.Message = msg
		}
	}
	return h
}
