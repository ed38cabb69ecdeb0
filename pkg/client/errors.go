package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/buger/jsonparser"
)

var (
	ErrInvalidResponse = errors.New("invalid block server response")
	ErrNoBaseURL       = errors.New("base url not set")
)

// APIError is a non-2xx response from the block server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// errorMessage extracts a message from a JSON error body, falling back to the
// raw body.
func errorMessage(body []byte) string {
	for _, path := range [][]string{{"error", "message"}, {"error"}, {"message"}} {
		if s, err := jsonparser.GetString(body, path...); err == nil && s != "" {
			return s
		}
	}
	const maxLen = 512
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}
