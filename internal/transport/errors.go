package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any *StatusError carrying 401 via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server's error text when the body carried one.
	Message string
	// Fields holds per-field rejection reasons from a structured 422 body.
	Fields map[string]string
	Body   []byte
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// HTTPStatus reports the response status. The retry package keys its
// default predicate on it.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// NetworkError is a failure to complete an exchange at all: dial, TLS,
// timeout, connection reset, truncated body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient marks network failures as worth retrying.
func (e *NetworkError) Transient() bool { return true }

// errorBody is the rejection shape the backend uses.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func newStatusError(method, path string, resp *Response) *StatusError {
	se := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	var eb errorBody
	if json.Unmarshal(resp.Body, &eb) == nil {
		se.Message = eb.Error
		se.Fields = eb.Fields
	} else if text := strings.TrimSpace(string(resp.Body)); text != "" && len(text) <= 200 {
		se.Message = text
	}
	return se
}
