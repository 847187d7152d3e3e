package jobclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError is a non-success HTTP status. Body holds the raw response
// body, which is also the error message.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if msg := strings.TrimSpace(e.Body); msg != "" {
		return msg
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NetworkError is a transport-level failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("jobclient: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StreamClosedError reports a progress stream that ended before a terminal
// event. Err is the underlying read error, or nil for a clean EOF.
type StreamClosedError struct {
	JobID string
	Err   error
}

func (e *StreamClosedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jobclient: progress stream for %s closed before terminal event: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("jobclient: progress stream for %s closed before terminal event", e.JobID)
}

func (e *StreamClosedError) Unwrap() error { return e.Err }

// DecodeError means a response that should have been JSON was not.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jobclient: %s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the job service. A job past
// its retention window answers this way, which callers should treat as a
// terminal outcome.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}
