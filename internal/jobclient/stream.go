package jobclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
)

// ErrStreamClosed is returned by Next after the caller closed the stream.
var ErrStreamClosed = errors.New("jobclient: progress stream closed")

// maxErrorBody bounds how much of a rejected stream response is kept.
const maxErrorBody = 64 << 10

// ProgressStream is one open server-sent event connection for a job. A
// single goroutine should call Next; Close may be called from any goroutine
// and unblocks a pending Next.
type ProgressStream struct {
	jobID  string
	body   io.ReadCloser
	reader *bufio.Reader

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	terminal bool
	err      error
}

// OpenProgressStream subscribes to a job's progress events. Credentials
// travel as the auth query parameter because the stream carries no custom
// headers. The request is bound to ctx and has no timeout of its own.
func (c *Client) OpenProgressStream(ctx context.Context, jobID string, creds auth.Credentials) (*ProgressStream, error) {
	const op = "stream"
	path := "/api/stream/" + url.PathEscape(jobID)
	if token, ok := auth.QueryToken(creds); ok {
		path += "?auth=" + url.QueryEscape(token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug().Str("job_id", jobID).Int("status", resp.StatusCode).Msg("jobclient: stream rejected")
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	c.logger.Debug().Str("job_id", jobID).Msg("jobclient: stream opened")
	return &ProgressStream{
		jobID:  jobID,
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// JobID returns the job this stream follows.
func (s *ProgressStream) JobID() string {
	return s.jobID
}

// Next blocks for the next event. It returns io.EOF once a terminal event
// has been delivered, *StreamClosedError if the connection ends before one,
// *DecodeError for a malformed payload and ErrStreamClosed after Close.
// Errors are sticky; the stream cannot be restarted.
func (s *ProgressStream) Next() (domain.ProgressEvent, error) {
	if s.err != nil {
		return domain.ProgressEvent{}, s.err
	}
	if s.terminal {
		s.err = io.EOF
		_ = s.Close()
		return domain.ProgressEvent{}, s.err
	}

	data, err := s.readEvent()
	if err != nil {
		switch {
		case s.closed.Load():
			s.err = ErrStreamClosed
		case errors.Is(err, io.EOF):
			s.err = &StreamClosedError{JobID: s.jobID}
		default:
			s.err = &StreamClosedError{JobID: s.jobID, Err: err}
		}
		_ = s.Close()
		return domain.ProgressEvent{}, s.err
	}

	var ev domain.ProgressEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.err = &DecodeError{Op: "stream", Err: err}
		_ = s.Close()
		return domain.ProgressEvent{}, s.err
	}
	if ev.JobID == "" {
		ev.JobID = s.jobID
	}
	if ev.Terminal {
		s.terminal = true
	}
	return ev, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *ProgressStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// readEvent returns the data of the next dispatched event. Comment lines and
// fields other than data are skipped; an event cut off by EOF is discarded.
func (s *ProgressStream) readEvent() ([]byte, error) {
	var data []byte
	hasData := false
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				return data, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		if hasData {
			data = append(data, '\n')
		}
		data = append(data, strings.TrimPrefix(value, " ")...)
		hasData = true
	}
}
