// Package jobclient talks to the compression job service: upload a source,
// create a job, follow its progress stream, cancel it and locate its result.
package jobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mediashrink/internal/auth"
	"mediashrink/internal/infra"
)

const defaultSameOrigin = "http://localhost:8000"

// Options configures a Client.
type Options struct {
	// BaseURL is the externally configured origin of the job service. Empty
	// means same-origin.
	BaseURL string
	// SameOrigin is the origin relative paths are resolved against when
	// BaseURL is empty.
	SameOrigin string
	// HTTPClient performs every call, including the long-lived progress
	// stream, so it should not carry a Timeout. Bound calls through ctx.
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs calls against the job service. It holds no per-job state
// and is safe for concurrent use by independent jobs.
type Client struct {
	locator    Locator
	sameOrigin *url.URL
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	origin := strings.TrimSpace(opts.SameOrigin)
	if origin == "" {
		origin = defaultSameOrigin
	}
	sameOrigin, err := url.Parse(origin)
	if err != nil || sameOrigin.Scheme == "" || sameOrigin.Host == "" {
		return nil, fmt.Errorf("jobclient: invalid same origin %q", origin)
	}
	locator := NewLocator(opts.BaseURL)
	if !locator.SameOrigin() {
		parsed, err := url.Parse(locator.Base())
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("jobclient: invalid base url %q", opts.BaseURL)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		locator:    locator,
		sameOrigin: sameOrigin,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Locator returns the backend locator the client builds addresses with.
func (c *Client) Locator() Locator {
	return c.locator
}

// endpoint turns a locator path into an absolute URL for net/http.
func (c *Client) endpoint(path string) string {
	addr := c.locator.Path(path)
	if !c.locator.SameOrigin() {
		return addr
	}
	ref, err := url.Parse(addr)
	if err != nil {
		return strings.TrimRight(c.sameOrigin.String(), "/") + addr
	}
	return c.sameOrigin.ResolveReference(ref).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, creds auth.Credentials) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("jobclient: build request: %w", err)
	}
	if value, ok := auth.HeaderValue(creds); ok {
		req.Header.Set("Authorization", value)
	}
	return req, nil
}

// roundTrip sends req and returns the body of a successful response.
func (c *Client) roundTrip(op string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Msg("jobclient: request failed")
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("jobclient: request rejected")
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func decodeJSON(op string, raw []byte, v any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}
