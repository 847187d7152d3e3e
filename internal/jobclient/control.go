package jobclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
)

// CancelJob asks the service to cancel a job. The outcome carries the state
// the job settled into: Cancelled, or Completed when the job finished first.
func (c *Client) CancelJob(ctx context.Context, jobID string, creds auth.Credentials) (domain.CancelOutcome, error) {
	const op = "cancel"
	req, err := c.newRequest(ctx, http.MethodPost, jobPath(jobID, "/cancel"), nil, creds)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	raw, err := c.roundTrip(op, req)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	var outcome domain.CancelOutcome
	if err := decodeJSON(op, raw, &outcome); err != nil {
		return domain.CancelOutcome{}, err
	}
	if !outcome.State.Valid() {
		return domain.CancelOutcome{}, &DecodeError{Op: op, Err: errors.New("missing or unknown state")}
	}
	if outcome.JobID == "" {
		outcome.JobID = jobID
	}
	c.logger.Debug().Str("job_id", jobID).Str("state", string(outcome.State)).Msg("jobclient: cancel acknowledged")
	return outcome, nil
}

// DownloadURL returns the retrieval address of a job's artifact. It performs
// no request; the address is relative when the client is same-origin.
func (c *Client) DownloadURL(jobID string) string {
	return c.locator.Path(jobPath(jobID, "/download"))
}

// Download fetches a job's artifact into w. A job past retention answers
// with a RequestError that IsNotFound recognises.
func (c *Client) Download(ctx context.Context, jobID string, creds auth.Credentials, w io.Writer) (int64, error) {
	const op = "download"
	req, err := c.newRequest(ctx, http.MethodGet, jobPath(jobID, "/download"), nil, creds)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &NetworkError{Op: op, Err: err}
	}
	return n, nil
}

func jobPath(jobID, suffix string) string {
	return "/api/jobs/" + url.PathEscape(jobID) + suffix
}
