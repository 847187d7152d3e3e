package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
)

// StartCompress asks the service to create a compression job for an
// uploaded source. The returned job is Queued or Running, as the server
// decides.
func (c *Client) StartCompress(ctx context.Context, request domain.EncodeRequest, creds auth.Credentials) (domain.Job, error) {
	const op = "compress"
	body, err := json.Marshal(request)
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobclient: compress: encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/compress", bytes.NewReader(body), creds)
	if err != nil {
		return domain.Job{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.roundTrip(op, req)
	if err != nil {
		return domain.Job{}, err
	}
	var job domain.Job
	if err := decodeJSON(op, raw, &job); err != nil {
		return domain.Job{}, err
	}
	if job.ID == "" {
		return domain.Job{}, &DecodeError{Op: op, Err: errors.New("missing job id")}
	}
	c.logger.Debug().Str("job_id", job.ID).Str("state", string(job.State)).Msg("jobclient: job created")
	return job, nil
}
