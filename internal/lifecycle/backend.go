package lifecycle

import (
	"context"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
	"mediashrink/internal/jobclient"
)

// EventStream is an open progress subscription for one job.
type EventStream interface {
	Next() (domain.ProgressEvent, error)
	Close() error
}

// Backend is the set of job service calls the coordinator composes.
// Credentials are bound into the implementation.
type Backend interface {
	Upload(ctx context.Context, file jobclient.UploadFile, targetSizeMB float64, audioKbps int, onProgress func(int)) (domain.UploadResult, error)
	StartCompress(ctx context.Context, req domain.EncodeRequest) (domain.Job, error)
	OpenProgressStream(ctx context.Context, jobID string) (EventStream, error)
	CancelJob(ctx context.Context, jobID string) (domain.CancelOutcome, error)
	DownloadURL(jobID string) string
}

// ClientBackend adapts a jobclient.Client and one set of credentials.
type ClientBackend struct {
	Client      *jobclient.Client
	Credentials auth.Credentials
}

func (b ClientBackend) Upload(ctx context.Context, file jobclient.UploadFile, targetSizeMB float64, audioKbps int, onProgress func(int)) (domain.UploadResult, error) {
	return b.Client.Upload(ctx, file, targetSizeMB, audioKbps, b.Credentials, onProgress)
}

func (b ClientBackend) StartCompress(ctx context.Context, req domain.EncodeRequest) (domain.Job, error) {
	return b.Client.StartCompress(ctx, req, b.Credentials)
}

func (b ClientBackend) OpenProgressStream(ctx context.Context, jobID string) (EventStream, error) {
	stream, err := b.Client.OpenProgressStream(ctx, jobID, b.Credentials)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (b ClientBackend) CancelJob(ctx context.Context, jobID string) (domain.CancelOutcome, error) {
	return b.Client.CancelJob(ctx, jobID, b.Credentials)
}

func (b ClientBackend) DownloadURL(jobID string) string {
	return b.Client.DownloadURL(jobID)
}
