package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for compression jobs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// UpdateProgress records a running job's progress. It never lowers the
	// stored percentage and is a no-op for terminal jobs.
	UpdateProgress(ctx context.Context, jobID string, state JobState, percent int, phase string) error
	// Finish moves a job into a terminal state unless it is already terminal,
	// and returns the job as stored afterwards. The first caller wins.
	Finish(ctx context.Context, jobID string, state JobState, resultRef, errMsg string, outputBytes int64) (*Job, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]Job, error)
	Delete(ctx context.Context, jobID string) error
}

// UploadRepository defines persistence for received source files.
type UploadRepository interface {
	Create(ctx context.Context, upload *Upload) error
	GetByRef(ctx context.Context, ref string) (*Upload, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Upload, error)
	Delete(ctx context.Context, ref string) error
}
