package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
	"mediashrink/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the job and upload tables when missing.
func EnsureSchema(ctx context.Context, sql infra.SQLExecutor) error {
	_, err := sql.Exec(ctx, sqlinline.QCreateSchema)
	return err
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		string(job.State),
		job.ProgressPercent,
		job.Phase,
		job.SourceRef,
		job.Filename,
		job.TargetSizeMB,
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateProgress records progress for an active job.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, state domain.JobState, percent int, phase string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, string(state), percent, phase)
	return err
}

// Finish settles a job into a terminal state unless it already is terminal.
func (r *JobRepositoryPG) Finish(ctx context.Context, jobID string, state domain.JobState, resultRef, errMsg string, outputBytes int64) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QFinishJob, jobID, string(state), resultRef, errMsg, outputBytes))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListFinishedBefore returns terminal jobs settled before cutoff.
func (r *JobRepositoryPG) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListFinishedJobsBefore, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Delete removes a job record.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteJob, jobID)
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job   domain.Job
		state string
	)
	if err := row.Scan(
		&job.ID,
		&state,
		&job.ProgressPercent,
		&job.Phase,
		&job.ResultRef,
		&job.Error,
		&job.SourceRef,
		&job.Filename,
		&job.TargetSizeMB,
		&job.OutputBytes,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	job.State = domain.JobState(state)
	if job.CompletedAt.Unix() == 0 {
		job.CompletedAt = time.Time{}
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
