package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mediashrink/internal/domain"
	"mediashrink/internal/sqlinline"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	rows [][]any
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
func (r *stubRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error { return assign(dest, r.rows[r.idx-1]) }

type recordingExecutor struct {
	queries []string
	args    [][]any
	row     []any
	rows    [][]any
}

func (e *recordingExecutor) record(query string, args []any) {
	e.queries = append(e.queries, query)
	e.args = append(e.args, args)
}

func (e *recordingExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.record(query, args)
	return pgconn.CommandTag{}, nil
}

func (e *recordingExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	e.record(query, args)
	if e.row == nil {
		return simpleRow{}
	}
	return simpleRow{scan: func(dest ...any) error { return assign(dest, e.row) }}
}

func (e *recordingExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	e.record(query, args)
	return &stubRows{rows: e.rows}, nil
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = values[i].(string)
		case *int:
			*p = values[i].(int)
		case *int64:
			*p = values[i].(int64)
		case *float64:
			*p = values[i].(float64)
		case *time.Time:
			*p = values[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func jobRow(id, state string, completedAt time.Time) []any {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{id, state, 100, domain.PhaseDone, "outputs/" + id + ".mp4", "", "src-1", "clip.mp4",
		25.0, int64(1234), created, created, completedAt}
}

func TestJobRepositoryGetByIDMapsNoRows(t *testing.T) {
	repo := NewJobRepository(&recordingExecutor{})
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobRepositoryScansJob(t *testing.T) {
	exec := &recordingExecutor{row: jobRow("job-1", "completed", time.Unix(0, 0).UTC())}
	repo := NewJobRepository(exec)
	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.State != domain.JobStateCompleted || job.OutputBytes != 1234 || job.TargetSizeMB != 25 {
		t.Fatalf("job = %+v", job)
	}
	if !job.CompletedAt.IsZero() {
		t.Fatalf("epoch completed_at should map to zero time, got %v", job.CompletedAt)
	}
	if exec.queries[0] != sqlinline.QSelectJob || exec.args[0][0] != "job-1" {
		t.Fatalf("query = %q args = %v", exec.queries[0], exec.args[0])
	}
}

func TestJobRepositoryFinishPassesState(t *testing.T) {
	done := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	exec := &recordingExecutor{row: jobRow("job-1", "cancelled", done)}
	repo := NewJobRepository(exec)
	job, err := repo.Finish(context.Background(), "job-1", domain.JobStateCancelled, "", "cancelled by user", 0)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if job.State != domain.JobStateCancelled || !job.CompletedAt.Equal(done) {
		t.Fatalf("job = %+v", job)
	}
	args := exec.args[0]
	if exec.queries[0] != sqlinline.QFinishJob || args[1] != "cancelled" || args[3] != "cancelled by user" {
		t.Fatalf("query args = %v", args)
	}
}

func TestJobRepositoryListFinishedBefore(t *testing.T) {
	exec := &recordingExecutor{rows: [][]any{
		jobRow("a", "completed", time.Unix(10, 0).UTC()),
		jobRow("b", "failed", time.Unix(20, 0).UTC()),
	}}
	jobs, err := NewJobRepository(exec).ListFinishedBefore(context.Background(), time.Unix(30, 0))
	if err != nil {
		t.Fatalf("ListFinishedBefore: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].State != domain.JobStateFailed {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestUploadRepositoryRoundTrip(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exec := &recordingExecutor{row: []any{"ref-1", "clip.mp4", "uploads/ref-1.mp4", int64(42), 61.5, 1920, 1080, 5000.0, 128.0, created}}
	repo := NewUploadRepository(exec)

	if err := repo.Create(context.Background(), &domain.Upload{Ref: "ref-1", Filename: "clip.mp4", CreatedAt: created}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if exec.queries[0] != sqlinline.QInsertUpload || len(exec.args[0]) != 10 {
		t.Fatalf("insert = %q %v", exec.queries[0], exec.args[0])
	}
	upload, err := repo.GetByRef(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("GetByRef: %v", err)
	}
	if upload.DurationSeconds != 61.5 || upload.Width != 1920 || upload.StorageKey != "uploads/ref-1.mp4" {
		t.Fatalf("upload = %+v", upload)
	}
}
