package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
	"mediashrink/internal/sqlinline"
)

// UploadRepositoryPG implements domain.UploadRepository.
type UploadRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUploadRepository creates an upload repository backed by PostgreSQL.
func NewUploadRepository(sql infra.SQLExecutor) *UploadRepositoryPG {
	return &UploadRepositoryPG{sql: sql}
}

func (r *UploadRepositoryPG) Create(ctx context.Context, upload *domain.Upload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertUpload,
		upload.Ref,
		upload.Filename,
		upload.StorageKey,
		upload.SizeBytes,
		upload.DurationSeconds,
		upload.Width,
		upload.Height,
		upload.VideoKbps,
		upload.AudioKbps,
		upload.CreatedAt,
	)
	return err
}

func (r *UploadRepositoryPG) GetByRef(ctx context.Context, ref string) (*domain.Upload, error) {
	upload, err := scanUpload(r.sql.QueryRow(ctx, sqlinline.QSelectUpload, ref))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return upload, nil
}

func (r *UploadRepositoryPG) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Upload, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUploadsBefore, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []domain.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *upload)
	}
	return uploads, rows.Err()
}

func (r *UploadRepositoryPG) Delete(ctx context.Context, ref string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteUpload, ref)
	return err
}

func scanUpload(row pgx.Row) (*domain.Upload, error) {
	var u domain.Upload
	if err := row.Scan(
		&u.Ref,
		&u.Filename,
		&u.StorageKey,
		&u.SizeBytes,
		&u.DurationSeconds,
		&u.Width,
		&u.Height,
		&u.VideoKbps,
		&u.AudioKbps,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

var _ domain.UploadRepository = (*UploadRepositoryPG)(nil)
