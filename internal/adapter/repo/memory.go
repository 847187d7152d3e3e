package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediashrink/internal/domain"
)

// MemoryStore keeps jobs and uploads in process memory. It is used when no
// DATABASE_URL is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	jobs    map[string]domain.Job
	uploads map[string]domain.Upload
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]domain.Job),
		uploads: make(map[string]domain.Upload),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Jobs exposes the store as a domain.JobRepository.
func (m *MemoryStore) Jobs() domain.JobRepository { return memoryJobs{m} }

// Uploads exposes the store as a domain.UploadRepository.
func (m *MemoryStore) Uploads() domain.UploadRepository { return memoryUploads{m} }

type memoryJobs struct{ m *MemoryStore }

func (r memoryJobs) Create(_ context.Context, job *domain.Job) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.jobs[job.ID]; exists {
		return domain.ErrInvalidRequest
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.m.now()
	}
	job.UpdatedAt = job.CreatedAt
	r.m.jobs[job.ID] = *job
	return nil
}

func (r memoryJobs) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (r memoryJobs) UpdateProgress(_ context.Context, jobID string, state domain.JobState, percent int, phase string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.State.Terminal() {
		return nil
	}
	job.State = state
	if percent > job.ProgressPercent {
		job.ProgressPercent = percent
	}
	job.Phase = phase
	job.UpdatedAt = r.m.now()
	r.m.jobs[jobID] = job
	return nil
}

func (r memoryJobs) Finish(_ context.Context, jobID string, state domain.JobState, resultRef, errMsg string, outputBytes int64) (*domain.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.State.Terminal() {
		return &job, nil
	}
	now := r.m.now()
	job.State = state
	if resultRef != "" {
		job.ResultRef = resultRef
	}
	job.Error = errMsg
	job.OutputBytes = outputBytes
	if state == domain.JobStateCompleted {
		job.ProgressPercent = 100
		job.Phase = domain.PhaseDone
	}
	job.UpdatedAt = now
	job.CompletedAt = now
	r.m.jobs[jobID] = job
	return &job, nil
}

func (r memoryJobs) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]domain.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.Job
	for _, job := range r.m.jobs {
		if !job.CompletedAt.IsZero() && job.CompletedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (r memoryJobs) Delete(_ context.Context, jobID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.jobs, jobID)
	return nil
}

type memoryUploads struct{ m *MemoryStore }

func (r memoryUploads) Create(_ context.Context, upload *domain.Upload) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = r.m.now()
	}
	r.m.uploads[upload.Ref] = *upload
	return nil
}

func (r memoryUploads) GetByRef(_ context.Context, ref string) (*domain.Upload, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	upload, ok := r.m.uploads[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &upload, nil
}

func (r memoryUploads) ListCreatedBefore(_ context.Context, cutoff time.Time) ([]domain.Upload, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.Upload
	for _, upload := range r.m.uploads {
		if upload.CreatedAt.Before(cutoff) {
			out = append(out, upload)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memoryUploads) Delete(_ context.Context, ref string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.uploads, ref)
	return nil
}
