// Package jobs runs the server side of the compression job lifecycle:
// it stores uploads, creates jobs, drives the encoder, settles cancel races
// and expires everything after the retention window.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediashrink/internal/domain"
	"mediashrink/internal/encoder"
	"mediashrink/internal/infra"
	"mediashrink/internal/progress"
	"mediashrink/internal/storage"
)

const (
	uploadsDir = "uploads"
	outputsDir = "outputs"
)

// Encoder is the port to the media encoding engine.
type Encoder interface {
	Probe(ctx context.Context, inputPath string) (encoder.Probe, error)
	Encode(ctx context.Context, inputPath, outputPath string, plan encoder.Plan, durationSeconds float64, onProgress func(int)) error
}

// Options tunes a Service.
type Options struct {
	Retention     time.Duration
	MaxConcurrent int
	Logger        *infra.Logger
	Now           func() time.Time
}

// Service implements the job use cases behind the HTTP handlers.
type Service struct {
	jobs    domain.JobRepository
	uploads domain.UploadRepository
	files   *storage.FileStore
	broker  progress.Broker
	encoder Encoder

	retention time.Duration
	slots     chan struct{}
	logger    *infra.Logger
	now       func() time.Time

	baseCtx    context.Context
	stopAll    context.CancelFunc
	workers    sync.WaitGroup
	janitorOne sync.Once

	mu      sync.Mutex
	running map[string]context.CancelFunc
	sources map[string]int
}

// NewService wires the collaborators.
func NewService(jobs domain.JobRepository, uploads domain.UploadRepository, files *storage.FileStore, broker progress.Broker, enc Encoder, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = infra.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Service{
		jobs:      jobs,
		uploads:   uploads,
		files:     files,
		broker:    broker,
		encoder:   enc,
		retention: opts.Retention,
		slots:     make(chan struct{}, opts.MaxConcurrent),
		logger:    opts.Logger,
		now:       opts.Now,
		baseCtx:   baseCtx,
		stopAll:   stop,
		running:   make(map[string]context.CancelFunc),
		sources:   make(map[string]int),
	}
}

// DownloadPath is the relative retrieval address of a job's artifact.
func DownloadPath(jobID string) string {
	return "/api/jobs/" + url.PathEscape(jobID) + "/download"
}

// Upload stores a source file, probes it and returns its reference with a
// bitrate estimate for targetSizeMB.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, targetSizeMB float64, audioKbps int) (domain.UploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		return domain.UploadResult{}, fmt.Errorf("%w: filename is required", domain.ErrInvalidRequest)
	}
	if audioKbps <= 0 {
		audioKbps = domain.DefaultAudioBitrateKbps
	}

	ref := uuid.NewString()
	key, size, err := s.files.Save(ctx, uploadsDir+"/"+ref+strings.ToLower(filepath.Ext(filename)), r)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("jobs: save upload: %w", err)
	}
	path, err := s.files.Path(key)
	if err != nil {
		return domain.UploadResult{}, err
	}
	probe, err := s.encoder.Probe(ctx, path)
	if err != nil {
		_ = s.files.Remove(key)
		s.logger.Warn().Err(err).Str("filename", filename).Msg("jobs: probe failed")
		return domain.UploadResult{}, fmt.Errorf("%w: unreadable media file", domain.ErrInvalidRequest)
	}

	upload := &domain.Upload{
		Ref:             ref,
		Filename:        filename,
		StorageKey:      key,
		SizeBytes:       size,
		DurationSeconds: probe.DurationSeconds,
		Width:           probe.Width,
		Height:          probe.Height,
		VideoKbps:       probe.VideoKbps,
		AudioKbps:       probe.AudioKbps,
		CreatedAt:       s.now(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		_ = s.files.Remove(key)
		return domain.UploadResult{}, fmt.Errorf("jobs: record upload: %w", err)
	}
	s.logger.Info().Str("source_ref", ref).Str("filename", filename).Int64("bytes", size).Msg("jobs: upload stored")
	return uploadResult(upload, targetSizeMB, audioKbps), nil
}

func uploadResult(u *domain.Upload, targetSizeMB float64, audioKbps int) domain.UploadResult {
	res := domain.UploadResult{
		SourceRef:       u.Ref,
		Filename:        u.Filename,
		DurationSeconds: u.DurationSeconds,
	}
	if u.VideoKbps > 0 {
		v := u.VideoKbps
		res.OriginalVideoBitrateKbps = &v
	}
	if u.AudioKbps > 0 {
		a := u.AudioKbps
		res.OriginalAudioBitrateKbps = &a
	}
	if u.Width > 0 && u.Height > 0 {
		w, h := u.Width, u.Height
		res.OriginalWidth, res.OriginalHeight = &w, &h
	}
	if targetSizeMB > 0 {
		res.EstimateTotalKbps, res.EstimateVideoKbps = encoder.EstimateBitrates(u.DurationSeconds, targetSizeMB, audioKbps)
		res.WarnLowQuality = encoder.WarnLowQuality(res.EstimateVideoKbps)
	}
	return res
}

// StartCompress validates req, creates a Queued job and schedules it.
func (s *Service) StartCompress(ctx context.Context, req domain.EncodeRequest) (*domain.Job, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	upload, err := s.uploads.GetByRef(ctx, req.SourceRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown source_ref", domain.ErrInvalidRequest)
		}
		return nil, err
	}
	plan, err := encoder.NewPlan(encoder.Probe{
		DurationSeconds: upload.DurationSeconds,
		Width:           upload.Width,
		Height:          upload.Height,
		VideoKbps:       upload.VideoKbps,
		AudioKbps:       upload.AudioKbps,
	}, req)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		State:        domain.JobStateQueued,
		Phase:        domain.PhaseQueued,
		SourceRef:    upload.Ref,
		Filename:     upload.Filename,
		TargetSizeMB: req.TargetSizeMB,
		CreatedAt:    s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("jobs: create job: %w", err)
	}
	s.publish(domain.ProgressEvent{JobID: job.ID, Phase: domain.PhaseQueued, State: domain.JobStateQueued})

	s.mu.Lock()
	s.sources[upload.Ref]++
	s.mu.Unlock()

	s.workers.Add(1)
	go s.run(job.ID, upload, plan)

	s.logger.Info().Str("job_id", job.ID).Str("source_ref", upload.Ref).Float64("target_mb", req.TargetSizeMB).Msg("jobs: job queued")
	return job, nil
}

func outputKey(jobID string, plan encoder.Plan) string {
	ext := "." + plan.Container
	if plan.AudioOnly {
		ext = ".m4a"
	}
	return outputsDir + "/" + jobID + ext
}

// run encodes one job once a slot is free. Every exit settles the job
// through Finish, whose first caller wins against Cancel.
func (s *Service) run(jobID string, upload *domain.Upload, plan encoder.Plan) {
	defer s.workers.Done()
	defer func() {
		s.mu.Lock()
		if s.sources[upload.Ref]--; s.sources[upload.Ref] <= 0 {
			delete(s.sources, upload.Ref)
		}
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	s.mu.Lock()
	s.running[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
	}()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		s.fail(jobID, "interrupted before start")
		return
	}

	// Cancelled while waiting for a slot.
	if job, err := s.jobs.GetByID(ctx, jobID); err != nil || job.State.Terminal() {
		return
	}

	s.progress(ctx, jobID, 0, domain.PhaseEncoding)
	inputPath, err := s.files.Path(upload.StorageKey)
	if err != nil {
		s.fail(jobID, err.Error())
		return
	}
	key := outputKey(jobID, plan)
	outputPath, err := s.files.Prepare(key)
	if err != nil {
		s.fail(jobID, err.Error())
		return
	}

	started := time.Now()
	err = s.encoder.Encode(ctx, inputPath, outputPath, plan, upload.DurationSeconds, func(pct int) {
		s.progress(ctx, jobID, pct, domain.PhaseEncoding)
	})
	if err != nil {
		if ctx.Err() != nil {
			s.fail(jobID, "interrupted")
		} else {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: encode failed")
			s.fail(jobID, err.Error())
		}
		_ = s.files.Remove(key)
		return
	}

	s.progress(ctx, jobID, 99, domain.PhaseFinalizing)
	var size int64
	if f, err := s.files.Open(key); err == nil {
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		_ = f.Close()
	}
	stored, err := s.jobs.Finish(context.Background(), jobID, domain.JobStateCompleted, key, "", size)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: record completion")
		return
	}
	if stored.State != domain.JobStateCompleted {
		// Cancel won the race; the artifact is not served.
		_ = s.files.Remove(key)
		return
	}
	s.publish(s.terminalEvent(*stored))
	s.logger.Info().Str("job_id", jobID).Int64("output_bytes", size).Dur("took", time.Since(started)).Msg("jobs: job completed")
}

func (s *Service) progress(ctx context.Context, jobID string, pct int, phase string) {
	if err := s.jobs.UpdateProgress(ctx, jobID, domain.JobStateRunning, pct, phase); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: update progress")
	}
	s.publish(domain.ProgressEvent{JobID: jobID, Percent: pct, Phase: phase, State: domain.JobStateRunning})
}

func (s *Service) fail(jobID, msg string) {
	stored, err := s.jobs.Finish(context.Background(), jobID, domain.JobStateFailed, "", msg, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: record failure")
		return
	}
	if stored.State == domain.JobStateFailed {
		s.publish(s.terminalEvent(*stored))
	}
}

func (s *Service) terminalEvent(job domain.Job) domain.ProgressEvent {
	ev := domain.TerminalEventFor(job)
	if job.State == domain.JobStateCompleted {
		ev.DownloadURL = DownloadPath(job.ID)
	}
	return ev
}

func (s *Service) publish(ev domain.ProgressEvent) {
	if err := s.broker.Publish(context.Background(), ev); err != nil {
		s.logger.Warn().Err(err).Str("job_id", ev.JobID).Msg("jobs: publish progress")
	}
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// Cancel settles a job as Cancelled unless it already reached a terminal
// state, and reports the state the job ended in.
func (s *Service) Cancel(ctx context.Context, jobID string) (domain.CancelOutcome, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	if job.State.Terminal() {
		return domain.CancelOutcome{JobID: jobID, State: job.State}, nil
	}
	stored, err := s.jobs.Finish(ctx, jobID, domain.JobStateCancelled, "", "cancelled by user", 0)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	if stored.State == domain.JobStateCancelled {
		s.mu.Lock()
		stop := s.running[jobID]
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.publish(s.terminalEvent(*stored))
		s.logger.Info().Str("job_id", jobID).Msg("jobs: job cancelled")
	}
	return domain.CancelOutcome{JobID: jobID, State: stored.State}, nil
}

// Subscribe opens a progress subscription. A job that is already terminal
// yields its terminal event and nothing else, however often it is asked.
func (s *Service) Subscribe(ctx context.Context, jobID string) (*progress.Subscription, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return progress.Settled(s.terminalEvent(*job)), nil
	}
	return s.broker.Subscribe(ctx, jobID)
}

// Artifact resolves the output file of a Completed job.
func (s *Service) Artifact(ctx context.Context, jobID string) (path, filename string, err error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	if job.State != domain.JobStateCompleted || job.ResultRef == "" {
		return "", "", domain.ErrNotFound
	}
	f, err := s.files.Open(job.ResultRef)
	if err != nil {
		return "", "", domain.ErrNotFound
	}
	_ = f.Close()
	path, err = s.files.Path(job.ResultRef)
	if err != nil {
		return "", "", err
	}
	base := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	if base == "" {
		base = job.ID
	}
	return path, base + "_compressed" + filepath.Ext(job.ResultRef), nil
}

// Close interrupts running encodes and waits for them to settle.
func (s *Service) Close(ctx context.Context) error {
	s.stopAll()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
