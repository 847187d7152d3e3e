package jobs

import (
	"context"
	"strings"
	"time"
)

const defaultSweepInterval = 15 * time.Minute

// SweepResult counts what a retention pass removed.
type SweepResult struct {
	Jobs    int
	Uploads int
	Files   int
}

// Sweep deletes terminal jobs, uploads and files older than the retention
// window. Uploads still referenced by an active job are kept.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := s.now().Add(-s.retention)

	jobs, err := s.jobs.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}
	for _, job := range jobs {
		if job.ResultRef != "" {
			_ = s.files.Remove(job.ResultRef)
		}
		if err := s.jobs.Delete(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: delete expired job")
			continue
		}
		_ = s.broker.Forget(ctx, job.ID)
		res.Jobs++
	}

	uploads, err := s.uploads.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}
	for _, upload := range uploads {
		if s.sourceInUse(upload.Ref) {
			continue
		}
		_ = s.files.Remove(upload.StorageKey)
		if err := s.uploads.Delete(ctx, upload.Ref); err != nil {
			s.logger.Warn().Err(err).Str("source_ref", upload.Ref).Msg("jobs: delete expired upload")
			continue
		}
		res.Uploads++
	}

	keepActive := func(key string) bool {
		ref := strings.TrimPrefix(key, uploadsDir+"/")
		if i := strings.IndexByte(ref, '.'); i >= 0 {
			ref = ref[:i]
		}
		return s.sourceInUse(ref)
	}
	for _, dir := range []string{uploadsDir, outputsDir} {
		n, err := s.files.RemoveOlderThan(dir, cutoff, keepActive)
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("jobs: sweep orphan files")
			continue
		}
		res.Files += n
	}
	return res, nil
}

func (s *Service) sourceInUse(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[ref] > 0
}

// StartJanitor sweeps once immediately and then every interval until ctx
// is done. Calling it again has no effect.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s.janitorOne.Do(func() {
		s.logger.Info().Dur("interval", interval).Dur("retention", s.retention).Msg("jobs: retention janitor enabled")
		go s.runJanitor(ctx, interval)
	})
}

func (s *Service) runJanitor(ctx context.Context, interval time.Duration) {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Service) sweepAndLog(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("jobs: retention sweep failed")
		return
	}
	if res.Jobs+res.Uploads+res.Files > 0 {
		s.logger.Info().Int("jobs", res.Jobs).Int("uploads", res.Uploads).Int("files", res.Files).Msg("jobs: retention sweep")
	}
}
