// Package lifecycle drives one compression job from upload to a terminal
// state. A Coordinator is an actor: the goroutine inside Run or Follow owns
// the job state, and every input reaches it through an inbox.
//
// The first terminal input settles the job. A cancel acknowledged by the
// server as Cancelled or Completed finishes the coordinator at once and
// closes the progress stream without waiting for its terminal event.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
	"mediashrink/internal/jobclient"
)

// Options configures a Coordinator.
type Options struct {
	// OnUpdate is called from the coordinator goroutine after every change.
	// It must not block for long.
	OnUpdate func(Snapshot)
	Logger   *infra.Logger
}

// Input describes a new job. Request.SourceRef is filled from the upload.
type Input struct {
	File    jobclient.UploadFile
	Request domain.EncodeRequest
}

// Coordinator tracks a single job. Create a new one per job.
type Coordinator struct {
	backend Backend
	opts    Options
	logger  *infra.Logger

	inbox     chan message
	cancelReq chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	current   atomic.Pointer[Snapshot]

	// Owned by the actor goroutine.
	snap           Snapshot
	pendingRequest domain.EncodeRequest
	opCancel       context.CancelFunc
	workers        sync.WaitGroup
	stream         EventStream
	submitting     bool
	cancelPending  bool
	cancelling     bool
}

type message any

type (
	uploadProgressMsg struct{ percent int }
	uploadDoneMsg     struct {
		result domain.UploadResult
		err    error
	}
	submitDoneMsg struct {
		job domain.Job
		err error
	}
	streamOpenedMsg struct {
		stream EventStream
		err    error
	}
	streamEventMsg struct{ event domain.ProgressEvent }
	streamEndedMsg struct{ err error }
	cancelAckMsg   struct {
		outcome domain.CancelOutcome
		err     error
	}
)

// New returns a coordinator in the Created state.
func New(backend Backend, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	c := &Coordinator{
		backend:   backend,
		opts:      opts,
		logger:    logger,
		inbox:     make(chan message),
		cancelReq: make(chan struct{}, 1),
		stopped:   make(chan struct{}),
		snap:      Snapshot{State: StateCreated},
	}
	initial := c.snap
	c.current.Store(&initial)
	return c
}

// Snapshot returns the most recently published state. It is safe to call
// from any goroutine.
func (c *Coordinator) Snapshot() Snapshot {
	return *c.current.Load()
}

// Cancel asks for the job to be cancelled and returns without waiting. Before
// a job id exists the in-flight upload is aborted and the job resolves
// Cancelled locally; afterwards the server decides the outcome.
func (c *Coordinator) Cancel() error {
	if c.Snapshot().State.Terminal() {
		return ErrFinished
	}
	select {
	case c.cancelReq <- struct{}{}:
	default:
	}
	return nil
}

// Run uploads the file, creates the job and follows it to a terminal state.
// The returned error is the Err of a Failed snapshot.
func (c *Coordinator) Run(ctx context.Context, in Input) (Snapshot, error) {
	if !c.started.CompareAndSwap(false, true) {
		return c.Snapshot(), ErrAlreadyStarted
	}
	return c.loop(ctx, func(opCtx context.Context) {
		c.transition(StateUploading)
		c.startUpload(opCtx, in)
	})
}

// Follow subscribes to an existing job, for example to resubscribe after a
// dropped stream.
func (c *Coordinator) Follow(ctx context.Context, jobID string) (Snapshot, error) {
	if !c.started.CompareAndSwap(false, true) {
		return c.Snapshot(), ErrAlreadyStarted
	}
	return c.loop(ctx, func(opCtx context.Context) {
		c.snap.JobID = jobID
		c.transition(StateSubmitted)
		c.openStream(opCtx)
	})
}

func (c *Coordinator) loop(ctx context.Context, begin func(context.Context)) (Snapshot, error) {
	opCtx, cancel := context.WithCancel(ctx)
	c.opCancel = cancel
	defer c.teardown()

	select {
	case <-c.cancelReq:
		c.finish(StateCancelled, nil, false)
	default:
		begin(opCtx)
	}

	for !c.snap.State.Terminal() {
		select {
		case <-ctx.Done():
			c.finish(StateFailed, ctx.Err(), true)
		case <-c.cancelReq:
			c.handleCancel(opCtx)
		case msg := <-c.inbox:
			c.handle(opCtx, msg)
		}
	}
	snap := c.snap
	if snap.State == StateFailed {
		return snap, snap.Err
	}
	return snap, nil
}

// teardown releases the stream and waits for workers so that nothing posts
// after Run returns.
func (c *Coordinator) teardown() {
	c.opCancel()
	if c.stream != nil {
		_ = c.stream.Close()
	}
	close(c.stopped)
	c.workers.Wait()
}

func (c *Coordinator) handle(opCtx context.Context, msg message) {
	switch m := msg.(type) {
	case uploadProgressMsg:
		if c.snap.State == StateUploading && m.percent > c.snap.UploadPercent {
			c.snap.UploadPercent = m.percent
			c.publish()
		}
	case uploadDoneMsg:
		if m.err != nil {
			c.finish(StateFailed, m.err, true)
			return
		}
		c.snap.UploadPercent = 100
		c.publish()
		req := c.pendingRequest
		req.SourceRef = m.result.SourceRef
		c.startSubmit(opCtx, req)
	case submitDoneMsg:
		c.submitting = false
		if m.err != nil {
			c.finish(StateFailed, m.err, true)
			return
		}
		c.snap.JobID = m.job.ID
		c.snap.Phase = m.job.Phase
		c.transition(StateSubmitted)
		c.logger.Debug().Str("job_id", m.job.ID).Msg("lifecycle: job submitted")
		if c.cancelPending {
			c.startCancel(opCtx)
		}
		c.openStream(opCtx)
	case streamOpenedMsg:
		if m.err != nil {
			c.finish(StateFailed, m.err, true)
			return
		}
		c.stream = m.stream
		c.transition(StateStreaming)
		c.readStream(m.stream)
	case streamEventMsg:
		c.applyEvent(m.event)
	case streamEndedMsg:
		c.finish(StateFailed, m.err, true)
	case cancelAckMsg:
		c.applyCancelAck(m)
	}
}

func (c *Coordinator) applyEvent(ev domain.ProgressEvent) {
	if ev.Terminal {
		switch ev.TerminalState() {
		case domain.JobStateCompleted:
			c.snap.Phase = ev.Phase
			c.finish(StateCompleted, nil, false)
		case domain.JobStateCancelled:
			c.finish(StateCancelled, nil, false)
		default:
			c.finish(StateFailed, serverFailure(ev.Message), false)
		}
		return
	}
	pct := clampPercent(ev.Percent)
	if pct > c.snap.ProgressPercent {
		c.snap.ProgressPercent = pct
	}
	if ev.Phase != "" {
		c.snap.Phase = ev.Phase
	}
	c.transition(StateStreaming)
}

func (c *Coordinator) handleCancel(opCtx context.Context) {
	switch {
	case c.snap.JobID != "":
		c.startCancel(opCtx)
	case c.submitting:
		// The job may already exist server side; cancel it once its id is known.
		c.cancelPending = true
	default:
		c.logger.Debug().Msg("lifecycle: cancelled before submission")
		c.finish(StateCancelled, nil, false)
	}
}

func (c *Coordinator) applyCancelAck(m cancelAckMsg) {
	c.cancelling = false
	if m.err != nil {
		if jobclient.IsNotFound(m.err) {
			c.finish(StateCancelled, nil, false)
			return
		}
		c.logger.Warn().Err(m.err).Str("job_id", c.snap.JobID).Msg("lifecycle: cancel request failed")
		c.snap.CancelErr = m.err
		c.publish()
		return
	}
	switch m.outcome.State {
	case domain.JobStateCompleted:
		c.finish(StateCompleted, nil, false)
	case domain.JobStateCancelled:
		c.finish(StateCancelled, nil, false)
	case domain.JobStateFailed:
		c.finish(StateFailed, serverFailure(""), false)
	default:
		// Not settled yet; the stream will deliver the terminal event.
	}
}

func (c *Coordinator) transition(to State) {
	if c.snap.State != to && !canTransition(c.snap.State, to) {
		c.logger.Error().Str("from", string(c.snap.State)).Str("to", string(to)).Msg("lifecycle: invalid transition")
		return
	}
	c.snap.State = to
	c.publish()
}

func (c *Coordinator) finish(to State, err error, local bool) {
	if c.snap.State.Terminal() {
		return
	}
	if to == StateCompleted {
		c.snap.ProgressPercent = 100
		if c.snap.JobID != "" {
			c.snap.DownloadURL = c.backend.DownloadURL(c.snap.JobID)
		}
	}
	if to == StateFailed {
		c.snap.Err = err
		c.snap.LocalFailure = local
	}
	c.logger.Debug().Str("job_id", c.snap.JobID).Str("state", string(to)).Err(err).Msg("lifecycle: job finished")
	c.transition(to)
}

func (c *Coordinator) publish() {
	snap := c.snap
	c.current.Store(&snap)
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(snap)
	}
}

// post delivers msg to the actor unless it has already stopped.
func (c *Coordinator) post(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.stopped:
	}
}

func (c *Coordinator) spawn(fn func()) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		fn()
	}()
}

func (c *Coordinator) startUpload(ctx context.Context, in Input) {
	c.pendingRequest = in.Request
	c.spawn(func() {
		result, err := c.backend.Upload(ctx, in.File, in.Request.TargetSizeMB, in.Request.AudioBitrateKbps, func(p int) {
			c.post(uploadProgressMsg{percent: p})
		})
		c.post(uploadDoneMsg{result: result, err: err})
	})
}

func (c *Coordinator) startSubmit(ctx context.Context, req domain.EncodeRequest) {
	c.submitting = true
	c.spawn(func() {
		job, err := c.backend.StartCompress(ctx, req)
		c.post(submitDoneMsg{job: job, err: err})
	})
}

func (c *Coordinator) openStream(ctx context.Context) {
	jobID := c.snap.JobID
	c.spawn(func() {
		stream, err := c.backend.OpenProgressStream(ctx, jobID)
		select {
		case c.inbox <- streamOpenedMsg{stream: stream, err: err}:
		case <-c.stopped:
			if stream != nil {
				_ = stream.Close()
			}
		}
	})
}

func (c *Coordinator) readStream(stream EventStream) {
	c.spawn(func() {
		for {
			ev, err := stream.Next()
			if err != nil {
				c.post(streamEndedMsg{err: err})
				return
			}
			c.post(streamEventMsg{event: ev})
			if ev.Terminal {
				return
			}
		}
	})
}

func (c *Coordinator) startCancel(ctx context.Context) {
	if c.cancelling {
		return
	}
	c.cancelling = true
	c.cancelPending = false
	jobID := c.snap.JobID
	c.spawn(func() {
		outcome, err := c.backend.CancelJob(ctx, jobID)
		c.post(cancelAckMsg{outcome: outcome, err: err})
	})
}

func serverFailure(message string) error {
	if message == "" {
		return ErrJobFailed
	}
	return fmt.Errorf("%w: %s", ErrJobFailed, message)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
