package domain

// Phases reported on progress events.
const (
	PhaseQueued     = "queued"
	PhaseEncoding   = "encoding"
	PhaseFinalizing = "finalizing"
	PhaseDone       = "done"
)

// ProgressEvent is one server-pushed update for a job. Events for a job form
// an ordered stream that ends with exactly one Terminal event.
type ProgressEvent struct {
	JobID       string   `json:"job_id"`
	Percent     int      `json:"percent"`
	Phase       string   `json:"phase,omitempty"`
	State       JobState `json:"state,omitempty"`
	Terminal    bool     `json:"terminal"`
	Message     string   `json:"message,omitempty"`
	DownloadURL string   `json:"download_url,omitempty"`
}

// TerminalState returns the job state a terminal event settles into. A
// terminal event without an explicit state is read as completed when its
// phase is done and as failed otherwise.
func (e ProgressEvent) TerminalState() JobState {
	if !e.Terminal {
		return ""
	}
	if e.State.Terminal() {
		return e.State
	}
	if e.Phase == PhaseDone {
		return JobStateCompleted
	}
	return JobStateFailed
}

// TerminalEventFor builds the event that describes a job already in a
// terminal state. It is what late subscribers receive.
func TerminalEventFor(job Job) ProgressEvent {
	ev := ProgressEvent{
		JobID:    job.ID,
		Percent:  job.ProgressPercent,
		Phase:    job.Phase,
		State:    job.State,
		Terminal: true,
		Message:  job.Error,
	}
	if job.State == JobStateCompleted {
		ev.Percent = 100
		ev.Phase = PhaseDone
	}
	return ev
}
