package domain

import "time"

// JobState enumerates the server-reported lifecycle states of a compression job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether the job has permanently left active processing.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known job states.
func (s JobState) Valid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Job is a server-side unit of work representing one compression task.
type Job struct {
	ID              string    `json:"id"`
	State           JobState  `json:"state"`
	ProgressPercent int       `json:"progress_percent"`
	Phase           string    `json:"phase,omitempty"`
	ResultRef       string    `json:"result_ref,omitempty"`
	Error           string    `json:"error,omitempty"`
	SourceRef       string    `json:"source_ref,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	TargetSizeMB    float64   `json:"target_size_mb,omitempty"`
	OutputBytes     int64     `json:"output_bytes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
}

// CancelOutcome is the server acknowledgement of a cancel request. State is
// the state the job settled into, which is Completed when the job finished
// before the cancel landed.
type CancelOutcome struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`
}

// Upload is the server record of a received source file.
type Upload struct {
	Ref             string
	Filename        string
	StorageKey      string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
	VideoKbps       float64
	AudioKbps       float64
	CreatedAt       time.Time
}
