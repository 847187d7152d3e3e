package lifecycle

import "errors"

// State is the coordinator's view of one job.
type State string

const (
	StateCreated   State = "created"
	StateUploading State = "uploading"
	StateSubmitted State = "submitted"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var (
	// ErrAlreadyStarted is returned when Run or Follow is called twice.
	ErrAlreadyStarted = errors.New("lifecycle: coordinator already started")
	// ErrFinished is returned by Cancel once the job is terminal.
	ErrFinished = errors.New("lifecycle: job already finished")
	// ErrJobFailed wraps the message of a server-reported failure.
	ErrJobFailed = errors.New("lifecycle: job failed")
)

// Snapshot is an immutable copy of the coordinator state.
type Snapshot struct {
	State           State
	JobID           string
	UploadPercent   int
	ProgressPercent int
	Phase           string
	DownloadURL     string
	// Err explains a Failed state.
	Err error
	// LocalFailure marks a Failed state the client concluded on its own
	// (transport fault, dropped stream, caller teardown) rather than one the
	// server reported.
	LocalFailure bool
	// CancelErr holds the last cancel request failure. The job keeps running.
	CancelErr error
}

// allowed lists every valid transition. Anything else is a bug.
var allowed = map[State][]State{
	StateCreated:   {StateUploading, StateSubmitted, StateCancelled, StateFailed},
	StateUploading: {StateSubmitted, StateFailed, StateCancelled},
	StateSubmitted: {StateStreaming, StateCompleted, StateFailed, StateCancelled},
	StateStreaming: {StateStreaming, StateCompleted, StateFailed, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
