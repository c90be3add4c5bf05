package job

// Status is the lifecycle state the service reports for a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"

	// StatusUnknown is client-only: the service returned a status string
	// outside the known set. Treated as non-terminal and retried up to
	// the poll retry bound.
	StatusUnknown Status = "unknown"
)

// Parse maps a service status string onto the closed enum. Anything
// unrecognised, including an empty string, becomes StatusUnknown.
func Parse(s string) Status {
	switch Status(s) {
	case StatusQueued, StatusActive, StatusComplete, StatusFailed:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further status polling should happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job is one submission's lifecycle. It lives for a single engine
// invocation and is never shared across goroutines.
type Job struct {
	// ID is the service-assigned request name, or a locally generated
	// correlation id when the service did not supply one.
	ID string

	// Href identifies the job on the service, assigned at submission and
	// stable for the job's life.
	Href string

	Status Status

	// Offset is the byte count already on disk, used to resume a partial
	// download with a ranged request.
	Offset int64

	// RetryCount and LastMessage are diagnostics updated by the poll loop.
	RetryCount  int
	LastMessage string

	// Result is set once the job reaches StatusComplete.
	Result *Result
}

// Result describes the artifact a complete job produced.
type Result struct {
	Location string
	Size     int64
}
