package job

import "fmt"

// SubmissionError is a service rejection of the submitted request.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Message)
}

// JobFailedError reports that the service executed the job and it failed.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return "job failed"
	}
	return fmt.Sprintf("job failed: %s", e.Message)
}

// RetryExhaustedError is raised when consecutive transient failures (or
// consecutive unrecognised statuses) exceed the configured bound.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }
