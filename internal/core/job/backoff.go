package job

import "time"

// Backoff is the wait schedule between poll attempts: linear growth from
// Initial in Step increments, capped at Cap. The service is explicitly
// uncooperative about fast polling, so the schedule only ever grows.
type Backoff struct {
	Initial time.Duration
	Step    time.Duration
	Cap     time.Duration

	// Retries bounds consecutive transient failures (and consecutive
	// unknown statuses) before the poll loop gives up.
	Retries int
}

// Next returns the wait before poll attempt n (zero-based), clamped to Cap.
func (b Backoff) Next(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := b.Initial + time.Duration(n)*b.Step
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	if d < 0 {
		return 0
	}
	return d
}

// Clamp bounds a service-supplied interval hint to Cap.
func (b Backoff) Clamp(d time.Duration) time.Duration {
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}
