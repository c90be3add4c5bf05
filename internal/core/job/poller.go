package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ecmwf/ecmwf-api-client/internal/core/api"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
)

// Poller drives one job from submission to a terminal state. It owns the
// back-off schedule and the transient/permanent retry policy; the actual
// HTTP mechanics live in the api client.
type Poller struct {
	client *api.Client
	policy Backoff
	sink   logsink.Sink
}

func NewPoller(client *api.Client, policy Backoff, sink logsink.Sink) *Poller {
	if sink == nil {
		sink = logsink.Discard()
	}
	return &Poller{client: client, policy: policy, sink: sink}
}

// Submit posts the request payload to endpoint and returns the created Job.
// Transient failures are retried under the back-off policy; a service
// rejection surfaces as a SubmissionError carrying the service's message.
func (p *Poller) Submit(ctx context.Context, endpoint string, payload any) (*Job, error) {
	var resp *api.Response
	for attempt := 0; ; attempt++ {
		var err error
		resp, err = p.client.Call(ctx, http.MethodPost, endpoint, payload)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			p.sink.Emit("Request cancelled")
			return nil, err
		}
		if api.IsTransient(err) {
			if attempt+1 >= p.policy.Retries {
				p.sink.Emit(fmt.Sprintf("Could not contact the service after %d tries, failing", attempt+1))
				return nil, &RetryExhaustedError{Attempts: attempt + 1, Last: err}
			}
			delay := p.policy.Next(attempt)
			p.sink.Emit(fmt.Sprintf("Error contacting the service, retrying in %s ...", delay))
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		var te *api.TransportError
		if errors.As(err, &te) {
			return nil, &SubmissionError{Message: te.Body}
		}
		var ae *api.APIError
		if errors.As(err, &ae) {
			return nil, &SubmissionError{Message: ae.Message}
		}
		return nil, err
	}

	j := &Job{Href: resp.Location, Status: Parse(resp.Status)}
	if j.Href == "" {
		if href, ok := resp.Body["href"].(string); ok {
			j.Href = href
		}
	}
	if j.Href == "" {
		return nil, &SubmissionError{Message: "no job location in submission response"}
	}
	if name, ok := resp.Body["name"].(string); ok && name != "" {
		j.ID = name
	} else {
		j.ID = uuid.NewString()
	}
	// Some requests complete at submission (cached results); the artifact
	// descriptor is then already in the reply.
	if j.Status == StatusComplete {
		j.Result = resultFrom(resp.Body)
	}

	log.Debug().Str("job", j.ID).Str("href", j.Href).Str("status", string(j.Status)).Msg("job submitted")
	p.sink.Emit("Request submitted")
	p.sink.Emit("Request id: " + j.ID)

	return j, nil
}

// Wait polls the job's href until the service reports a terminal status,
// sleeping the back-off schedule between attempts. A Retry-After hint from
// the service can stretch an interval but never past the cap, and intervals
// never shrink.
//
// StatusComplete returns nil with j.Result populated; StatusFailed returns
// a JobFailedError with the service diagnostic. Transient transport
// failures and unrecognised statuses are absorbed up to the retry bound.
// Cancellation is honoured before every call and every sleep.
func (p *Poller) Wait(ctx context.Context, j *Job) error {
	start := time.Now()
	var (
		fails    int
		unknowns int
		last     time.Duration
	)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			p.sink.Emit("Request cancelled")
			return fmt.Errorf("poll %s: %w", j.ID, err)
		}

		resp, err := p.client.Call(ctx, http.MethodGet, j.Href, nil)
		switch {
		case err == nil:
			fails = 0
			status := Parse(resp.Status)
			if status == StatusUnknown {
				unknowns++
				log.Warn().Str("job", j.ID).Str("status", resp.Status).Msg("unrecognised job status")
				if unknowns > p.policy.Retries {
					return &RetryExhaustedError{
						Attempts: unknowns,
						Last:     fmt.Errorf("unrecognised status %q", resp.Status),
					}
				}
			} else {
				unknowns = 0
			}
			j.Status = status
			p.sink.Emit(fmt.Sprintf("Request is %s (%s elapsed)", status, time.Since(start).Round(time.Second)))

			switch status {
			case StatusComplete:
				j.Result = resultFrom(resp.Body)
				return nil
			case StatusFailed:
				j.LastMessage = diagnosticFrom(resp.Body)
				p.sink.Emit("Request failed: " + j.LastMessage)
				return &JobFailedError{Message: j.LastMessage}
			}

		case ctx.Err() != nil:
			p.sink.Emit("Request cancelled")
			return err

		case api.IsTransient(err):
			fails++
			j.RetryCount++
			if fails > p.policy.Retries {
				p.sink.Emit(fmt.Sprintf("Could not contact the service after %d tries, failing", fails))
				return &RetryExhaustedError{Attempts: fails, Last: err}
			}
			p.sink.Emit(fmt.Sprintf("Error contacting the service, retrying (%v)", err))

		default:
			// An error field in a poll body means the job itself went
			// wrong, not the transport.
			var ae *api.APIError
			if errors.As(err, &ae) {
				j.Status = StatusFailed
				j.LastMessage = ae.Message
				p.sink.Emit("Request failed: " + j.LastMessage)
				return &JobFailedError{Message: ae.Message}
			}
			p.sink.Emit("Request failed: " + err.Error())
			return err
		}

		delay := p.policy.Next(attempt)
		if resp != nil && resp.RetryAfter > delay {
			delay = p.policy.Clamp(resp.RetryAfter)
		}
		if delay < last {
			delay = last
		}
		last = delay

		if err := sleep(ctx, delay); err != nil {
			p.sink.Emit("Request cancelled")
			return fmt.Errorf("poll %s: %w", j.ID, err)
		}
	}
}

// sleep waits for d or until the context is cancelled, whichever is first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// resultFrom extracts the artifact descriptor from a complete job's body.
// The service nests it under result; href and location are both accepted
// for the download URL.
func resultFrom(body map[string]any) *Result {
	src := body
	if nested, ok := body["result"].(map[string]any); ok {
		src = nested
	}
	r := &Result{}
	if loc, ok := src["location"].(string); ok {
		r.Location = loc
	} else if href, ok := src["href"].(string); ok {
		r.Location = href
	}
	if size, ok := src["size"].(float64); ok {
		r.Size = int64(size)
	}
	return r
}

// diagnosticFrom pulls the most useful failure text out of a response body.
func diagnosticFrom(body map[string]any) string {
	for _, key := range []string{"error", "reason", "message"} {
		if v, ok := body[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}
