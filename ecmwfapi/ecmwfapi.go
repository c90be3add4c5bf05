// Package ecmwfapi is a client for the ECMWF Web API, a batch
// data-extraction service. A request describing a dataset is submitted,
// the service processes it asynchronously, and the client polls until the
// job completes and then streams the resulting file to local disk.
//
// Two entry points mirror the two service surfaces: DataServer for the
// public dataset archive and Service for member-state services such as
// mars. Both block until the artifact is on disk or a classified error
// occurs.
package ecmwfapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ecmwf/ecmwf-api-client/internal/config"
	"github.com/ecmwf/ecmwf-api-client/internal/core/api"
	"github.com/ecmwf/ecmwf-api-client/internal/core/job"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
	"github.com/ecmwf/ecmwf-api-client/internal/core/request"
	"github.com/ecmwf/ecmwf-api-client/internal/core/transfer"
)

// Re-exported engine types. The concrete implementations live under
// internal; these aliases are the public names.
type (
	Credentials    = config.Credentials
	Settings       = config.Settings
	Request        = request.Request
	Field          = request.Field
	RequestBuilder = request.Builder
	Job            = job.Job
	Status         = job.Status
	Backoff        = job.Backoff
	LogSink        = logsink.Sink

	ConfigError         = config.ConfigError
	TransportError      = api.TransportError
	APIError            = api.APIError
	SubmissionError     = job.SubmissionError
	JobFailedError      = job.JobFailedError
	RetryExhaustedError = job.RetryExhaustedError
	IncompleteError     = transfer.IncompleteError
)

const (
	StatusQueued   = job.StatusQueued
	StatusActive   = job.StatusActive
	StatusComplete = job.StatusComplete
	StatusFailed   = job.StatusFailed
	StatusUnknown  = job.StatusUnknown
)

// ResolveCredentials determines the credentials the engine will use, trying
// the ECMWF_API_KEY/URL/EMAIL environment triple, then an rc file named by
// ECMWF_API_RC_FILE, then ~/.ecmwfapirc, then anonymous access. See
// internal/config.Resolve for the exact precedence rules.
func ResolveCredentials() (Credentials, error) {
	return config.Resolve(os.Getenv, os.ReadFile)
}

// NewRequest builds a Request from ordered fields.
func NewRequest(fields ...Field) Request { return request.New(fields...) }

// LoadRequest reads a request description from a JSON, TOML or YAML file.
func LoadRequest(path string) (Request, error) { return request.LoadFile(path) }

// engine is the assembled request execution pipeline shared by DataServer
// and Service. One engine value runs one job at a time; run concurrent
// retrievals on separate instances.
type engine struct {
	creds    Credentials
	settings Settings
	sink     LogSink
	backoff  Backoff
	quiet    bool
	news     bool
}

func newEngine(creds Credentials, opts []Option) (*engine, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	e := &engine{
		creds:    creds,
		settings: settings,
		sink:     logsink.Stdout(),
		news:     true,
	}
	e.backoff = Backoff{
		Initial: settings.Poll.Initial,
		Step:    settings.Poll.Step,
		Cap:     settings.Poll.Cap,
		Retries: settings.Poll.Retries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Option customises an engine at construction.
type Option func(*engine)

// WithSink redirects the human-readable progress lines.
func WithSink(s LogSink) Option { return func(e *engine) { e.sink = s } }

// WithLogFunc is WithSink for a plain function.
func WithLogFunc(f func(string)) Option { return WithSink(logsink.Func(f)) }

// WithQuiet suppresses service messages and news; progress lines still flow.
func WithQuiet() Option { return func(e *engine) { e.quiet = true; e.news = false } }

// WithBackoff replaces the poll back-off policy.
func WithBackoff(b Backoff) Option { return func(e *engine) { e.backoff = b } }

// WithSettings replaces the engine tunables wholesale, including the poll
// policy derived from them; combine with WithBackoff (after it) to override
// the policy separately.
func WithSettings(s Settings) Option {
	return func(e *engine) {
		e.settings = s
		e.backoff = Backoff{
			Initial: s.Poll.Initial,
			Step:    s.Poll.Step,
			Cap:     s.Poll.Cap,
			Retries: s.Poll.Retries,
		}
	}
}

// run executes a full retrieval against one service path: session preamble,
// submit, poll until terminal, stream the artifact to target, clean up the
// job on the server. It returns the local path written.
func (e *engine) run(ctx context.Context, svcPath string, b RequestBuilder, target string) (string, error) {
	req, err := b.BuildRequest()
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if req.Len() == 0 {
		return "", &SubmissionError{Message: "empty request"}
	}
	if target == "" {
		return "", &SubmissionError{Message: "no target given"}
	}

	client := api.NewClient(e.creds, e.settings, e.sink)
	client.SetQuiet(e.quiet)
	e.sink.Emit("ECMWF API at " + e.creds.URL)

	if err := e.preamble(ctx, client, svcPath); err != nil {
		return "", err
	}

	poller := job.NewPoller(client, e.backoff, e.sink)
	j, err := poller.Submit(ctx, client.Endpoint(svcPath, "requests"), req)
	if err != nil {
		return "", err
	}
	switch {
	case j.Status == StatusFailed:
		return "", &JobFailedError{Message: "rejected at submission"}
	case !j.Status.Terminal():
		if err := poller.Wait(ctx, j); err != nil {
			return "", err
		}
	}

	if err := e.download(ctx, client, j, target); err != nil {
		return "", err
	}

	e.cleanup(ctx, client, j)
	e.sink.Emit("Done")
	return target, nil
}

// get performs one GET under the same transient-retry policy submission
// uses, so an unlucky 503 at session start does not abort the whole run.
func (e *engine) get(ctx context.Context, client *api.Client, url string) (*api.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := client.Call(ctx, http.MethodGet, url, nil)
		if err == nil || ctx.Err() != nil {
			return resp, err
		}
		if !api.IsTransient(err) || attempt+1 >= e.backoff.Retries {
			return nil, err
		}
		delay := e.backoff.Next(attempt)
		e.sink.Emit(fmt.Sprintf("Error contacting the service, retrying in %s ...", delay))
		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// preamble runs the session opening calls: identity, server and service
// information, and news. Identity failures are fatal (they mean the
// credentials are bad); the informational calls are best-effort.
func (e *engine) preamble(ctx context.Context, client *api.Client, svcPath string) error {
	resp, err := e.get(ctx, client, client.Endpoint("who-am-i"))
	if err != nil {
		return fmt.Errorf("who-am-i: %w", err)
	}
	uid, _ := resp.Body["uid"].(string)
	name, _ := resp.Body["full_name"].(string)
	if name == "" {
		name = fmt.Sprintf("user %q", uid)
	}
	e.sink.Emit("Welcome " + name)

	for _, infoPath := range []string{client.Endpoint("info"), client.Endpoint(svcPath, "info")} {
		resp, err := client.Call(ctx, http.MethodGet, infoPath, nil)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		e.emitInfo(resp.Body, uid)
	}

	if e.news {
		if resp, err := client.Call(ctx, http.MethodGet, client.Endpoint(svcPath, "news"), nil); err == nil {
			if text, ok := resp.Body["news"].(string); ok {
				for _, line := range strings.Split(text, "\n") {
					e.sink.Emit(line)
				}
			}
		} else if ctx.Err() != nil {
			return err
		}
	}
	return nil
}

func (e *engine) emitInfo(body map[string]any, uid string) {
	info, ok := body["info"].(map[string]any)
	if !ok {
		return
	}
	if msg, ok := info["message"].(string); ok && msg != "" {
		e.sink.Emit(msg)
	}
	if userMsgs, ok := info["user_messages"].(map[string]any); ok {
		if msg, ok := userMsgs[uid].(string); ok && msg != "" {
			e.sink.Emit(msg)
		}
	}
}

// download streams the artifact, resuming a bounded number of times when
// the transfer is cut short. The retriever itself never retries; resumption
// is decided here, where the original error stays observable.
func (e *engine) download(ctx context.Context, client *api.Client, j *Job, target string) error {
	// An existing target would make the transfer look resumable, so start
	// clean.
	if _, err := os.Stat(target); err == nil {
		if err := os.Truncate(target, 0); err != nil {
			return fmt.Errorf("truncate %s: %w", target, err)
		}
	}
	j.Offset = 0

	retriever := transfer.NewRetriever(client, e.sink)
	attempts := e.settings.Transfer.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		_, err := retriever.Download(ctx, j, target)
		if err == nil {
			return nil
		}

		var incomplete *IncompleteError
		resumable := errors.As(err, &incomplete) || api.IsTransient(err)
		if !resumable || attempt >= attempts || ctx.Err() != nil {
			e.sink.Emit("Transfer failed: " + err.Error())
			return err
		}

		e.sink.Emit(fmt.Sprintf("Transfer interrupted, resuming in %s ...", e.settings.Transfer.Pause))
		if err := wait(ctx, e.settings.Transfer.Pause); err != nil {
			return fmt.Errorf("download %s: %w", j.ID, err)
		}
	}
}

// cleanup deletes the finished job on the service. Best-effort: the result
// is already on disk and the server expires jobs on its own.
func (e *engine) cleanup(ctx context.Context, client *api.Client, j *Job) {
	if j.Href == "" || ctx.Err() != nil {
		return
	}
	if _, err := client.Call(ctx, http.MethodDelete, j.Href, nil); err != nil {
		e.sink.Emit("Could not delete job on server: " + err.Error())
	}
}

func wait(ctx context.Context, d time.Duration) error {
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
