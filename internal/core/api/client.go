package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ecmwf/ecmwf-api-client/internal/config"
	"github.com/ecmwf/ecmwf-api-client/internal/core/logsink"
)

// Client is the authenticated transport for the service. It attaches the
// resolved credentials to every outbound call, pages through service
// messages, and decodes JSON responses into a uniform Response.
//
// A Client belongs to a single engine invocation and is not safe for
// concurrent use: the message offset advances as messages are relayed.
type Client struct {
	creds  config.Credentials
	http   *http.Client
	stream *http.Client
	sink   logsink.Sink
	limit  int
	quiet  bool

	// offset is the service-side message cursor, advanced for every
	// message relayed to the sink so pages are not replayed.
	offset int
}

// Response is one decoded service reply.
type Response struct {
	Code int
	Body map[string]any

	// Location is the job href from a 201/202 reply, resolved against the
	// request URL.
	Location string

	// RetryAfter is the service's poll-interval hint, zero when absent.
	RetryAfter time.Duration

	// Status is the body's status field, "" when absent.
	Status string
}

func NewClient(creds config.Credentials, settings config.Settings, sink logsink.Sink) *Client {
	if sink == nil {
		sink = logsink.Discard()
	}
	limit := settings.Limit
	if limit <= 0 {
		limit = 500
	}
	return &Client{
		creds: creds,
		http:  &http.Client{Timeout: settings.Timeout},
		// Artifact downloads run far longer than a single API exchange, so
		// the streaming client carries no overall deadline. Cancellation is
		// still the caller's context.
		stream: &http.Client{},
		sink:   sink,
		limit:  limit,
	}
}

// SetQuiet suppresses relaying of service messages to the sink. The message
// offset still advances so later pages stay aligned.
func (c *Client) SetQuiet(quiet bool) { c.quiet = quiet }

// Call performs one authenticated exchange. target may be absolute or
// relative to the credential URL. A nil payload sends no body.
//
// Failures are classified: network errors, HTTP 429 and 5xx (except 501)
// come back as transient TransportErrors, other non-2xx codes as permanent
// ones, and an error field in an otherwise successful body as an APIError.
// Context cancellation is reported as the context's own error.
func (c *Client) Call(ctx context.Context, method, target string, payload any) (*Response, error) {
	u, err := c.resolve(target)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("offset", strconv.Itoa(c.offset))
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authenticate(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", u.String()).Msg("calling service")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call %s: %w", u.Path, ctx.Err())
		}
		return nil, &TransportError{Transient: true, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Transient: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if res.StatusCode >= 400 {
		return nil, &TransportError{
			Code:      res.StatusCode,
			Body:      string(raw),
			Transient: transientCode(res.StatusCode),
		}
	}

	resp := &Response{Code: res.StatusCode}
	if ra, err := strconv.Atoi(res.Header.Get("Retry-After")); err == nil && ra > 0 {
		resp.RetryAfter = time.Duration(ra) * time.Second
	}
	if res.StatusCode == http.StatusCreated || res.StatusCode == http.StatusAccepted {
		if loc := res.Header.Get("Location"); loc != "" {
			if ref, err := u.Parse(loc); err == nil {
				resp.Location = ref.String()
			}
		}
	}

	if res.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return resp, nil
	}

	if err := json.Unmarshal(raw, &resp.Body); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("invalid response body: %v: %s", err, raw)}
	}

	resp.Status, _ = resp.Body["status"].(string)

	if messages, ok := resp.Body["messages"].([]any); ok {
		for _, m := range messages {
			if !c.quiet {
				c.sink.Emit(fmt.Sprint(m))
			}
			c.offset++
		}
	}

	if msg, ok := resp.Body["error"]; ok {
		return resp, &APIError{Message: fmt.Sprint(msg)}
	}

	log.Debug().Int("code", resp.Code).Str("status", resp.Status).Msg("service reply")

	return resp, nil
}

// Stream performs an authenticated GET for a raw artifact, returning the
// body for streaming along with the advertised content length (-1 when
// unknown). A positive from requests the byte range [from, end] so an
// interrupted transfer can resume.
func (c *Client) Stream(ctx context.Context, target string, from int64) (io.ReadCloser, int64, error) {
	u, err := c.resolve(target)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.authenticate(req)
	if from > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", from))
	}

	res, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("fetch %s: %w", u.Path, ctx.Err())
		}
		return nil, 0, &TransportError{Transient: true, Err: err}
	}

	if res.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
		return nil, 0, &TransportError{
			Code:      res.StatusCode,
			Body:      string(raw),
			Transient: transientCode(res.StatusCode),
		}
	}

	return res.Body, res.ContentLength, nil
}

func (c *Client) authenticate(req *http.Request) {
	req.Header.Set("From", c.creds.Email)
	req.Header.Set("X-ECMWF-KEY", c.creds.Key)
}

func (c *Client) resolve(target string) (*url.URL, error) {
	base, err := url.Parse(c.creds.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL %q: %w", c.creds.URL, err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}
	return base.ResolveReference(ref), nil
}

// Endpoint joins path segments onto the credential base URL.
func (c *Client) Endpoint(parts ...string) string {
	return strings.Join(append([]string{strings.TrimRight(c.creds.URL, "/")}, parts...), "/")
}
