package api

import (
	"errors"
	"fmt"
)

// TransportError is a failed HTTP exchange, classified so callers can apply
// distinct retry policies. Transient covers network-level failures, HTTP 429
// and 5xx (except 501); everything else is permanent.
type TransportError struct {
	Code      int // 0 for network-level failures
	Body      string
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an error the service reported in a response body. Always
// permanent.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service error: %s", e.Message)
}

// IsTransient reports whether err can be retried under a back-off policy.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Transient
}

func transientCode(code int) bool {
	// 429: too many requests. 5xx are retried except 501, which the
	// service uses for "not implemented" and will never recover from.
	return code == 429 || (code >= 500 && code != 501)
}
