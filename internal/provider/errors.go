package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrManualProvider is returned when an adapter is requested for a provider
// that is managed by hand.
var ErrManualProvider = errors.New("provider: manual providers have no api adapter")

// ErrUnsupported is returned for operations outside an adapter's capabilities.
var ErrUnsupported = errors.New("provider: operation not supported")

// AuthenticationError means the credentials were rejected or could not be
// refreshed.
type AuthenticationError struct {
	Provider string
	Message  string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitError means the provider throttled the request.  RetryAfter is
// zero when the provider gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// APIError is any other non-2xx or undecodable provider response.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: api error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is, or wraps, an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err is, or wraps, a RateLimitError.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsAPI reports whether err is, or wraps, an APIError.
func IsAPI(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsTopLevel reports whether err invalidates a whole sync run rather than
// a single item: bad credentials, throttling, or a missing adapter.
func IsTopLevel(err error) bool {
	return IsAuthentication(err) || IsRateLimit(err) || errors.Is(err, ErrManualProvider)
}
