package scholar

import (
	"errors"
	"fmt"
)

// Kind classifies a source failure so retry policy can dispatch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientNetwork
	KindRateLimited
	KindNotFound
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Common errors returned by the Scholar client.
var (
	// ErrNotFound indicates the profile or publication does not exist.
	ErrNotFound = errors.New("not found on Google Scholar")

	// ErrRateLimited indicates a rate-limit status or a captcha/block page.
	ErrRateLimited = errors.New("Google Scholar rate limit or block page")

	// ErrNetworkError indicates a transport failure.
	ErrNetworkError = errors.New("network error communicating with Google Scholar")

	// ErrInvalidResponse indicates a page that could not be parsed.
	ErrInvalidResponse = errors.New("invalid response from Google Scholar")
)

var kindSentinels = map[Kind]error{
	KindTransientNetwork:  ErrNetworkError,
	KindRateLimited:       ErrRateLimited,
	KindNotFound:          ErrNotFound,
	KindMalformedResponse: ErrInvalidResponse,
}

// Error is a classified failure from a source operation.
type Error struct {
	Kind       Kind
	Op         string // "lookup_author", "fill_publication", ...
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("scholar %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, StatusCode: status, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnknown
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsRateLimited returns true if the error indicates rate limiting or blocking.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}
