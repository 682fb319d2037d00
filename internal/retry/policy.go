// Package retry decides what the fetch loop does after a failed attempt.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/matsen/scholarsync/internal/scholar"
)

// Decision is the action to take after a failed attempt.
type Decision int

const (
	// GiveUp stops retrying this operation.
	GiveUp Decision = iota
	// Retry tries again after Backoff.
	Retry
	// RotateAndRetry requests a new identity, then tries again.
	RotateAndRetry
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case RotateAndRetry:
		return "rotate_and_retry"
	default:
		return "give_up"
	}
}

// Default policy values.
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = time.Minute
)

// Policy bounds attempts and chooses between retrying, rotating and giving
// up based on the kind of error.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewPolicy returns a policy allowing maxAttempts attempts with the default
// backoff bounds.
func NewPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Decide returns the action after attempt (1-based) failed with err.
// canRotate reports whether an identity rotator is available.
func (p Policy) Decide(attempt int, err error, canRotate bool) Decision {
	if err == nil {
		return GiveUp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return GiveUp
	}
	if attempt >= p.maxAttempts() {
		return GiveUp
	}

	switch scholar.KindOf(err) {
	case scholar.KindNotFound:
		return GiveUp
	case scholar.KindRateLimited, scholar.KindTransientNetwork, scholar.KindMalformedResponse, scholar.KindUnknown:
		// Captcha pages often parse as malformed, so all of these are
		// treated as possible blocks.
		if canRotate {
			return RotateAndRetry
		}
		return Retry
	}
	return GiveUp
}

// Backoff returns the wait before the attempt following attempt (1-based):
// BaseBackoff doubled per attempt, capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	limit := p.MaxBackoff
	if limit <= 0 {
		limit = DefaultMaxBackoff
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
