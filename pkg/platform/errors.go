package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an adapter error for retry decisions.
type Kind int

const (
	// KindTransient covers network hiccups and upstream 5xx/429 responses;
	// the call is retried once.
	KindTransient Kind = iota
	// KindPermanent covers auth failures, not-found and other 4xx
	// responses; the call is not retried.
	KindPermanent
	// KindTimeout covers deadline expiry; treated as retryable like
	// transient failures.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is an adapter error carrying the platform, operation and
// classification of the underlying failure.
type Error struct {
	Platform string
	Op       string
	Kind     Kind
	// StatusCode is the upstream HTTP status, when the failure came from
	// an HTTP response.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s error: %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure should get the single retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindTimeout
}

// NewError builds a classified adapter error.
func NewError(platform, op string, kind Kind, err error) *Error {
	return &Error{Platform: platform, Op: op, Kind: kind, Err: err}
}

// Classify wraps err with a kind inferred from its type: context deadline
// expiry maps to timeout, network errors to transient, anything else to
// permanent.
func Classify(platform, op string, err error) *Error {
	return NewError(platform, op, classifyKind(err), err)
}

func classifyKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransient
	}

	return KindPermanent
}

// IsRetryable reports whether err is a retryable adapter error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// StatusCode returns the upstream HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// IsTimeout reports whether err is a timeout adapter error.
func IsTimeout(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
