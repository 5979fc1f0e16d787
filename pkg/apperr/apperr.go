// Package apperr tags errors with a kind so callers can decide between
// retrying, failing fast, or degrading without inspecting error strings.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindRateLimited
	KindAuth
	KindInvalidInput
	KindMalformedOutput
	KindInvariant
	KindLockTimeout
	KindNotFound
	// KindOrderUnrecorded marks an order the broker accepted that could not
	// be written to the ledger.
	KindOrderUnrecorded
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindInvalidInput:
		return "invalid_input"
	case KindMalformedOutput:
		return "malformed_output"
	case KindInvariant:
		return "invariant"
	case KindLockTimeout:
		return "lock_timeout"
	case KindNotFound:
		return "not_found"
	case KindOrderUnrecorded:
		return "order_unrecorded"
	default:
		return "unknown"
	}
}

// Error is an error annotated with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind and op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost kinded error in err's chain.
// Untagged network errors are reported as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// KindFromStatus maps an HTTP status code to a Kind.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// FromStatus builds a kinded error for a non-successful HTTP response.
func FromStatus(op string, status int, body string) error {
	return &Error{
		Kind: KindFromStatus(status),
		Op:   op,
		Err:  fmt.Errorf("unexpected status %d: %s", status, body),
	}
}
