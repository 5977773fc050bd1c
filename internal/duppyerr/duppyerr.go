// Package duppyerr carries the error taxonomy shared by the update engine
// and both front-ends, so neither front-end has to re-derive a wire status
// from string matching on an opaque error.
package duppyerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an update request failed.
type Kind int

const (
	// KindMalformed covers wire decode and JSON parse failures.
	KindMalformed Kind = iota
	// KindUnauthenticated covers missing/invalid TSIG or an unknown key.
	KindUnauthenticated
	// KindUnauthorized covers a key that is not bound to the target zone.
	KindUnauthorized
	// KindPolicyRejected covers zone/TTL/apex-delete rules, prerequisites,
	// and unsupported record types.
	KindPolicyRejected
	// KindBackendFailure covers transaction/apply/commit/rollback failures.
	KindBackendFailure
	// KindInternal covers unexpected, unclassified failures.
	KindInternal
	// KindNotFound covers an SOA query for a zone this server doesn't serve.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindPolicyRejected:
		return "policy_rejected"
	case KindBackendFailure:
		return "backend_failure"
	case KindInternal:
		return "internal_error"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the error type returned by records, engine, and the backends.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns err's underlying message without the "op: kind:"
// prefix Error() adds, so callers that need to show a client the
// reason for a rejection (not just that one occurred) don't also hand
// back internal operation names. It returns "" for an err that isn't an
// *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%s", msg)}
}

// Wrap builds an *Error around an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns KindInternal, the safe default for an
// unclassified failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
