package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure so callers can decide whether the
// incoming request stays retryable.
type Kind string

const (
	// BadInput: malformed amount, unacceptable payment status and the like.
	// The request is usually left Received so the caller may resubmit.
	BadInput Kind = "bad_input"

	// NotFound: a referenced order, product, owner or balance is missing.
	// Surfaced as a server-side inconsistency, always audit-logged.
	NotFound Kind = "not_found"

	// StoreUnavailable: a document-store read failed for a reason other
	// than a missing document. The request stays Received and the delivery
	// can be retried.
	StoreUnavailable Kind = "store_unavailable"

	// SignatureInvalid is terminal: the request is marked Failed and the
	// callback is never retried.
	SignatureInvalid Kind = "signature_invalid"

	// TransactionFailed: the atomic ledger write rolled back. The request
	// remains Received and is retryable by re-invocation.
	TransactionFailed Kind = "transaction_failed"

	// GatewayUnavailable: the outbound charge-initiation call failed or
	// timed out.
	GatewayUnavailable Kind = "gateway_unavailable"
)

// Fault is a typed workflow error. It wraps an optional cause so that
// errors.Is / errors.As keep working through it.
type Fault struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return f.Msg + ": " + f.Cause.Error()
	}
	return f.Msg
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// New builds a Fault without a cause.
func New(kind Kind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a Fault around an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf reports the Kind of err, or "" when err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err carries a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
