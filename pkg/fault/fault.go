// Package fault defines the structured error kinds shared by the bridge,
// the resilience wrappers, and the panel handlers.
package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure for retry and reporting decisions.
type Kind string

const (
	// KindTimeout means an operation exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindAborted means an operation was superseded or cancelled on purpose.
	// Aborted failures are never retried and never surface to the user.
	KindAborted Kind = "aborted"
	// KindRemote means the remote data service rejected or failed the operation.
	KindRemote Kind = "remote"
	// KindDisposed means the owning session was torn down while the
	// operation was pending.
	KindDisposed Kind = "disposed"
	// KindProtocol means a malformed or unexpected envelope was observed.
	KindProtocol Kind = "protocol"
)

// Fault is an error carrying a structured kind and a human-readable message.
type Fault struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates a Fault with the given kind and message.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Wrap creates a Fault around an underlying error.
func Wrap(kind Kind, message string, cause error) *Fault {
	return &Fault{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (f *Fault) Unwrap() error {
	return f.cause
}

// Sentinel faults for states that carry no extra detail.
var (
	ErrDisposed = New(KindDisposed, "session disposed")
	ErrAborted  = New(KindAborted, "operation superseded")
	ErrTimeout  = New(KindTimeout, "operation timed out")
)

// KindOf classifies err. The structured kind on a wrapped Fault wins, then
// context cancellation, then (as a legacy fallback only) abort-sounding
// message text. Everything else is reported as KindRemote.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	// Legacy fallback: some remote client errors only signal cancellation
	// through their text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "abort") || strings.Contains(msg, "cancel") {
		return KindAborted
	}
	return KindRemote
}

// IsAbort reports whether err represents an intentionally superseded
// operation. Abort failures must not be retried.
func IsAbort(err error) bool {
	return KindOf(err) == KindAborted
}
