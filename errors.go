package pathfinder

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Domain and Session methods. Transaction
// failures carry a *TransactionError with the matching FailReason;
// these sentinels are for conditions a caller checks with errors.Is
// without caring about the wire-level reason code.
var (
	// ErrSessionClosed is the error a subscription's Token reports when
	// the subscription ended because its owning session closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrDomainStopped is returned when an operation is attempted on a
	// domain that has shut down.
	ErrDomainStopped = errors.New("domain stopped")

	// ErrUnknownCommand is returned when a request names a command
	// outside the closed set the protocol defines.
	ErrUnknownCommand = errors.New("unknown command")
)

// TransactionError is the error a domain command returns when a
// transaction fails for a protocol-visible reason. It carries the
// FailReason sent back to the client as the "fail-reason" wire field.
type TransactionError struct {
	Reason  FailReason
	Message string
}

func (e *TransactionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pathfinder: %s: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("pathfinder: %s", e.Reason)
}

// IsReason reports whether err is a *TransactionError carrying reason.
func IsReason(err error, reason FailReason) bool {
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Reason == reason
	}
	return false
}

// fail builds a *TransactionError for the given reason.
func fail(reason FailReason, format string, args ...any) *TransactionError {
	return &TransactionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
