package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a checkpoint/restart error with a structured code.
//
// Codes ending in 4xxx are consistency failures (the checkpoint set or the
// process layout is not what the protocol expects); 5xxx are IO or transport
// failures. Both kinds are fatal to the run.
type DomainError struct {
	Code    string // Error code (e.g., "PB-CKPT-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with a format string.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Checkpoint Errors (CKPT)
// ============================================================================

var (
	// ErrCheckpointMismatch indicates files or processes disagree on the
	// checkpoint number.
	ErrCheckpointMismatch = NewDomainError("PB-CKPT-4001", "checkpoint number mismatch")

	// ErrFileCountMismatch indicates processes found different numbers of
	// checkpoint files during a parallel restart.
	ErrFileCountMismatch = NewDomainError("PB-CKPT-4002", "checkpoint file count mismatch")

	// ErrNotWorker indicates a process without a worker pool was sent a
	// subproblem.
	ErrNotWorker = NewDomainError("PB-CKPT-4003", "subproblem sent to non-worker")

	// ErrBufferShrink indicates a receive-buffer resize request asked for
	// less than the current size.
	ErrBufferShrink = NewDomainError("PB-CKPT-4004", "buffer shrink requested")

	// ErrProcessCeiling indicates a file name carries a process number at or
	// above the known ceiling.
	ErrProcessCeiling = NewDomainError("PB-CKPT-4005", "process number out of range")

	// ErrMalformedFileName indicates a checkpoint file name did not parse.
	ErrMalformedFileName = NewDomainError("PB-CKPT-4006", "malformed checkpoint file name")

	// ErrCheckpointZero indicates checkpoint number 0, which is reserved.
	ErrCheckpointZero = NewDomainError("PB-CKPT-4007", "checkpoint number zero is reserved")

	// ErrProcessGap indicates the process numbers of a checkpoint set are
	// not a dense 0..n-1 range.
	ErrProcessGap = NewDomainError("PB-CKPT-4008", "missing process in checkpoint set")

	// ErrCheckpointIO indicates a checkpoint read, write or decode failure.
	ErrCheckpointIO = NewDomainError("PB-CKPT-5001", "checkpoint io failure")

	// ErrRecordTooLarge indicates a forwarded record exceeded the receiver's
	// negotiated buffer size.
	ErrRecordTooLarge = NewDomainError("PB-CKPT-5002", "record exceeds receive buffer")
)

// ============================================================================
// Communication Errors (COMM)
// ============================================================================

var (
	// ErrInvalidRank indicates a rank outside 0..size-1.
	ErrInvalidRank = NewDomainError("PB-COMM-4001", "invalid rank")

	// ErrUnexpectedMessage indicates a message with a tag the protocol step
	// does not accept.
	ErrUnexpectedMessage = NewDomainError("PB-COMM-4002", "unexpected message")

	// ErrTransport indicates a message could not be delivered.
	ErrTransport = NewDomainError("PB-COMM-5001", "transport failure")
)
