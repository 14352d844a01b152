package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/airctrl/airctrl/internal/session"
)

// Error types for protocol client operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConnect indicates the transport session could not be created
	ErrTypeConnect ErrorType = iota
	// ErrTypeSync indicates the sync handshake round-trip failed
	ErrTypeSync
	// ErrTypeTimeout indicates an operation exceeded its deadline
	ErrTypeTimeout
	// ErrTypeNotSynced indicates an operation was attempted before any successful sync
	ErrTypeNotSynced
	// ErrTypeControl indicates a control command exhausted its retries
	ErrTypeControl
	// ErrTypeDecode indicates a malformed JSON payload
	ErrTypeDecode
	// ErrTypeStream indicates a status observation terminated abnormally
	ErrTypeStream
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnect:
		return "Connect Error"
	case ErrTypeSync:
		return "Sync Failed"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeNotSynced:
		return "Not Synced"
	case ErrTypeControl:
		return "Control Failed"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeStream:
		return "Stream Terminated"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ProtocolError represents an error that occurred during device
// communication
type ProtocolError struct {
	Type    ErrorType      // Category of error
	Message string         // Human-readable error message
	Values  map[string]any // Control fields that failed (ErrTypeControl only)
	Err     error          // Underlying error (if any)
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewConnectError creates a transport-creation error
func NewConnectError(message string, err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeConnect, Message: message, Err: err}
}

// NewSyncError creates a handshake failure error
func NewSyncError(message string, err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeSync, Message: message, Err: err}
}

// NewTimeoutError creates a deadline-exceeded error
func NewTimeoutError(message string, err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeTimeout, Message: message, Err: err}
}

// NewNotSyncedError creates an operation-before-sync error
func NewNotSyncedError(err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeNotSynced, Message: "no session token established", Err: err}
}

// NewControlError creates a retries-exhausted error carrying the
// fields that could not be set
func NewControlError(values map[string]any) *ProtocolError {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &ProtocolError{
		Type:    ErrTypeControl,
		Message: fmt.Sprintf("device rejected control values for %s after all retries", strings.Join(keys, ", ")),
		Values:  values,
	}
}

// NewDecodeError creates a malformed-JSON error
func NewDecodeError(message string, err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeDecode, Message: message, Err: err}
}

// NewStreamError creates a stream-termination error wrapping the cause
func NewStreamError(err error) *ProtocolError {
	return &ProtocolError{Type: ErrTypeStream, Message: "status observation terminated", Err: err}
}

// IsConnectError checks if an error is a transport-creation failure
func IsConnectError(err error) bool {
	return hasType(err, ErrTypeConnect)
}

// IsSyncFailed checks if an error is a handshake failure
func IsSyncFailed(err error) bool {
	return hasType(err, ErrTypeSync)
}

// IsTimeout checks if an error is a deadline-exceeded failure
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsNotSynced checks if an error is an operation-before-sync failure
func IsNotSynced(err error) bool {
	return hasType(err, ErrTypeNotSynced) || errors.Is(err, session.ErrNotSynced)
}

// IsControlFailed checks if an error is a retries-exhausted failure
func IsControlFailed(err error) bool {
	return hasType(err, ErrTypeControl)
}

// IsDecodeError checks if an error is a malformed-JSON failure
func IsDecodeError(err error) bool {
	return hasType(err, ErrTypeDecode)
}

// IsStreamTerminated checks if an error is an abnormal stream end
func IsStreamTerminated(err error) bool {
	return hasType(err, ErrTypeStream)
}

func hasType(err error, et ErrorType) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr) && protoErr.Type == et
}

// isDeadline reports whether err is a context deadline or an
// os-level timeout. The device is known to be unresponsive on first
// boot, so timeouts are surfaced distinctly from other transport
// errors.
func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}
