package darkhold

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is the error object carried by a response frame from the app-server.
type Error struct {
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error returns the error message
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return "RPC error"
	}
	return e.Message
}

// TransportClosedError indicates the app-server child exited while the
// gateway still needed it.
type TransportClosedError struct {
	// SessionId identifies the child that went away.
	SessionId int64
	// Reason carries the exit cause, if known.
	Reason error
}

// Error implements the error interface. The message is stable; the HTTP
// surface forwards it verbatim.
func (e *TransportClosedError) Error() string {
	return "app-server exited"
}

// Unwrap exposes the exit cause.
func (e *TransportClosedError) Unwrap() error {
	return e.Reason
}

// NewTransportClosedError constructs a new TransportClosedError.
func NewTransportClosedError(sessionId int64, reason error) *TransportClosedError {
	return &TransportClosedError{SessionId: sessionId, Reason: reason}
}

// IsTransportClosed returns true if err is or wraps a TransportClosedError.
func IsTransportClosed(err error) bool {
	var target *TransportClosedError
	return errors.As(err, &target)
}

// RPCTimeoutError indicates no response arrived before the call deadline.
type RPCTimeoutError struct {
	// Method is the call that timed out.
	Method string
}

// Error implements the error interface.
func (e *RPCTimeoutError) Error() string {
	return fmt.Sprintf("RPC request timed out: %s", e.Method)
}

// NewRPCTimeoutError constructs a new RPCTimeoutError.
func NewRPCTimeoutError(method string) *RPCTimeoutError {
	return &RPCTimeoutError{Method: method}
}

// IsRPCTimeout returns true if err is or wraps an RPCTimeoutError.
func IsRPCTimeout(err error) bool {
	var target *RPCTimeoutError
	return errors.As(err, &target)
}
