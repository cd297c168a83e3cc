// Package bridge defines the domain types shared across the bridge core:
// client metadata, lifecycle events, and the error kinds surfaced to the
// MCP endpoint. Every error that crosses the MCP boundary carries a short
// human-readable message and no stack traces.
package bridge

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a bridge error. The kinds mirror the failure modes of the
// request path: routing, framing, handler dispatch, and startup.
type Kind string

const (
	// KindNoClientsConnected: a request was issued with no eligible editor client.
	KindNoClientsConnected Kind = "no_clients_connected"

	// KindConnectionClosed: the target client disconnected before the response
	// arrived, or the bridge is shutting down.
	KindConnectionClosed Kind = "connection_closed"

	// KindTimeout: no response within the request timeout (bridge side) or no
	// main-thread dispatch within the barrier window (editor side).
	KindTimeout Kind = "timeout"

	// KindProtocolError: malformed JSON, a missing or invalid command, or an
	// unknown envelope type.
	KindProtocolError Kind = "protocol_error"

	// KindHandlerDisabled: the prefix/resource is registered but disabled.
	KindHandlerDisabled Kind = "handler_disabled"

	// KindHandlerExecution: the handler reported failure or panicked.
	KindHandlerExecution Kind = "handler_execution"

	// KindConfiguration: listener bind failure, invalid config, missing
	// handler manifest, and other unrecoverable startup conditions.
	KindConfiguration Kind = "configuration_error"
)

// Error is the bridge's domain error. The Message field is safe to show to
// the LLM host; wrapped causes stay internal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error with the given kind, message, and cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// ErrNoClients returns the routing error for a request with no eligible
// client. The message names the condition explicitly so the LLM can react.
func ErrNoClients() *Error {
	return NewError(KindNoClientsConnected,
		"No Unity clients connected. Open a Unity project with the bridge package installed and try again.")
}

// ErrConnectionClosed returns the rejection used when a client disconnects
// with requests in flight, or when the bridge shuts down.
func ErrConnectionClosed(clientID string) *Error {
	return NewError(KindConnectionClosed,
		fmt.Sprintf("connection to client %s closed before a response arrived", clientID))
}

// ErrRequestTimeout returns the rejection for a request that saw no response
// within the timeout window.
func ErrRequestTimeout(id string, timeout time.Duration) *Error {
	return NewError(KindTimeout,
		fmt.Sprintf("request %s timed out after %s waiting for the editor", id, timeout))
}
