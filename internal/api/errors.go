package api

import (
	"errors"
	"fmt"
)

// Kind classifies client-side failures into the three buckets callers care
// about: could not reach the server, could not understand the server, or the
// server explicitly refused.
type Kind int

const (
	// KindTransport covers network and connectivity failures.
	KindTransport Kind = iota
	// KindProtocol covers responses that cannot be parsed into the
	// expected shape.
	KindProtocol
	// KindServerRejected covers explicit error envelopes from the server.
	KindServerRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindServerRejected:
		return "server_rejected"
	default:
		return "unknown"
	}
}

// Error is the uniform failure type returned by every Client method.
type Error struct {
	Kind    Kind
	Message string
	// HTTPStatus is set for server rejections, zero otherwise.
	HTTPStatus int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func transportErr(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error()}
}

func protocolErr(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}

// IsProtocol reports whether err is a malformed-response failure.
func IsProtocol(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindProtocol
}

// IsServerRejected reports whether err carries an explicit server error.
func IsServerRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindServerRejected
}
