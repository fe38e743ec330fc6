package domain

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer can pick a status code.
type ErrorKind string

const (
	KindConfig       ErrorKind = "config"
	KindInvalidInput ErrorKind = "invalid_input"
	KindUpstream     ErrorKind = "upstream"
	KindTransport    ErrorKind = "transport"
	KindTimeout      ErrorKind = "timeout"
	KindData         ErrorKind = "data"
	KindEmptyResult  ErrorKind = "empty_result"
	KindInternal     ErrorKind = "internal"
)

// Error is the failure variant returned by every provider client. Message is
// safe to show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// UpstreamError reports a non-success status returned by a remote API.
func UpstreamError(status int, message string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) && de.Kind != "" {
		return de.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the inbound API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindData:
		return http.StatusUnprocessableEntity
	case KindUpstream, KindTransport, KindEmptyResult:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Cause returns the text of the innermost wrapped error.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
