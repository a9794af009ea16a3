package zwayClient

import (
	"errors"
	"fmt"
	"net/http"
)

// Causes of a failed NewZwayApiClient, reachable through *ConnectError with
// errors.Is.
var (
	ErrHostUnreachable        = errors.New("destination host unreachable")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrConnectFailed          = errors.New("unknown failure")
)

var (
	// ErrConnectionLost is returned when every attempt of a request failed to
	// reach the server.
	ErrConnectionLost = errors.New("zway: server did not respond, connection is lost")
	// ErrTimeout is returned when every attempt of a request timed out.
	ErrTimeout = errors.New("zway: server timeout")

	ErrUnknownDevice = errors.New("zway: unknown device")
	ErrInvalidConfig = errors.New("zway: invalid configuration")
)

type ConnectError struct {
	Cause error
	Err   error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("zway: connection could not be established: %v", e.Cause)
	}
	return fmt.Sprintf("zway: connection could not be established: %v: %v", e.Cause, e.Err)
}

// Unwrap returns the cause. Is and As also look at Err, so the underlying
// failure (ErrTimeout, *StatusError, *DecodeError, ...) can be matched too.
func (e *ConnectError) Unwrap() error { return e.Cause }

func (e *ConnectError) Is(target error) bool {
	return e.Err != nil && errors.Is(e.Err, target)
}

func (e *ConnectError) As(target any) bool {
	return e.Err != nil && errors.As(e.Err, target)
}

// Detail returns the failure behind the cause.
func (e *ConnectError) Detail() error { return e.Err }

// StatusError reports a response with a non 2xx status code. It is never
// retried.
type StatusError struct {
	Url        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zway: %s returned %d %s", e.Url, e.StatusCode, http.StatusText(e.StatusCode))
}

// DecodeError reports a response body that does not have the expected shape.
type DecodeError struct {
	Command string
	Body    string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("zway: cannot decode response of %s (%q): %v", e.Command, e.Body, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func connectError(err error) *ConnectError {
	var statusErr *StatusError
	var decodeErr *DecodeError
	switch {
	case errors.Is(err, ErrConnectionLost), classify(err) == failureConnection:
		return &ConnectError{Cause: ErrHostUnreachable, Err: err}
	case errors.As(err, &decodeErr):
		return &ConnectError{Cause: ErrAuthenticationRequired, Err: err}
	case errors.As(err, &statusErr) &&
		(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		return &ConnectError{Cause: ErrAuthenticationRequired, Err: err}
	}
	return &ConnectError{Cause: ErrConnectFailed, Err: err}
}
