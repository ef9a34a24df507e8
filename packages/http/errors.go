package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrCanceled is reported when a request was canceled by its caller before
// it completed. It matches context.Canceled with errors.Is as well.
var ErrCanceled = errors.New("request canceled")

type canceledError struct {
	cause error
}

func (e *canceledError) Error() string {
	if e.cause != nil && !errors.Is(e.cause, context.Canceled) {
		return fmt.Sprintf("%s: %v", ErrCanceled, e.cause)
	}
	return ErrCanceled.Error()
}

func (e *canceledError) Is(target error) bool {
	return target == ErrCanceled || target == context.Canceled
}

func (e *canceledError) Unwrap() error {
	return e.cause
}

func newCanceledError(cause error) error {
	return &canceledError{cause: cause}
}

// IsCanceled reports whether err is a cancellation error.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// TransportError is a network-level failure: connection, TLS, timeout or a
// broken request body.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ValidationError is reported when a response was received but rejected by
// a validation. The body and response are still delivered with it.
type ValidationError struct {
	Rule       string
	Reason     string
	StatusCode int
	Err        error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("response rejected by %s", e.Rule)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Reject builds a ValidationError for rule with a formatted reason.
func Reject(rule, format string, args ...any) *ValidationError {
	return &ValidationError{
		Rule:   rule,
		Reason: fmt.Sprintf(format, args...),
	}
}

// InterceptorError is reported when a RequestInterceptor failed to adapt
// the outgoing request, for example when a credential refresh failed.
type InterceptorError struct {
	Err error
}

func (e *InterceptorError) Error() string {
	return fmt.Sprintf("request adaptation failed: %v", e.Err)
}

func (e *InterceptorError) Unwrap() error {
	return e.Err
}

// PartLengthError is reported when a multipart body part streamed a
// different number of bytes than it declared.
type PartLengthError struct {
	Index    int
	Declared int64
	Actual   int64
}

func (e *PartLengthError) Error() string {
	if e.Actual > e.Declared {
		return fmt.Sprintf("multipart part %d: more than the declared %d bytes", e.Index, e.Declared)
	}
	return fmt.Sprintf("multipart part %d: declared %d bytes, streamed %d", e.Index, e.Declared, e.Actual)
}

// Kind names the error category of err, for logs and exit codes.
func Kind(err error) string {
	var (
		transportErr   *TransportError
		validationErr  *ValidationError
		interceptorErr *InterceptorError
	)
	switch {
	case err == nil:
		return ""
	case IsCanceled(err):
		return "canceled"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &interceptorErr):
		return "interceptor"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "unknown"
	}
}
