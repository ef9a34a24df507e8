package http

import (
	"context"
	"net/http"
	"time"
)

// RetryDecision is a RequestInterceptor's answer to a failed attempt.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// DoNotRetry is the zero RetryDecision.
var DoNotRetry = RetryDecision{}

// RetryAfter asks for another attempt after delay.
func RetryAfter(delay time.Duration) RetryDecision {
	return RetryDecision{Retry: true, Delay: delay}
}

// RequestInterceptor adapts outgoing requests and decides whether a failed
// attempt should be retried.
//
// Adapt runs before every attempt, on the transport's goroutine. An error
// aborts the request with an *InterceptorError. Retry is consulted after an
// attempt failed with a transport or validation error; resp is nil when no
// response was received.
type RequestInterceptor interface {
	Adapt(ctx context.Context, req *http.Request) error
	Retry(ctx context.Context, req *Request, resp *Response, err error, attempt int) RetryDecision
}

// AdapterFunc is a RequestInterceptor that only adapts requests.
type AdapterFunc func(ctx context.Context, req *http.Request) error

func (f AdapterFunc) Adapt(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

func (f AdapterFunc) Retry(context.Context, *Request, *Response, error, int) RetryDecision {
	return DoNotRetry
}
