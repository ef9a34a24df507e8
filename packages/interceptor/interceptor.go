// Package interceptor provides general purpose request interceptors and a
// way to compose them.
package interceptor

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Chain runs interceptors in order. Adapt stops at the first error; Retry
// returns the first decision that asks for another attempt.
type Chain []http.RequestInterceptor

var _ http.RequestInterceptor = Chain(nil)

// NewChain drops nil interceptors. It returns nil when nothing is left and
// the interceptor itself when only one is given.
func NewChain(interceptors ...http.RequestInterceptor) http.RequestInterceptor {
	var chain Chain
	for _, i := range interceptors {
		if i != nil {
			chain = append(chain, i)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return chain
}

func (c Chain) Adapt(ctx context.Context, req *nethttp.Request) error {
	for _, i := range c {
		if err := i.Adapt(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) Retry(ctx context.Context, req *http.Request, resp *http.Response, err error, attempt int) http.RetryDecision {
	for _, i := range c {
		if d := i.Retry(ctx, req, resp, err, attempt); d.Retry {
			return d
		}
	}
	return http.DoNotRetry
}

// RequestIDHeader is the header RequestID sets.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every attempt with a fresh UUID unless the request already
// carries one.
func RequestID() http.AdapterFunc {
	return func(_ context.Context, req *nethttp.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return nil
	}
}

// DefaultHeaders sets headers the request does not already carry.
func DefaultHeaders(headers map[string]string) http.AdapterFunc {
	return func(_ context.Context, req *nethttp.Request) error {
		for k, v := range headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
		return nil
	}
}

// RateLimit paces attempts with a token bucket. Waiting honors cancellation
// of the request.
func RateLimit(limiter *rate.Limiter) http.AdapterFunc {
	return func(ctx context.Context, _ *nethttp.Request) error {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("rate limit: %w", err)
		}
		return nil
	}
}

// NewLimiter returns a limiter allowing rps requests per second with a burst
// of one. A non-positive rps is unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
