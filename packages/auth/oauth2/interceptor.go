package oauth2

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Interceptor injects a bearer token from a Provider. A 401 drops the
// cached token and retries once with a fresh one.
type Interceptor struct {
	provider *Provider
}

var _ http.RequestInterceptor = (*Interceptor)(nil)

func NewInterceptor(provider *Provider) *Interceptor {
	return &Interceptor{provider: provider}
}

func (i *Interceptor) Adapt(ctx context.Context, req *nethttp.Request) error {
	token, err := i.provider.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get OAuth2 token: %w", err)
	}

	tokenType := token.TokenType
	if tokenType == "" || tokenType == "bearer" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+token.AccessToken)
	return nil
}

func (i *Interceptor) Retry(_ context.Context, _ *http.Request, resp *http.Response, _ error, attempt int) http.RetryDecision {
	if resp == nil || resp.StatusCode != nethttp.StatusUnauthorized || attempt > 0 {
		return http.DoNotRetry
	}
	i.provider.Invalidate()
	return http.RetryAfter(0)
}
