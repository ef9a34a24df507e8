package http

import (
	"context"
	"crypto/tls"
	"net/http"
	neturl "net/url"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultMaxAttempts bounds the attempts an interceptor can ask for
	DefaultMaxAttempts = 3
)

// CompletionFunc receives the outcome of a request. On network failures
// resp is nil; on validation failures body and resp are still set.
type CompletionFunc func(body []byte, resp *Response, err error)

// Handle is an issued request. Validations must be attached before
// Response is called; Response starts the transfer.
type Handle interface {
	Validate(rule Validation) Handle
	Response(fn CompletionFunc)
	Cancel()
}

type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	maxAttempts    int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	transport      http.RoundTripper
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		maxAttempts:    DefaultMaxAttempts,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := c.transport
	if transport == nil {
		t := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}

		// Configure TLS verification
		if !c.validateSSL {
			t.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}

		// Configure proxy if specified
		if c.proxyURL != "" {
			proxyURL, err := neturl.Parse(c.proxyURL)
			if err == nil {
				t.Proxy = http.ProxyURL(proxyURL)
			}
		}
		transport = t
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithMaxAttempts caps how many attempts interceptor retries may cause.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithRoundTripper replaces the pooled transport. TLS and proxy options
// are ignored when it is set.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// Send issues a plain request. The transfer starts when Response is called.
func (c *Client) Send(req *Request, interceptor RequestInterceptor) Handle {
	return newTask(c, req, nil, interceptor)
}

// SendMultipart issues a streaming multipart upload. parts is called once,
// when the transfer starts.
func (c *Client) SendMultipart(req *Request, parts MultipartSupplier, interceptor RequestInterceptor) Handle {
	if parts == nil {
		parts = Parts()
	}
	return newTask(c, req, parts, interceptor)
}

// Do sends req and waits for it. Canceling ctx cancels the request.
func (c *Client) Do(ctx context.Context, req *Request, rules ...Validation) (*Response, error) {
	h := c.Send(req, nil)
	for _, rule := range rules {
		h = h.Validate(rule)
	}

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	h.Response(func(_ []byte, resp *Response, err error) {
		done <- outcome{resp: resp, err: err}
	})

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		h.Cancel()
		out := <-done
		return out.resp, out.err
	}
}
