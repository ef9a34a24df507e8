package http

import (
	"net/http"
	"strings"
	"time"
)

// Response is the metadata and body of a completed exchange. Duration
// covers the attempt that produced it, from send to the last body byte.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Headers    map[string]string // first value of each header
	Body       []byte
	Duration   time.Duration
}

func newResponse(httpResp *http.Response, body []byte, duration time.Duration) *Response {
	headers := make(map[string]string, len(httpResp.Header))
	for k, v := range httpResp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Proto:      httpResp.Proto,
		Headers:    headers,
		Body:       body,
		Duration:   duration,
	}
}

// Header looks key up case-insensitively.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[http.CanonicalHeaderKey(key)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
