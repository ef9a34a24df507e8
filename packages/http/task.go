package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"time"
)

// Task is the Handle returned by Client.Send and Client.SendMultipart.
type Task struct {
	client      *Client
	req         *Request
	parts       MultipartSupplier
	interceptor RequestInterceptor

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	validations []Validation
	started     bool
	finished    bool
	canceled    bool
}

func newTask(c *Client, req *Request, parts MultipartSupplier, interceptor RequestInterceptor) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		client:      c,
		req:         req.Clone(),
		parts:       parts,
		interceptor: interceptor,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Validate attaches a validation. It has no effect once the task started.
func (t *Task) Validate(rule Validation) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started && rule != nil {
		t.validations = append(t.validations, rule)
	}
	return t
}

// Response registers fn and starts the transfer. fn is called exactly once,
// on a goroutine other than the caller's. Only the first call has effect.
func (t *Task) Response(fn CompletionFunc) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	rules := append([]Validation(nil), t.validations...)
	t.mu.Unlock()

	go t.run(rules, fn)
}

// Cancel aborts the transfer. After completion it does nothing.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.finished || t.canceled {
		t.mu.Unlock()
		return
	}
	t.canceled = true
	t.mu.Unlock()

	t.cancel()
}

func (t *Task) run(rules []Validation, fn CompletionFunc) {
	body, resp, err := t.perform(rules)

	t.mu.Lock()
	t.finished = true
	canceled := t.canceled
	t.mu.Unlock()
	t.cancel()

	if canceled {
		body, resp, err = nil, nil, newCanceledError(err)
	}

	if fn != nil {
		fn(body, resp, err)
	}
}

func (t *Task) perform(rules []Validation) ([]byte, *Response, error) {
	if t.parts != nil {
		return t.attemptMultipart(rules)
	}

	for attempt := 0; ; attempt++ {
		body, resp, err := t.attempt(rules, bytes.NewReader(t.req.Body), "", -1)
		if err == nil || t.interceptor == nil || t.ctx.Err() != nil {
			return body, resp, err
		}
		if attempt+1 >= t.client.maxAttempts {
			return body, resp, err
		}
		var interceptorErr *InterceptorError
		if errors.As(err, &interceptorErr) {
			return body, resp, err
		}

		decision := t.interceptor.Retry(t.ctx, t.req, resp, err, attempt)
		if !decision.Retry {
			return body, resp, err
		}
		if decision.Delay > 0 {
			timer := time.NewTimer(decision.Delay)
			select {
			case <-timer.C:
			case <-t.ctx.Done():
				timer.Stop()
				return nil, nil, newCanceledError(t.ctx.Err())
			}
		}
	}
}

// attemptMultipart sends the upload once; streamed parts cannot be replayed.
func (t *Task) attemptMultipart(rules []Validation) ([]byte, *Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, nil, newCanceledError(err)
	}

	parts, err := t.parts()
	if err != nil {
		return nil, nil, t.transportError(err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	length := multipartLength(mw.Boundary(), parts)

	writeDone := make(chan error, 1)
	go func() {
		err := writeParts(mw, parts)
		_ = pw.CloseWithError(err)
		writeDone <- err
	}()

	respBody, resp, err := t.attempt(rules, pr, mw.FormDataContentType(), length)

	// Unblocks the writer when the request never consumed the whole body.
	_ = pr.Close()
	writeErr := <-writeDone

	var lengthErr *PartLengthError
	if errors.As(writeErr, &lengthErr) {
		return nil, nil, t.transportError(lengthErr)
	}
	return respBody, resp, err
}

func (t *Task) attempt(rules []Validation, body io.Reader, contentType string, length int64) ([]byte, *Response, error) {
	ctx := t.ctx
	if t.req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.req.Timeout)
		defer cancel()
	}

	httpReq, err := t.req.build(ctx, body, t.client.defaultHeaders)
	if err != nil {
		return nil, nil, t.transportError(err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if length >= 0 {
		httpReq.ContentLength = length
	}

	if t.interceptor != nil {
		if err := t.interceptor.Adapt(ctx, httpReq); err != nil {
			if t.ctx.Err() != nil {
				return nil, nil, newCanceledError(err)
			}
			return nil, nil, &InterceptorError{Err: err}
		}
	}

	start := time.Now()
	httpResp, err := t.client.httpClient.Do(httpReq)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, nil, newCanceledError(err)
		}
		return nil, nil, t.transportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, nil, newCanceledError(err)
		}
		return nil, nil, t.transportError(err)
	}

	resp := newResponse(httpResp, respBody, duration)
	if err := runValidations(rules, t.req, resp); err != nil {
		return respBody, resp, err
	}

	return respBody, resp, nil
}

func (t *Task) transportError(err error) *TransportError {
	return &TransportError{
		Method: t.req.Method,
		URL:    t.req.BuildURL(),
		Err:    err,
	}
}
