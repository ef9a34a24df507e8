package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func exchange(url string, d time.Duration, err error) executor.Exchange {
	return executor.Exchange{
		Request:  http.NewRequest("GET", url),
		Response: &http.Response{StatusCode: 200},
		Err:      err,
		Duration: d,
	}
}

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.Observe(exchange("http://a.test/x", 100*time.Millisecond, nil))
	r.Observe(exchange("http://a.test/x", 150*time.Millisecond, nil))
	r.Observe(exchange("http://a.test/y", 50*time.Millisecond, http.Reject("status", "bad")))
	r.Observe(exchange("http://a.test/y", time.Second, &http.TransportError{Method: "GET", URL: "http://a.test/y", Err: timeoutErr{}}))
	r.Observe(exchange("http://a.test/x", time.Millisecond, http.ErrCanceled))
	r.Stop()

	s := r.Summary()
	assert.Equal(t, int64(5), s.Total)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(2), s.Errors)
	assert.Equal(t, int64(1), s.Canceled)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.Equal(t, map[string]int64{"validation": 1, "transport": 1, "canceled": 1}, s.ByKind)
	assert.InDelta(t, 0.4, s.SuccessRate, 0.001)
}

func TestRecorder_Percentiles(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Observe(exchange("http://a.test/", time.Duration(i)*time.Millisecond, nil))
	}

	s := r.Summary()
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(time.Millisecond))
}

func TestRecorder_Endpoints(t *testing.T) {
	r := NewRecorder()
	r.Observe(exchange("http://a.test/users?page=1", 10*time.Millisecond, nil))
	r.Observe(exchange("http://a.test/users?page=2", 20*time.Millisecond, errors.New("x")))
	r.Observe(exchange("http://a.test/orders", 5*time.Millisecond, nil))

	s := r.Summary()
	require.Len(t, s.Endpoints, 2)
	assert.Equal(t, "GET http://a.test/orders", s.Endpoints[0].Endpoint)
	assert.Equal(t, "GET http://a.test/users", s.Endpoints[1].Endpoint)
	assert.Equal(t, int64(2), s.Endpoints[1].Total)
	assert.Equal(t, int64(1), s.Endpoints[1].Errors)
}

func TestRecorder_ClampsLatency(t *testing.T) {
	assert.Equal(t, int64(minLatencyUs), clampLatency(0))
	assert.Equal(t, int64(maxLatencyUs), clampLatency(2*time.Minute))
	assert.Equal(t, int64(1500), clampLatency(1500*time.Microsecond))
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Observe(exchange("http://a.test/", time.Millisecond, nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), r.Summary().Total)
}

func TestRecorder_AsExecutorObserver(t *testing.T) {
	r := NewRecorder()
	transport := executor.New(fakeTransport{}, executor.Config{Observers: []executor.Observer{r}})

	done := make(chan struct{})
	transport.Execute(http.NewRequest("GET", "http://a.test/"), nil, func([]byte, *http.Response, error) {
		close(done)
	})
	<-done

	assert.Equal(t, int64(1), r.Summary().Success)
}

type fakeTransport struct{}

func (fakeTransport) Send(*http.Request, http.RequestInterceptor) http.Handle { return fakeHandle{} }

func (fakeTransport) SendMultipart(*http.Request, http.MultipartSupplier, http.RequestInterceptor) http.Handle {
	return fakeHandle{}
}

type fakeHandle struct{}

func (h fakeHandle) Validate(http.Validation) http.Handle { return h }
func (fakeHandle) Cancel()                               {}
func (fakeHandle) Response(fn http.CompletionFunc) {
	go fn([]byte("ok"), &http.Response{StatusCode: 200}, nil)
}

