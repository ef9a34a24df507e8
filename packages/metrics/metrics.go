// Package metrics aggregates latency and outcome statistics of executed
// requests.
package metrics

import (
	"errors"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// Recorder is an executor.Observer collecting request outcomes.
type Recorder struct {
	mu sync.RWMutex

	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	canceled  atomic.Int64
	timeouts  atomic.Int64
	byKind    map[string]int64
	histogram *hdrhistogram.Histogram
	endpoints map[string]*endpointMetrics

	startTime time.Time
	endTime   time.Time
}

type endpointMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

var _ executor.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		byKind:    make(map[string]int64),
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		endpoints: make(map[string]*endpointMetrics),
		startTime: time.Now(),
	}
}

// Start resets the measurement window.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startTime = time.Now()
	r.endTime = time.Time{}
}

// Stop closes the measurement window.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endTime = time.Now()
}

// Observe records one completed exchange. Canceled requests are counted but
// not added to the latency histogram.
func (r *Recorder) Observe(x executor.Exchange) {
	r.total.Add(1)

	switch {
	case x.Err == nil:
		r.success.Add(1)
	case http.IsCanceled(x.Err):
		r.canceled.Add(1)
	default:
		r.errors.Add(1)
		var terr *http.TransportError
		if errors.As(x.Err, &terr) && terr.Timeout() {
			r.timeouts.Add(1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if x.Err != nil {
		r.byKind[http.Kind(x.Err)]++
	}
	if http.IsCanceled(x.Err) {
		return
	}

	latency := clampLatency(x.Duration)
	_ = r.histogram.RecordValue(latency)

	key := endpointKey(x.Request)
	ep, ok := r.endpoints[key]
	if !ok {
		ep = &endpointMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
		r.endpoints[key] = ep
	}
	ep.total++
	if x.Err != nil {
		ep.errors++
	}
	_ = ep.histogram.RecordValue(latency)
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Duration time.Duration
	Total    int64
	Success  int64
	Errors   int64
	Canceled int64
	Timeouts int64
	ByKind   map[string]int64

	RPS         float64
	SuccessRate float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Endpoints []EndpointSummary
}

// EndpointSummary holds statistics for one method and URL path.
type EndpointSummary struct {
	Endpoint string
	Total    int64
	Errors   int64
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Mean     time.Duration
}

func (r *Recorder) Summary() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	end := r.endTime
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(r.startTime)

	s := &Summary{
		Duration: duration,
		Total:    r.total.Load(),
		Success:  r.success.Load(),
		Errors:   r.errors.Load(),
		Canceled: r.canceled.Load(),
		Timeouts: r.timeouts.Load(),
		ByKind:   make(map[string]int64, len(r.byKind)),
		P50:      quantile(r.histogram, 50),
		P95:      quantile(r.histogram, 95),
		P99:      quantile(r.histogram, 99),
		Min:      micros(r.histogram.Min()),
		Max:      micros(r.histogram.Max()),
		Mean:     micros(int64(r.histogram.Mean())),
		StdDev:   micros(int64(r.histogram.StdDev())),
	}
	for k, v := range r.byKind {
		s.ByKind[k] = v
	}

	if duration.Seconds() > 0 {
		s.RPS = float64(s.Total) / duration.Seconds()
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total)
	}

	for key, ep := range r.endpoints {
		s.Endpoints = append(s.Endpoints, EndpointSummary{
			Endpoint: key,
			Total:    ep.total,
			Errors:   ep.errors,
			P50:      quantile(ep.histogram, 50),
			P95:      quantile(ep.histogram, 95),
			P99:      quantile(ep.histogram, 99),
			Mean:     micros(int64(ep.histogram.Mean())),
		})
	}
	sort.Slice(s.Endpoints, func(i, j int) bool {
		return s.Endpoints[i].Endpoint < s.Endpoints[j].Endpoint
	})

	return s
}

func endpointKey(req *http.Request) string {
	if req == nil {
		return "-"
	}
	method := req.Method
	if method == "" {
		method = "GET"
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return method + " " + req.URL
	}
	return method + " " + u.Scheme + "://" + u.Host + u.Path
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return micros(h.ValueAtQuantile(q))
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
