package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/metrics"
)

// JSONExchange is the JSON form of one completed request
type JSONExchange struct {
	Time      string        `json:"time"`
	Request   JSONRequest   `json:"request"`
	Response  *JSONResponse `json:"response,omitempty"`
	Duration  float64       `json:"duration"` // milliseconds
	Multipart bool          `json:"multipart,omitempty"`
	Error     *JSONError    `json:"error,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// JSONError carries the error kind next to its message
type JSONError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSONSummary is the JSON form of a metrics summary
type JSONSummary struct {
	Total    int64            `json:"total"`
	Success  int64            `json:"success"`
	Errors   int64            `json:"errors"`
	Canceled int64            `json:"canceled"`
	ByKind   map[string]int64 `json:"byKind,omitempty"`
	RPS      float64          `json:"rps"`
	P50      float64          `json:"p50"`
	P95      float64          `json:"p95"`
	P99      float64          `json:"p99"`
	Max      float64          `json:"max"`
	Duration float64          `json:"duration"`
}

// JSONFormatter writes one JSON document per line.
type JSONFormatter struct {
	writer  io.Writer
	verbose bool
	encoder *json.Encoder
}

func NewJSONFormatter(w io.Writer, verbose bool) *JSONFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONFormatter{writer: w, verbose: verbose, encoder: json.NewEncoder(w)}
}

// FormatExchange writes x. Headers and body are included in verbose mode.
func (f *JSONFormatter) FormatExchange(x executor.Exchange, body []byte) {
	out := JSONExchange{
		Time:      time.Now().Format(time.RFC3339),
		Duration:  milliseconds(x.Duration),
		Multipart: x.Multipart,
	}
	if x.Request != nil {
		out.Request = JSONRequest{Method: x.Request.Method, URL: x.Request.BuildURL()}
		if f.verbose {
			out.Request.Headers = x.Request.Headers
		}
	}
	if x.Response != nil {
		out.Response = &JSONResponse{StatusCode: x.Response.StatusCode, Status: x.Response.Status}
		if f.verbose {
			out.Response.Headers = x.Response.Headers
			out.Response.Body = string(body)
		}
	}
	if x.Err != nil {
		out.Error = &JSONError{Kind: http.Kind(x.Err), Message: x.Err.Error()}
	}

	_ = f.encoder.Encode(out)
}

func (f *JSONFormatter) FormatSummary(s *metrics.Summary) {
	_ = f.encoder.Encode(map[string]JSONSummary{"summary": {
		Total:    s.Total,
		Success:  s.Success,
		Errors:   s.Errors,
		Canceled: s.Canceled,
		ByKind:   s.ByKind,
		RPS:      s.RPS,
		P50:      milliseconds(s.P50),
		P95:      milliseconds(s.P95),
		P99:      milliseconds(s.P99),
		Max:      milliseconds(s.Max),
		Duration: milliseconds(s.Duration),
	}})
}

// FormatDiff writes the changed lines of the body.
func (f *JSONFormatter) FormatDiff(lines []DiffLine) {
	if len(lines) == 0 {
		return
	}
	_ = f.encoder.Encode(map[string][]DiffLine{"diff": changedOnly(lines, 0)})
}

func (f *JSONFormatter) FormatError(err error) {
	_ = f.encoder.Encode(map[string]JSONError{"error": {Kind: http.Kind(err), Message: err.Error()}})
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
