package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/history"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/metrics"
)

// maxBodyLen caps the body printed in verbose mode.
const maxBodyLen = 4096

// truncate shortens s to maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatExchange prints one completed request. Verbose output adds response
// headers and the body.
func (f *ConsoleFormatter) FormatExchange(x executor.Exchange, body []byte) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	method, url := "-", "-"
	if x.Request != nil {
		method, url = x.Request.Method, x.Request.BuildURL()
	}

	var symbol string
	switch {
	case x.Err == nil:
		symbol = green("✓")
	case http.IsCanceled(x.Err):
		symbol = yellow("-")
	default:
		symbol = red("✗")
	}

	status := ""
	if x.Response != nil {
		status = statusColor(x.Response.StatusCode)(fmt.Sprintf("%d", x.Response.StatusCode)) + " "
	}

	fmt.Fprintf(f.writer, "%s %s %s %s%s\n", symbol, bold(method), url, status, cyan(fmt.Sprintf("(%dms)", x.Duration.Milliseconds())))

	if x.Err != nil {
		fmt.Fprintf(f.writer, "  %s %s\n", red("→"), describeError(x.Err))
	}

	if !f.verbose || x.Response == nil {
		return
	}

	keys := make([]string, 0, len(x.Response.Headers))
	for k := range x.Response.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.writer, "  %s: %s\n", cyan(k), x.Response.Headers[k])
	}
	if len(body) > 0 {
		if gjson.ValidBytes(body) {
			body = pretty.Pretty(body)
		}
		fmt.Fprintf(f.writer, "\n%s\n", truncate(strings.TrimRight(string(body), "\n"), maxBodyLen))
	}
}

func describeError(err error) string {
	switch kind := http.Kind(err); kind {
	case "", "unknown":
		return err.Error()
	default:
		return kind + ": " + err.Error()
	}
}

func statusColor(code int) func(a ...interface{}) string {
	switch {
	case code >= 500:
		return color.New(color.FgRed).SprintFunc()
	case code >= 400:
		return color.New(color.FgYellow).SprintFunc()
	case code >= 300:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

// FormatSummary prints request counts and latency percentiles.
func (f *ConsoleFormatter) FormatSummary(s *metrics.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Summary"))
	fmt.Fprintf(f.writer, "Requests: ")
	if s.Success > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d succeeded", s.Success)))
	}
	if s.Errors > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Errors)))
	}
	if s.Canceled > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d canceled", s.Canceled)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Total)

	fmt.Fprintf(f.writer, "Latency:  p50 %s  p95 %s  p99 %s  max %s\n",
		formatDuration(s.P50), formatDuration(s.P95), formatDuration(s.P99), formatDuration(s.Max))
	fmt.Fprintf(f.writer, "Rate:     %.2f req/s over %s\n", s.RPS, formatDuration(s.Duration))

	if f.verbose && len(s.Endpoints) > 1 {
		for _, ep := range s.Endpoints {
			fmt.Fprintf(f.writer, "  %s  %d requests, %d errors, p95 %s\n", ep.Endpoint, ep.Total, ep.Errors, formatDuration(ep.P95))
		}
	}
}

// FormatHistory prints stored exchanges as a table.
func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No history recorded")
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold(fmt.Sprintf("%-5s %-19s %-7s %-6s %-9s %s", "ID", "TIME", "METHOD", "STATUS", "DURATION", "URL")))
	for _, e := range entries {
		status := "-"
		if e.StatusCode != 0 {
			status = statusColor(e.StatusCode)(fmt.Sprintf("%d", e.StatusCode))
		}
		line := fmt.Sprintf("%-5d %-19s %-7s %-6s %-9s %s", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Method, status, formatDuration(e.Duration), e.URL)
		if e.ErrorKind != "" {
			line += " " + red("["+e.ErrorKind+"]")
		}
		fmt.Fprintln(f.writer, line)
	}
}

// FormatDiff prints how the body changed since the previous response,
// keeping three lines of context around each change.
func (f *ConsoleFormatter) FormatDiff(lines []DiffLine) {
	if len(lines) == 0 {
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "  %s\n", yellow("body changed:"))
	for _, l := range changedOnly(lines, 3) {
		text := string(l.Op) + " " + l.Text
		switch l.Op {
		case DiffInsert:
			text = green(text)
		case DiffDelete:
			text = red(text)
		}
		fmt.Fprintf(f.writer, "  %s\n", text)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitexec"), version)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}
