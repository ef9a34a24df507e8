package output

import (
	"io"
	"os"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/metrics"
)

// Formatter renders completed requests and run summaries.
type Formatter interface {
	FormatExchange(x executor.Exchange, body []byte)
	FormatSummary(s *metrics.Summary)
	FormatDiff(lines []DiffLine)
	FormatError(err error)
}

var (
	_ Formatter = (*ConsoleFormatter)(nil)
	_ Formatter = (*JSONFormatter)(nil)
)

// New returns the formatter for name ("console" or "json"). Unknown names
// fall back to the console.
func New(name string, w io.Writer, verbose, noColor bool) Formatter {
	if w == nil {
		w = os.Stdout
	}
	if name == "json" {
		return NewJSONFormatter(w, verbose)
	}
	return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor))
}
