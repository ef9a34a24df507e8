package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitexec/packages/auth"
	"github.com/abdul-hamid-achik/hitexec/packages/core/config"
	"github.com/abdul-hamid-achik/hitexec/packages/curl"
	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/history"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/interceptor"
	"github.com/abdul-hamid-achik/hitexec/packages/logging"
	"github.com/abdul-hamid-achik/hitexec/packages/metrics"
	"github.com/abdul-hamid-achik/hitexec/packages/output"
	"github.com/abdul-hamid-achik/hitexec/packages/validation"
)

var sendCmd = &cobra.Command{
	Use:   "send <url>",
	Short: "Send a request and validate the response",
	Long: `Send an HTTP request, validate the response and print it.

Examples:
  hitexec send https://api.example.com/users
  hitexec send https://api.example.com/users -X POST -d '{"name":"ada"}'
  hitexec send https://api.example.com/users -d @user.json --expect-status 201
  hitexec send https://api.example.com/upload -F title=report -F file=@report.pdf
  hitexec send https://api.example.com/users/1 --expect-json id=1 --schema user.schema.json
  hitexec send https://api.example.com/me --auth "bearer $TOKEN"
  hitexec send https://api.example.com/me --auth "oauth2 client_credentials https://auth.example.com/token id secret"
  hitexec send https://api.example.com/health --repeat 100 --rate 10
  hitexec send https://api.example.com/users -d @user.json --watch
  hitexec send --curl "curl -X POST -d 'a=1' https://api.example.com/form"
  hitexec send --curl @request.sh --expect-status 2xx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// defaultExpectStatus applies when neither flags nor config name a range
	defaultExpectStatus = "200-399"
)

type sendOptions struct {
	curl         string
	method       string
	headers      []string
	data         string
	form         []string
	expectStatus string
	expectJSON   []string
	expectBody   []string
	expectType   string
	schema       string
	maxTime      string
	auth         string
	timeout      string
	repeat       int
	rate         float64
	requestID    bool
	history      string
	watch        bool
	diff         bool
	config       string
	output       string
	verbose      bool
	noColor      bool
	insecure     bool
	proxy        string
	logLevel     string
	logFile      string
}

var sendOpts sendOptions

func init() {
	f := sendCmd.Flags()

	// Request flags
	f.StringVar(&sendOpts.curl, "curl", "", "Take the request from a curl command line, or @file holding one")
	f.StringVarP(&sendOpts.method, "request", "X", "", "HTTP method (default GET, or POST with a body)")
	f.StringArrayVarP(&sendOpts.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	f.StringVarP(&sendOpts.data, "data", "d", "", "Request body, or @file to read it from a file")
	f.StringArrayVarP(&sendOpts.form, "form", "F", nil, "Multipart field name=value, or name=@file to upload a file (repeatable)")
	f.StringVar(&sendOpts.auth, "auth", getEnvString("HITEXEC_AUTH", ""), `Authentication, e.g. "basic user pass", "bearer token", "digest user pass" (env: HITEXEC_AUTH)`)

	// Validation flags
	f.StringVar(&sendOpts.expectStatus, "expect-status", getEnvString("HITEXEC_EXPECT_STATUS", ""), "Accepted status codes, e.g. 200, 200-299, 2xx (default "+defaultExpectStatus+") (env: HITEXEC_EXPECT_STATUS)")
	f.StringArrayVar(&sendOpts.expectJSON, "expect-json", nil, "JSON field check path=value, or path to require presence (repeatable)")
	f.StringArrayVar(&sendOpts.expectBody, "expect-body", nil, "Require the body to contain a substring (repeatable)")
	f.StringVar(&sendOpts.expectType, "expect-content-type", "", "Require a response content type")
	f.StringVar(&sendOpts.schema, "schema", "", "Validate the JSON body against a JSON Schema file")
	f.StringVar(&sendOpts.maxTime, "max-time", "", "Reject responses slower than this duration")

	// Execution flags
	f.StringVar(&sendOpts.timeout, "timeout", getEnvString("HITEXEC_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITEXEC_TIMEOUT)")
	f.IntVarP(&sendOpts.repeat, "repeat", "n", getEnvInt("HITEXEC_REPEAT", 1), "Send the request this many times and print a latency summary (env: HITEXEC_REPEAT)")
	f.Float64VarP(&sendOpts.rate, "rate", "r", getEnvFloat("HITEXEC_RATE", 0), "Maximum requests per second (env: HITEXEC_RATE)")
	f.BoolVar(&sendOpts.requestID, "request-id", getEnvBool("HITEXEC_REQUEST_ID", false), "Tag requests with an X-Request-ID header (env: HITEXEC_REQUEST_ID)")
	f.StringVar(&sendOpts.history, "history", getEnvString("HITEXEC_HISTORY", ""), "Record exchanges in this SQLite database (env: HITEXEC_HISTORY)")
	f.BoolVarP(&sendOpts.watch, "watch", "w", false, "Watch the config and referenced files and re-send on change")
	f.BoolVar(&sendOpts.diff, "diff", false, "Show how the response body changed since the previous response")
	f.StringVar(&sendOpts.config, "config", getEnvString("HITEXEC_CONFIG", ""), "Path to config file (env: HITEXEC_CONFIG)")

	// Output flags
	f.StringVarP(&sendOpts.output, "output", "o", getEnvString("HITEXEC_OUTPUT", "console"), "Output format: console, json (env: HITEXEC_OUTPUT)")
	f.BoolVarP(&sendOpts.verbose, "verbose", "v", false, "Print response headers and body")
	f.BoolVar(&sendOpts.noColor, "no-color", getEnvBool("HITEXEC_NO_COLOR", false), "Disable colored output (env: HITEXEC_NO_COLOR)")
	f.StringVar(&sendOpts.logLevel, "log-level", getEnvString("HITEXEC_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITEXEC_LOG_LEVEL)")
	f.StringVar(&sendOpts.logFile, "log-file", getEnvString("HITEXEC_LOG_FILE", ""), "Also write logs to this file (env: HITEXEC_LOG_FILE)")

	// Network flags
	f.StringVar(&sendOpts.proxy, "proxy", getEnvString("HITEXEC_PROXY", ""), "Proxy URL for HTTP requests (env: HITEXEC_PROXY)")
	f.BoolVarP(&sendOpts.insecure, "insecure", "k", getEnvBool("HITEXEC_INSECURE", false), "Disable SSL certificate validation (env: HITEXEC_INSECURE)")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Ctrl+C cancels the request in flight through its Cancelable
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt, canceling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var target string
	if len(args) > 0 {
		target = args[0]
	}
	return send(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), target, sendOpts)
}

// send runs the request once, or keeps re-running it on file changes in
// watch mode until ctx is canceled.
func send(ctx context.Context, stdout, stderr io.Writer, target string, opts sendOptions) error {
	target, opts, err := applyCurl(target, opts)
	if err != nil {
		return usageError(err)
	}
	if opts.data != "" && len(opts.form) > 0 {
		return usageError(errors.New("--data and --form cannot be combined"))
	}
	if err := http.ValidateURL(target); err != nil {
		return usageError(err)
	}

	tracker := &bodyTracker{}
	runOnce := func() error {
		cfg, err := resolveConfig(opts)
		if err != nil {
			return configError(err)
		}
		formatter := output.New(opts.output, stdout, cfg.GetVerbose(), cfg.GetNoColor())

		sess, err := newSession(cfg, opts, formatter, stderr, tracker)
		if err != nil {
			return err
		}
		defer sess.Close()

		return sess.run(ctx, target)
	}

	err = runOnce()
	if !opts.watch {
		return err
	}
	return watch(ctx, stdout, watchPaths(opts), func() {
		if err := runOnce(); err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) || exitErr.Err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
		}
	})
}

// applyCurl fills the options a curl command line implies. Explicit flags
// and the URL argument win over the curl command.
func applyCurl(target string, opts sendOptions) (string, sendOptions, error) {
	if opts.curl == "" {
		if target == "" {
			return "", opts, errors.New("a URL or --curl is required")
		}
		return target, opts, nil
	}

	line := opts.curl
	if path, ok := strings.CutPrefix(line, "@"); ok {
		f, err := os.Open(path)
		if err != nil {
			return "", opts, fmt.Errorf("failed to open curl file: %w", err)
		}
		defer f.Close()
		if line, err = curl.Read(f); err != nil {
			return "", opts, err
		}
	}

	c, err := curl.Parse(line)
	if err != nil {
		return "", opts, fmt.Errorf("invalid curl command: %w", err)
	}

	if target == "" {
		target = c.URL
	}
	if opts.method == "" {
		opts.method = c.Method
	}

	names := make([]string, 0, len(c.Headers))
	for name := range c.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	headers := make([]string, 0, len(names)+len(opts.headers))
	for _, name := range names {
		headers = append(headers, name+": "+c.Headers[name])
	}
	opts.headers = append(headers, opts.headers...)

	if opts.data == "" && len(opts.form) == 0 {
		opts.data = c.Body
		opts.form = c.Form
	}
	if opts.auth == "" {
		opts.auth = c.Auth()
	}
	if opts.proxy == "" {
		opts.proxy = c.Proxy
	}
	if opts.timeout == "" && c.MaxTime != "" {
		opts.timeout = c.MaxTime + "s"
	}
	opts.insecure = opts.insecure || c.Insecure

	return target, opts, nil
}

// resolveConfig layers flags over the config file.
func resolveConfig(opts sendOptions) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(opts.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	override := &config.Config{
		Proxy:       opts.proxy,
		StatusCodes: opts.expectStatus,
		Auth:        opts.auth,
		RateLimit:   opts.rate,
		History:     opts.history,
		Log: logging.Config{
			Level: opts.logLevel,
			File:  opts.logFile,
		},
	}
	if opts.timeout != "" {
		d, err := time.ParseDuration(opts.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		override.Timeout = int(d.Milliseconds())
	}
	if opts.insecure {
		override.ValidateSSL = config.BoolPtr(false)
	}
	if opts.requestID {
		override.RequestID = config.BoolPtr(true)
	}
	if opts.verbose {
		override.Verbose = config.BoolPtr(true)
	}
	if opts.noColor {
		override.NoColor = config.BoolPtr(true)
	}

	cfg := fileConfig.Merge(override)
	if cfg.StatusCodes == "" {
		cfg.StatusCodes = defaultExpectStatus
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session wires one executor with its observers for a run.
type session struct {
	executor *executor.Executor
	recorder *metrics.Recorder
	store    *history.Store
	opts     sendOptions
	output   output.Formatter
}

func newSession(cfg *config.Config, opts sendOptions, formatter output.Formatter, stderr io.Writer, tracker *bodyTracker) (*session, error) {
	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, configError(err)
	}

	statusRange, err := cfg.StatusRange()
	if err != nil {
		return nil, configError(err)
	}

	requestInterceptor, err := buildInterceptor(cfg)
	if err != nil {
		return nil, configError(err)
	}

	rules, err := buildValidations(opts)
	if err != nil {
		return nil, usageError(err)
	}

	s := &session{
		recorder: metrics.NewRecorder(),
		opts:     opts,
		output:   formatter,
	}

	observers := []executor.Observer{
		s.recorder,
		executor.ObserverFunc(func(x executor.Exchange) {
			var body []byte
			if x.Response != nil {
				body = x.Response.Body
			}
			formatter.FormatExchange(x, body)
			if opts.diff && x.Response != nil {
				if previous, ok := tracker.swap(body); ok {
					formatter.FormatDiff(output.BodyDiff(previous, body))
				}
			}
		}),
	}

	if cfg.History != "" {
		store, err := history.Open(cfg.History, history.WithLogger(logger))
		if err != nil {
			return nil, configError(err)
		}
		s.store = store
		observers = append(observers, store)
	}

	s.executor = executor.New(http.NewClient(cfg.ClientOptions()...), executor.Config{
		Interceptor: requestInterceptor,
		StatusCodes: statusRange,
		Validations: rules,
		Observers:   observers,
		Logger:      &logger,
	})

	return s, nil
}

// bodyTracker remembers the last response body across runs.
type bodyTracker struct {
	mu   sync.Mutex
	last []byte
	seen bool
}

// swap stores body and returns the one it replaces. ok is false for the
// first body.
func (t *bodyTracker) swap(body []byte) (previous []byte, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, ok = t.last, t.seen
	t.last, t.seen = body, true
	return previous, ok
}

func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// run sends the request opts.repeat times, one at a time. The last failure
// decides the exit code; it has already been printed by the formatter.
func (s *session) run(ctx context.Context, target string) error {
	repeat := s.opts.repeat
	if repeat < 1 {
		repeat = 1
	}

	s.recorder.Start()
	var failure error
	for i := 0; i < repeat && ctx.Err() == nil; i++ {
		req, payload, err := buildRequest(target, s.opts)
		if err != nil {
			return usageError(err)
		}

		if err := s.execute(ctx, req, payload); err != nil {
			failure = err
		}
	}
	s.recorder.Stop()

	if repeat > 1 {
		s.output.FormatSummary(s.recorder.Summary())
	}

	if ctx.Err() != nil && failure == nil {
		failure = http.ErrCanceled
	}
	if failure != nil {
		return &ExitError{Code: ExitCode(failure)}
	}
	return nil
}

// execute waits for one request. Canceling ctx cancels the request and
// still waits for its completion.
func (s *session) execute(ctx context.Context, req *http.Request, payload executor.Payload) error {
	done := make(chan error, 1)
	c := s.executor.Execute(req, payload, func(_ []byte, _ *http.Response, err error) {
		done <- err
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.Cancel()
		return <-done
	}
}

func buildInterceptor(cfg *config.Config) (http.RequestInterceptor, error) {
	var chain []http.RequestInterceptor

	if cfg.GetRequestID() {
		chain = append(chain, interceptor.RequestID())
	}
	if cfg.RateLimit > 0 {
		chain = append(chain, interceptor.RateLimit(interceptor.NewLimiter(cfg.RateLimit)))
	}
	if cfg.Auth != "" {
		a, err := auth.Parse(cfg.Auth)
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}

	return interceptor.NewChain(chain...), nil
}

func buildValidations(opts sendOptions) ([]http.Validation, error) {
	var rules []http.Validation

	if opts.expectType != "" {
		rules = append(rules, validation.ContentType(opts.expectType))
	}
	for _, s := range opts.expectBody {
		rules = append(rules, validation.BodyContains(s))
	}
	for _, expr := range opts.expectJSON {
		path, value, hasValue := strings.Cut(expr, "=")
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid --expect-json %q", expr)
		}
		if !hasValue {
			rules = append(rules, validation.JSONExists(path))
			continue
		}
		rules = append(rules, validation.JSONField(path, parseExpected(value)))
	}
	if opts.schema != "" {
		rule, err := validation.JSONSchemaFile(opts.schema)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if opts.maxTime != "" {
		d, err := time.ParseDuration(opts.maxTime)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-time: %w", err)
		}
		rules = append(rules, validation.MaxDuration(d))
	}

	return rules, nil
}

// parseExpected decodes JSON literals (numbers, booleans, null, quoted
// strings) and keeps anything else as a plain string.
func parseExpected(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}

func buildRequest(target string, opts sendOptions) (*http.Request, executor.Payload, error) {
	method := strings.ToUpper(opts.method)
	if method == "" {
		method = "GET"
		if opts.data != "" || len(opts.form) > 0 {
			method = "POST"
		}
	}

	req := http.NewRequest(method, target)
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		req.SetHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if len(opts.form) > 0 {
		parts, err := formSupplier(opts.form)
		if err != nil {
			return nil, nil, err
		}
		return req, executor.Multipart{Parts: parts}, nil
	}

	if opts.data != "" {
		body := []byte(opts.data)
		if path, ok := strings.CutPrefix(opts.data, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read body: %w", err)
			}
			body = data
		}
		req.SetBody(body)
		if req.Header("Content-Type") == "" && json.Valid(body) {
			req.SetHeader("Content-Type", "application/json")
		}
	}

	return req, executor.Plain{}, nil
}

// formSupplier validates the field syntax now and opens files only when
// the upload starts.
func formSupplier(fields []string) (http.MultipartSupplier, error) {
	type field struct {
		name, value string
		file        bool
	}

	parsed := make([]field, 0, len(fields))
	for _, f := range fields {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid form field %q, expected name=value or name=@file", f)
		}
		path, isFile := strings.CutPrefix(value, "@")
		if isFile {
			value = path
		}
		parsed = append(parsed, field{name: name, value: value, file: isFile})
	}

	return func() ([]http.BodyPart, error) {
		parts := make([]http.BodyPart, 0, len(parsed))
		for _, f := range parsed {
			if !f.file {
				parts = append(parts, http.FieldPart(f.name, f.value))
				continue
			}
			part, err := http.FilePart(f.name, f.value, "")
			if err != nil {
				closeReaders(parts)
				return nil, fmt.Errorf("failed to open %s: %w", f.value, err)
			}
			parts = append(parts, part)
		}
		return parts, nil
	}, nil
}

func closeReaders(parts []http.BodyPart) {
	for _, p := range parts {
		if c, ok := p.Reader.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

