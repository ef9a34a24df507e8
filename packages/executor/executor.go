package executor

import (
	"errors"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/cancel"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/validation"
	"github.com/rs/zerolog"
)

// ErrNilRequest is reported through the completion callback when Execute is
// called without a request.
var ErrNilRequest = errors.New("executor: nil request")

// Transport issues requests. *http.Client implements it.
type Transport interface {
	Send(req *http.Request, interceptor http.RequestInterceptor) http.Handle
	SendMultipart(req *http.Request, parts http.MultipartSupplier, interceptor http.RequestInterceptor) http.Handle
}

// Config is the construction-time configuration of an Executor.
type Config struct {
	// Interceptor adapts every outgoing request and may ask for retries.
	Interceptor http.RequestInterceptor
	// StatusCodes, when set, rejects responses outside the range before any
	// other validation runs.
	StatusCodes *validation.StatusRange
	// Validations is the initial rule list; AddValidation appends to it.
	Validations []http.Validation
	// Observers are notified of every completed request.
	Observers []Observer
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Executor dispatches requests to a Transport. It is safe for concurrent
// use.
type Executor struct {
	transport   Transport
	interceptor http.RequestInterceptor
	statusCodes *validation.StatusRange
	observers   []Observer
	logger      zerolog.Logger

	mu    sync.RWMutex
	rules []http.Validation
}

func New(transport Transport, cfg Config) *Executor {
	e := &Executor{
		transport:   transport,
		interceptor: cfg.Interceptor,
		observers:   append([]Observer(nil), cfg.Observers...),
		logger:      zerolog.Nop(),
		rules:       append([]http.Validation(nil), cfg.Validations...),
	}
	if cfg.StatusCodes != nil {
		codes := *cfg.StatusCodes
		e.statusCodes = &codes
	}
	if cfg.Logger != nil {
		e.logger = cfg.Logger.With().Str("component", "executor").Logger()
	}
	return e
}

// AddValidation appends rule. Requests already passed to Execute keep the
// rule list they were dispatched with.
func (e *Executor) AddValidation(rule http.Validation) {
	if rule == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Copy on write: snapshots handed out earlier share the old array.
	rules := make([]http.Validation, len(e.rules), len(e.rules)+1)
	copy(rules, e.rules)
	e.rules = append(rules, rule)
}

// Validations returns the current rule list.
func (e *Executor) Validations() []http.Validation {
	return append([]http.Validation(nil), e.snapshot()...)
}

func (e *Executor) snapshot() []http.Validation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// Execute sends req and reports its outcome to onComplete. A nil payload is
// treated as Plain. The returned Cancelable aborts the request; canceling
// after completion does nothing.
func (e *Executor) Execute(req *http.Request, payload Payload, onComplete http.CompletionFunc) cancel.Cancelable {
	serial := cancel.NewSerial()
	if req != nil {
		req = req.Clone()
	}
	complete := e.completion(req, payload, onComplete)

	if req == nil {
		go complete(nil, nil, ErrNilRequest)
		return serial
	}

	rules := e.snapshot()
	go e.dispatch(serial, req, payload, rules, complete)

	return serial
}

func (e *Executor) dispatch(serial *cancel.Serial, req *http.Request, payload Payload, rules []http.Validation, complete http.CompletionFunc) {
	var h http.Handle
	switch p := payload.(type) {
	case Multipart:
		h = e.transport.SendMultipart(req, p.Parts, e.interceptor)
	default:
		h = e.transport.Send(req, e.interceptor)
	}

	if e.statusCodes != nil {
		h = h.Validate(e.statusCodes.Rule())
	}
	for _, rule := range rules {
		h = h.Validate(rule)
	}

	// A cancel issued before this point reaches the handle here.
	serial.Set(h)

	e.logger.Debug().
		Str("method", req.Method).
		Str("url", req.BuildURL()).
		Bool("multipart", isMultipart(payload)).
		Int("validations", len(rules)).
		Msg("Dispatching request")

	h.Response(complete)
}

// completion wraps onComplete so it runs at most once, after observers.
func (e *Executor) completion(req *http.Request, payload Payload, onComplete http.CompletionFunc) http.CompletionFunc {
	var once sync.Once
	start := time.Now()

	return func(body []byte, resp *http.Response, err error) {
		once.Do(func() {
			exchange := Exchange{
				Request:   req,
				Response:  resp,
				Err:       err,
				Duration:  time.Since(start),
				Multipart: isMultipart(payload),
			}
			e.logExchange(exchange)
			for _, o := range e.observers {
				o.Observe(exchange)
			}

			if onComplete != nil {
				onComplete(body, resp, err)
			}
		})
	}
}

func (e *Executor) logExchange(x Exchange) {
	var event *zerolog.Event
	if x.Err != nil {
		event = e.logger.Warn().Err(x.Err).Str("kind", http.Kind(x.Err))
	} else {
		event = e.logger.Debug()
	}

	if x.Request != nil {
		event = event.Str("method", x.Request.Method).Str("url", x.Request.BuildURL())
	}
	if x.Response != nil {
		event = event.Int("status_code", x.Response.StatusCode)
	}

	event.Dur("duration", x.Duration).Msg("Request completed")
}

func isMultipart(payload Payload) bool {
	_, ok := payload.(Multipart)
	return ok
}
