package executor

import (
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Exchange describes one completed request.
type Exchange struct {
	Request   *http.Request
	Response  *http.Response
	Err       error
	Duration  time.Duration
	Multipart bool
}

// Observer is notified once per completed request, before the completion
// callback runs. Observe must not block.
type Observer interface {
	Observe(x Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(x Exchange)

func (f ObserverFunc) Observe(x Exchange) {
	f(x)
}
