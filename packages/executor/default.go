package executor

import (
	"sync"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

var (
	defaultMu       sync.Mutex
	defaultExecutor *Executor
)

// Default returns the process-wide Executor. Unless SetDefault was called
// it is created on first use with a default http.Client and no
// configuration.
func Default() *Executor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultExecutor == nil {
		defaultExecutor = New(http.NewClient(), Config{})
	}
	return defaultExecutor
}

// SetDefault installs e as the process-wide Executor.
func SetDefault(e *Executor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultExecutor = e
}

// ResetDefault drops the process-wide Executor so the next Default call
// builds a fresh one.
func ResetDefault() {
	SetDefault(nil)
}
