package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Exit codes for hitexec CLI
const (
	// ExitSuccess indicates every request succeeded
	ExitSuccess = 0

	// ExitValidationFailure indicates a response was rejected by a validation
	ExitValidationFailure = 1

	// ExitInterceptorError indicates a request could not be adapted, e.g. a token fetch failed
	ExitInterceptorError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitCanceled indicates the run was interrupted
	ExitCanceled = 130
)

// ExitError carries the process exit code of a failed command. A nil Err
// means the failure was already reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func configError(err error) error {
	return &ExitError{Code: ExitConfigError, Err: err}
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsageError, Err: err}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return exitCodeForKind(http.Kind(err))
}

func exitCodeForKind(kind string) int {
	switch kind {
	case "":
		return ExitSuccess
	case "canceled":
		return ExitCanceled
	case "validation":
		return ExitValidationFailure
	case "interceptor":
		return ExitInterceptorError
	case "transport":
		return ExitNetworkError
	default:
		return ExitValidationFailure
	}
}
