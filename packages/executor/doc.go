// Package executor issues HTTP requests through a Transport and hands back
// a cancel.Cancelable for each one.
//
// An Executor is configured once with an optional request interceptor, an
// optional accepted status range and an initial list of validations. Every
// Execute call snapshots the validation list, dispatches the request on a
// background goroutine and returns immediately. The completion callback runs
// exactly once, never on the goroutine that called Execute.
//
// Validation order for each request is fixed: the status range check first,
// then registered validations in the order they were added. The first
// rejection is reported as an *http.ValidationError together with the body
// and response that were rejected.
package executor
