// Package cancel provides handles for stopping in-flight asynchronous work.
//
// A Cancelable has a single idempotent method. Two implementations are
// provided:
//   - Func wraps a closure that runs at most once
//   - Serial owns a replaceable inner Cancelable and forwards cancellation
//     to every inner it ever holds
package cancel
