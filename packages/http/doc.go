// Package http is the transport used by the executor.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, redirects, TLS verification and proxy
//   - Asynchronous sends returning a cancelable Handle
//   - Streaming multipart uploads assembled from ordered body parts
//   - Response validations attached before a request starts
//   - Request interceptors that adapt outgoing requests and decide retries
package http
