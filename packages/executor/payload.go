package executor

import "github.com/abdul-hamid-achik/hitexec/packages/http"

// Payload selects how a request body is sent. It is either Plain or
// Multipart.
type Payload interface {
	isPayload()
}

// Plain sends Request.Body as is.
type Plain struct{}

// Multipart streams the parts produced by Parts as a multipart/form-data
// body. Parts runs once, when the transport starts the upload.
type Multipart struct {
	Parts http.MultipartSupplier
}

func (Plain) isPayload()     {}
func (Multipart) isPayload() {}
