package auth

import (
	"context"
	"encoding/base64"
	nethttp "net/http"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Basic sets an "Authorization: Basic" header.
func Basic(username, password string) http.AdapterFunc {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return Header("Authorization", "Basic "+encoded)
}

// Bearer sets an "Authorization: Bearer" header.
func Bearer(token string) http.AdapterFunc {
	return Header("Authorization", "Bearer "+token)
}

// APIKey sets the named header to key.
func APIKey(header, key string) http.AdapterFunc {
	return Header(header, key)
}

// APIKeyQuery adds key as a query parameter.
func APIKeyQuery(param, key string) http.AdapterFunc {
	return func(_ context.Context, req *nethttp.Request) error {
		q := req.URL.Query()
		q.Set(param, key)
		req.URL.RawQuery = q.Encode()
		return nil
	}
}

// Header sets a single header on every attempt, replacing any value the
// request already carries.
func Header(name, value string) http.AdapterFunc {
	return func(_ context.Context, req *nethttp.Request) error {
		req.Header.Set(name, value)
		return nil
	}
}
