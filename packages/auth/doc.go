// Package auth provides request interceptors that authenticate outgoing
// requests.
//
// Static schemes (basic, bearer, API key) only adapt requests. Digest
// answers a 401 challenge by asking the transport for one more attempt,
// and AWSSigV4 signs every attempt. OAuth2 lives in the oauth2 subpackage.
package auth
