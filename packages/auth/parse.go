package auth

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitexec/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Scheme names accepted by Parse.
const (
	SchemeBasic       = "basic"
	SchemeBearer      = "bearer"
	SchemeAPIKey      = "apikey"
	SchemeAPIKeyQuery = "apikey-query"
	SchemeDigest      = "digest"
	SchemeAWS         = "aws"
	SchemeOAuth2      = "oauth2"
)

// Parse builds an interceptor from a whitespace separated description:
//
//	basic <username> <password>
//	bearer <token>
//	apikey <header> <key>
//	apikey-query <param> <key>
//	digest <username> <password>
//	aws <accessKey> <secretKey> <region> <service> [sessionToken]
//	oauth2 <grant_type> <tokenUrl> <clientId> <clientSecret> [...]
func Parse(description string) (http.RequestInterceptor, error) {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty auth description")
	}

	scheme, params := strings.ToLower(fields[0]), fields[1:]
	need := func(n int) error {
		if len(params) < n {
			return fmt.Errorf("%s auth requires %d parameters, got %d", scheme, n, len(params))
		}
		return nil
	}

	switch scheme {
	case SchemeBasic:
		if err := need(2); err != nil {
			return nil, err
		}
		return Basic(params[0], params[1]), nil
	case SchemeBearer:
		if err := need(1); err != nil {
			return nil, err
		}
		return Bearer(params[0]), nil
	case SchemeAPIKey:
		if err := need(2); err != nil {
			return nil, err
		}
		return APIKey(params[0], params[1]), nil
	case SchemeAPIKeyQuery:
		if err := need(2); err != nil {
			return nil, err
		}
		return APIKeyQuery(params[0], params[1]), nil
	case SchemeDigest:
		if err := need(2); err != nil {
			return nil, err
		}
		return NewDigest(params[0], params[1]), nil
	case SchemeAWS:
		if err := need(4); err != nil {
			return nil, err
		}
		signer := &AWSSigV4{
			AccessKey: params[0],
			SecretKey: params[1],
			Region:    params[2],
			Service:   params[3],
		}
		if len(params) > 4 {
			signer.SessionToken = params[4]
		}
		return signer, nil
	case SchemeOAuth2:
		cfg, err := oauth2.ParseParams(params)
		if err != nil {
			return nil, err
		}
		return oauth2.NewInterceptor(oauth2.NewProvider(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown auth scheme: %s", fields[0])
	}
}
