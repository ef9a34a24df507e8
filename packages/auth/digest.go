package auth

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

// Challenge holds the parameters of a "WWW-Authenticate: Digest" header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Qop       string
	Algorithm string
	Stale     bool
}

// ParseChallenge parses a Digest WWW-Authenticate header. ok is false for
// any other scheme.
func ParseChallenge(header string) (c Challenge, ok bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Digest ") {
		return Challenge{}, false
	}

	params := ParseWWWAuthenticate(header[7:])
	c = Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		Qop:       params["qop"],
		Algorithm: params["algorithm"],
		Stale:     strings.EqualFold(params["stale"], "true"),
	}
	return c, c.Nonce != ""
}

// ParseWWWAuthenticate splits key="value" pairs of an authentication header.
// Quoted values may contain commas.
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	var key strings.Builder
	var value strings.Builder
	inKey, inQuotes := true, false

	flush := func() {
		k := strings.ToLower(strings.TrimSpace(key.String()))
		if k != "" {
			result[k] = strings.TrimSpace(value.String())
		}
		key.Reset()
		value.Reset()
		inKey = true
	}

	for _, r := range header {
		switch {
		case inKey && r == '=':
			inKey = false
		case inKey && r == ',':
			key.Reset()
		case inKey:
			key.WriteRune(r)
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			flush()
		default:
			value.WriteRune(r)
		}
	}
	flush()

	return result
}

// Digest answers HTTP Digest challenges. After a 401 carrying a Digest
// challenge it asks for one more attempt and signs that and every later
// request with the challenge. A stale nonce is retried again.
//
// Retries are only consulted for failed attempts, so pair Digest with a
// status validation that rejects 401.
type Digest struct {
	Username string
	Password string

	mu        sync.Mutex
	challenge *Challenge
	nc        int
}

func NewDigest(username, password string) *Digest {
	return &Digest{Username: username, Password: password}
}

func (d *Digest) Adapt(_ context.Context, req *nethttp.Request) error {
	d.mu.Lock()
	if d.challenge == nil {
		d.mu.Unlock()
		return nil
	}
	challenge := *d.challenge
	d.nc++
	nc := d.nc
	d.mu.Unlock()

	header, err := d.authorization(challenge, req.Method, req.URL.RequestURI(), nc)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	return nil
}

func (d *Digest) Retry(_ context.Context, _ *http.Request, resp *http.Response, _ error, attempt int) http.RetryDecision {
	if resp == nil || resp.StatusCode != nethttp.StatusUnauthorized {
		return http.DoNotRetry
	}
	challenge, ok := ParseChallenge(resp.Header("WWW-Authenticate"))
	if !ok {
		return http.DoNotRetry
	}

	d.mu.Lock()
	answered := d.challenge != nil && d.challenge.Nonce == challenge.Nonce
	d.challenge = &challenge
	d.nc = 0
	d.mu.Unlock()

	if answered || (attempt > 0 && !challenge.Stale) {
		return http.DoNotRetry
	}
	return http.RetryAfter(0)
}

func (d *Digest) authorization(c Challenge, method, uri string, nc int) (string, error) {
	if c.Algorithm != "" && !strings.EqualFold(c.Algorithm, "MD5") {
		return "", fmt.Errorf("unsupported digest algorithm: %s", c.Algorithm)
	}

	qop := ""
	if c.Qop != "" {
		for _, q := range strings.Split(c.Qop, ",") {
			if strings.TrimSpace(q) == "auth" {
				qop = "auth"
			}
		}
		if qop == "" {
			return "", fmt.Errorf("unsupported digest qop: %s", c.Qop)
		}
	}

	ha1 := md5Hash(fmt.Sprintf("%s:%s:%s", d.Username, c.Realm, d.Password))
	ha2 := md5Hash(fmt.Sprintf("%s:%s", method, uri))

	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, c.Realm),
		fmt.Sprintf(`nonce="%s"`, c.Nonce),
		fmt.Sprintf(`uri="%s"`, uri),
	}

	var response string
	if qop != "" {
		cnonce, err := generateCnonce()
		if err != nil {
			return "", err
		}
		ncValue := fmt.Sprintf("%08x", nc)
		response = md5Hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, c.Nonce, ncValue, cnonce, qop, ha2))
		parts = append(parts,
			fmt.Sprintf(`response="%s"`, response),
			"qop="+qop,
			"nc="+ncValue,
			fmt.Sprintf(`cnonce="%s"`, cnonce),
		)
	} else {
		response = md5Hash(fmt.Sprintf("%s:%s:%s", ha1, c.Nonce, ha2))
		parts = append(parts, fmt.Sprintf(`response="%s"`, response))
	}

	if c.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, c.Opaque))
	}
	if c.Algorithm != "" {
		parts = append(parts, "algorithm="+c.Algorithm)
	}

	return "Digest " + strings.Join(parts, ", "), nil
}

func generateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hash(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}
