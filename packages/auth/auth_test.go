package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
	"github.com/abdul-hamid-achik/hitexec/packages/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	body []byte
	resp *http.Response
	err  error
}

func send(t *testing.T, req *http.Request, interceptor http.RequestInterceptor, rules ...http.Validation) outcome {
	t.Helper()

	h := http.NewClient().Send(req, interceptor)
	for _, rule := range rules {
		h = h.Validate(rule)
	}
	ch := make(chan outcome, 1)
	h.Response(func(body []byte, resp *http.Response, err error) {
		ch <- outcome{body, resp, err}
	})

	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
		return outcome{}
	}
}

func TestBasic(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "s3cret", pass)
	}))
	defer server.Close()

	o := send(t, http.NewRequest("GET", server.URL), Basic("alice", "s3cret"))
	require.NoError(t, o.err)
}

func TestBearerAndAPIKey(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprintf(w, "%s|%s|%s", r.Header.Get("Authorization"), r.Header.Get("X-API-Key"), r.URL.Query().Get("api_key"))
	}))
	defer server.Close()

	o := send(t, http.NewRequest("GET", server.URL), Bearer("tok"))
	require.NoError(t, o.err)
	assert.Equal(t, "Bearer tok||", string(o.body))

	o = send(t, http.NewRequest("GET", server.URL), APIKey("X-API-Key", "k1"))
	require.NoError(t, o.err)
	assert.Equal(t, "|k1|", string(o.body))

	o = send(t, http.NewRequest("GET", server.URL+"?a=b"), APIKeyQuery("api_key", "k2"))
	require.NoError(t, o.err)
	assert.Equal(t, "||k2", string(o.body))
}

func TestParseWWWAuthenticate(t *testing.T) {
	params := ParseWWWAuthenticate(`realm="test@example.com", qop="auth,auth-int", nonce="abc123", opaque="xyz"`)

	assert.Equal(t, "test@example.com", params["realm"])
	assert.Equal(t, "auth,auth-int", params["qop"])
	assert.Equal(t, "abc123", params["nonce"])
	assert.Equal(t, "xyz", params["opaque"])
}

func TestParseChallenge(t *testing.T) {
	c, ok := ParseChallenge(`Digest realm="r", nonce="n", stale=TRUE`)
	require.True(t, ok)
	assert.Equal(t, "r", c.Realm)
	assert.Equal(t, "n", c.Nonce)
	assert.True(t, c.Stale)

	_, ok = ParseChallenge(`Basic realm="r"`)
	assert.False(t, ok)

	_, ok = ParseChallenge(`Digest realm="r"`)
	assert.False(t, ok, "a challenge without nonce is unusable")
}

// digestServer accepts only requests signed for user/pass.
func digestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	const realm, nonce = "testrealm", "dcd98b7102dd2f0e8b11d0f600bfb0c093"

	return httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Digest ") {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm="%s", qop="auth", nonce="%s", opaque="o"`, realm, nonce))
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}

		p := ParseWWWAuthenticate(header[len("Digest "):])
		ha1 := md5Hex(fmt.Sprintf("user:%s:pass", realm))
		ha2 := md5Hex(fmt.Sprintf("%s:%s", r.Method, p["uri"]))
		want := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, nonce, p["nc"], p["cnonce"], p["qop"], ha2))

		if p["response"] != want || p["opaque"] != "o" || p["uri"] != r.URL.RequestURI() {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm="%s", qop="auth", nonce="%s"`, realm, nonce))
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("welcome"))
	}))
}

func md5Hex(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestDigest_AnswersChallenge(t *testing.T) {
	var hits atomic.Int32
	server := digestServer(t, &hits)
	defer server.Close()

	digest := NewDigest("user", "pass")
	o := send(t, http.NewRequest("GET", server.URL+"/dir/index.html?x=1"), digest, validation.StatusCode(200, 299))

	require.NoError(t, o.err)
	assert.Equal(t, "welcome", string(o.body))
	assert.Equal(t, int32(2), hits.Load())

	// The stored challenge signs later requests up front.
	o = send(t, http.NewRequest("GET", server.URL+"/other"), digest, validation.StatusCode(200, 299))
	require.NoError(t, o.err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDigest_WrongPasswordIsNotRetriedForever(t *testing.T) {
	var hits atomic.Int32
	server := digestServer(t, &hits)
	defer server.Close()

	o := send(t, http.NewRequest("GET", server.URL), NewDigest("user", "wrong"), validation.StatusCode(200, 299))

	var verr *http.ValidationError
	require.ErrorAs(t, o.err, &verr)
	assert.Equal(t, 401, verr.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDigest_IgnoresOtherFailures(t *testing.T) {
	d := NewDigest("u", "p")
	resp := &http.Response{StatusCode: 500, Headers: map[string]string{}}
	assert.Equal(t, http.DoNotRetry, d.Retry(context.Background(), nil, resp, nil, 0))
	assert.Equal(t, http.DoNotRetry, d.Retry(context.Background(), nil, nil, assert.AnError, 0))

	basic := &http.Response{StatusCode: 401, Headers: map[string]string{"WWW-Authenticate": `Basic realm="r"`}}
	assert.Equal(t, http.DoNotRetry, d.Retry(context.Background(), nil, basic, nil, 0))
}

func TestAWSSigV4_SignsRequest(t *testing.T) {
	var authHeader, amzDate, contentSHA string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		authHeader = r.Header.Get("Authorization")
		amzDate = r.Header.Get("X-Amz-Date")
		contentSHA = r.Header.Get("X-Amz-Content-Sha256")
	}))
	defer server.Close()

	signer := &AWSSigV4{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Region:    "us-east-1",
		Service:   "execute-api",
		Now:       func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}

	req := http.NewRequest("POST", server.URL+"/items").SetBodyString(`{"a":1}`)
	o := send(t, req, signer)
	require.NoError(t, o.err)

	assert.True(t, strings.HasPrefix(authHeader, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240102/us-east-1/execute-api/aws4_request"))
	assert.Contains(t, authHeader, "SignedHeaders=")
	assert.Contains(t, authHeader, "host")
	assert.Contains(t, authHeader, "Signature=")
	assert.Equal(t, "20240102T030405Z", amzDate)
	assert.Equal(t, sha256Hex([]byte(`{"a":1}`)), contentSHA)
}

func TestAWSSigV4_Deterministic(t *testing.T) {
	signer := &AWSSigV4{
		AccessKey: "ak",
		SecretKey: "sk",
		Region:    "eu-west-1",
		Service:   "s3",
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	}

	sign := func() string {
		req, err := nethttp.NewRequest("GET", "https://example.com/a-b?z=1&a=2", nil)
		require.NoError(t, err)
		require.NoError(t, signer.Adapt(context.Background(), req))
		return req.Header.Get("Authorization")
	}
	assert.Equal(t, sign(), sign())
}

func TestAWSSigV4_MissingCredentials(t *testing.T) {
	req, err := nethttp.NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)
	assert.Error(t, (&AWSSigV4{}).Adapt(context.Background(), req))
}

func TestCanonicalQueryString(t *testing.T) {
	values := map[string][]string{"b": {"2", "1"}, "a": {"x y"}}
	assert.Equal(t, "a=x%20y&b=1&b=2", canonicalQueryString(values))
	assert.Equal(t, "", canonicalQueryString(nil))
}

func TestParse(t *testing.T) {
	tests := []struct {
		description string
		wantErr     bool
		check       func(t *testing.T, i http.RequestInterceptor)
	}{
		{description: "basic alice pw"},
		{description: "bearer tok"},
		{description: "apikey X-Key k"},
		{description: "apikey-query key k"},
		{description: "digest u p", check: func(t *testing.T, i http.RequestInterceptor) {
			assert.IsType(t, &Digest{}, i)
		}},
		{description: "aws ak sk us-east-1 s3 session", check: func(t *testing.T, i http.RequestInterceptor) {
			signer, ok := i.(*AWSSigV4)
			require.True(t, ok)
			assert.Equal(t, "session", signer.SessionToken)
		}},
		{description: "oauth2 client_credentials https://auth.example.com/token id secret read,write"},
		{description: "basic alice", wantErr: true},
		{description: "aws ak sk", wantErr: true},
		{description: "oauth2 implicit https://x id secret", wantErr: true},
		{description: "kerberos x", wantErr: true},
		{description: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			i, err := Parse(tt.description)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, i)
			if tt.check != nil {
				tt.check(t, i)
			}
		})
	}
}
